package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/concord/internal/config"
	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
	"github.com/smallbiznis/concord/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	clientSourceKeyRef = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	clientNameRef      = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
	clientStatusRef    = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000003")
)

func newSourceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{
		`CREATE TABLE clients (artifact_id INTEGER PRIMARY KEY, client_number TEXT, name TEXT, status TEXT,
			created_by TEXT DEFAULT '', created_on DATETIME, case_team TEXT DEFAULT '', analyst TEXT DEFAULT '')`,
		`CREATE TABLE matters (artifact_id INTEGER PRIMARY KEY, matter_number TEXT, name TEXT, status TEXT,
			created_by TEXT DEFAULT '', created_on DATETIME, case_team TEXT DEFAULT '', analyst TEXT DEFAULT '')`,
		`CREATE TABLE workspaces (artifact_id INTEGER PRIMARY KEY, name TEXT, status TEXT,
			created_by TEXT DEFAULT '', created_on DATETIME)`,
		`CREATE TABLE users (artifact_id INTEGER PRIMARY KEY, email TEXT, name TEXT, status TEXT)`,
		`CREATE TABLE matter_page_counts (id INTEGER PRIMARY KEY AUTOINCREMENT, matter_artifact_id INTEGER,
			date_key TEXT, page_count INTEGER, image_count INTEGER)`,
	}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newService(t *testing.T, db *gorm.DB, store objectstore.Store) extractdomain.Extractor {
	t.Helper()
	fieldMap := config.FieldMap{
		ObjectTypes: map[string]int{
			config.ObjectTypeClient:    101,
			config.ObjectTypeMatter:    102,
			config.ObjectTypeWorkspace: 103,
			config.ObjectTypeUser:      104,
		},
		Entities: map[string]config.EntityFields{
			"client":    {SourceKey: clientSourceKeyRef, Name: clientNameRef, Status: clientStatusRef},
			"matter":    {SourceKey: clientSourceKeyRef},
			"workspace": {SourceKey: clientSourceKeyRef},
			"user":      {SourceKey: clientSourceKeyRef},
		},
	}
	return New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Store:    store,
		FieldMap: config.NewStaticFieldMapHolder(fieldMap),
	})
}

func TestSourceSnapshot(t *testing.T) {
	db := newSourceDB(t)
	createdOn := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Exec(
		`INSERT INTO clients (artifact_id, client_number, name, status, created_by, created_on, case_team, analyst)
		 VALUES (1, '12345', 'Acme', 'Active', 'jdoe', ?, 'Team A', 'asmith')`, createdOn).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO matters (artifact_id, matter_number, name, status) VALUES (2, '12345.00001', 'Acme v. Foo', 'Active')`).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO workspaces (artifact_id, name, status) VALUES (3, 'Acme Review', 'Active')`).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO users (artifact_id, email, name, status) VALUES (4, 'jdoe@example.com', 'J Doe', 'Active')`).Error)

	svc := newService(t, db, objectstore.NewMemory())
	snapshot, err := svc.Source(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot.Clients, 1)
	c := snapshot.Clients[0]
	assert.Equal(t, "12345", c.SourceKey)
	assert.Equal(t, "Acme", c.Name)
	assert.Equal(t, "Team A", c.CaseTeam)
	require.NotNil(t, c.CreatedOn)

	require.Len(t, snapshot.Matters, 1)
	assert.Equal(t, "12345.00001", snapshot.Matters[0].SourceKey)

	// Workspaces match across stores on the source artifact id.
	require.Len(t, snapshot.Workspaces, 1)
	assert.Equal(t, "3", snapshot.Workspaces[0].SourceKey)

	require.Len(t, snapshot.Users, 1)
	assert.Equal(t, "jdoe@example.com", snapshot.Users[0].SourceKey)
}

func TestBillingSnapshot(t *testing.T) {
	db := newSourceDB(t)
	store := objectstore.NewMemory()
	_, err := store.Create(context.Background(), 101, []objectstore.FieldValue{
		{Field: clientSourceKeyRef, Value: "12345"},
		{Field: clientNameRef, Value: "Acme"},
		{Field: clientStatusRef, Value: "Active"},
	})
	require.NoError(t, err)

	svc := newService(t, db, store)
	snapshot, err := svc.Billing(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot.Clients, 1)
	assert.Equal(t, "12345", snapshot.Clients[0].SourceKey)
	assert.Equal(t, "Acme", snapshot.Clients[0].Name)
	assert.Equal(t, "Active", snapshot.Clients[0].Status)
	assert.Empty(t, snapshot.Matters)
	assert.Empty(t, snapshot.Users)
}

func TestBillingWrapsStoreErrors(t *testing.T) {
	db := newSourceDB(t)
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Store:    objectstore.NewMemory(),
		FieldMap: config.NewStaticFieldMapHolder(config.FieldMap{}),
	})

	_, err := svc.Billing(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, extractdomain.ErrBillingRead)
}

func TestMatterPageCounts(t *testing.T) {
	db := newSourceDB(t)
	for _, row := range []struct {
		matter int
		key    string
		pages  int
		images int
	}{
		{10, "202506", 100, 5},
		{10, "202506", 50, 0},
		{11, "202506", 7, 1},
		{10, "202505", 999, 999},
	} {
		require.NoError(t, db.Exec(
			`INSERT INTO matter_page_counts (matter_artifact_id, date_key, page_count, image_count) VALUES (?, ?, ?, ?)`,
			row.matter, row.key, row.pages, row.images).Error)
	}

	svc := newService(t, db, objectstore.NewMemory())
	counts, err := svc.MatterPageCounts(context.Background(), "202506")
	require.NoError(t, err)
	require.Len(t, counts, 2)

	byMatter := map[int]extractdomain.PageCount{}
	for _, pc := range counts {
		byMatter[pc.MatterArtifactID] = pc
	}
	assert.Equal(t, int64(150), byMatter[10].Pages)
	assert.Equal(t, int64(5), byMatter[10].Images)
	assert.Equal(t, int64(7), byMatter[11].Pages)
}
