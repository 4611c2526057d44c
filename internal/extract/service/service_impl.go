package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/concord/internal/config"
	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
	"github.com/smallbiznis/concord/internal/objectstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Store    objectstore.Store
	FieldMap *config.FieldMapHolder
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	store    objectstore.Store
	fieldMap *config.FieldMapHolder
}

func New(p Params) extractdomain.Extractor {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("extract.service"),
		store:    p.Store,
		fieldMap: p.FieldMap,
	}
}

type sourceRow struct {
	ArtifactID int
	Number     string
	Name       string
	Status     string
	CreatedBy  string
	CreatedOn  *time.Time
	CaseTeam   string
	Analyst    string
	Email      string
}

func (s *Service) Source(ctx context.Context) (extractdomain.Snapshot, error) {
	var snapshot extractdomain.Snapshot

	clients, err := s.sourceClients(ctx)
	if err != nil {
		return snapshot, errors.Join(extractdomain.ErrSourceRead, err)
	}
	matters, err := s.sourceMatters(ctx)
	if err != nil {
		return snapshot, errors.Join(extractdomain.ErrSourceRead, err)
	}
	workspaces, err := s.sourceWorkspaces(ctx)
	if err != nil {
		return snapshot, errors.Join(extractdomain.ErrSourceRead, err)
	}
	users, err := s.sourceUsers(ctx)
	if err != nil {
		return snapshot, errors.Join(extractdomain.ErrSourceRead, err)
	}

	snapshot.Clients = clients
	snapshot.Matters = matters
	snapshot.Workspaces = workspaces
	snapshot.Users = users
	return snapshot, nil
}

func (s *Service) sourceClients(ctx context.Context) ([]extractdomain.Record, error) {
	var rows []sourceRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT artifact_id, client_number AS number, name, status, created_by, created_on, case_team, analyst
		 FROM clients`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]extractdomain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, extractdomain.Record{
			ArtifactID: row.ArtifactID,
			SourceKey:  row.Number,
			Number:     row.Number,
			Name:       row.Name,
			Status:     row.Status,
			CreatedBy:  row.CreatedBy,
			CreatedOn:  row.CreatedOn,
			CaseTeam:   row.CaseTeam,
			Analyst:    row.Analyst,
		})
	}
	return out, nil
}

func (s *Service) sourceMatters(ctx context.Context) ([]extractdomain.Record, error) {
	var rows []sourceRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT artifact_id, matter_number AS number, name, status, created_by, created_on, case_team, analyst
		 FROM matters`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]extractdomain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, extractdomain.Record{
			ArtifactID: row.ArtifactID,
			SourceKey:  row.Number,
			Number:     row.Number,
			Name:       row.Name,
			Status:     row.Status,
			CreatedBy:  row.CreatedBy,
			CreatedOn:  row.CreatedOn,
			CaseTeam:   row.CaseTeam,
			Analyst:    row.Analyst,
		})
	}
	return out, nil
}

func (s *Service) sourceWorkspaces(ctx context.Context) ([]extractdomain.Record, error) {
	var rows []sourceRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT artifact_id, name, status, created_by, created_on
		 FROM workspaces`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]extractdomain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, extractdomain.Record{
			ArtifactID: row.ArtifactID,
			// Workspaces match across stores on the source artifact id.
			SourceKey: strconv.Itoa(row.ArtifactID),
			Name:      row.Name,
			Status:    row.Status,
			CreatedBy: row.CreatedBy,
			CreatedOn: row.CreatedOn,
		})
	}
	return out, nil
}

func (s *Service) sourceUsers(ctx context.Context) ([]extractdomain.Record, error) {
	var rows []sourceRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT artifact_id, email, name, status
		 FROM users`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]extractdomain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, extractdomain.Record{
			ArtifactID: row.ArtifactID,
			SourceKey:  row.Email,
			Name:       row.Name,
			Status:     row.Status,
		})
	}
	return out, nil
}

func (s *Service) Billing(ctx context.Context) (extractdomain.Snapshot, error) {
	var snapshot extractdomain.Snapshot
	fieldMap := s.fieldMap.Get()

	clients, err := s.billingEntity(ctx, fieldMap, config.ObjectTypeClient, string(extractdomain.KindClient))
	if err != nil {
		return snapshot, errors.Join(extractdomain.ErrBillingRead, err)
	}
	matters, err := s.billingEntity(ctx, fieldMap, config.ObjectTypeMatter, string(extractdomain.KindMatter))
	if err != nil {
		return snapshot, errors.Join(extractdomain.ErrBillingRead, err)
	}
	workspaces, err := s.billingEntity(ctx, fieldMap, config.ObjectTypeWorkspace, string(extractdomain.KindWorkspace))
	if err != nil {
		return snapshot, errors.Join(extractdomain.ErrBillingRead, err)
	}
	users, err := s.billingEntity(ctx, fieldMap, config.ObjectTypeUser, string(extractdomain.KindUser))
	if err != nil {
		return snapshot, errors.Join(extractdomain.ErrBillingRead, err)
	}

	snapshot.Clients = clients
	snapshot.Matters = matters
	snapshot.Workspaces = workspaces
	snapshot.Users = users
	return snapshot, nil
}

func (s *Service) billingEntity(ctx context.Context, fieldMap config.FieldMap, typeKey, entityKey string) ([]extractdomain.Record, error) {
	objectType, err := fieldMap.ObjectType(typeKey)
	if err != nil {
		return nil, err
	}
	fields, err := fieldMap.Entity(entityKey)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.Query(ctx, objectType, nil)
	if err != nil {
		return nil, err
	}

	out := make([]extractdomain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, extractdomain.Record{
			ArtifactID: row.ArtifactID,
			SourceKey:  stringValue(row, fields.SourceKey),
			Name:       stringValue(row, fields.Name),
			Number:     stringValue(row, fields.Number),
			CreatedBy:  stringValue(row, fields.CreatedBy),
			CreatedOn:  timeValue(row, fields.CreatedOn),
			CaseTeam:   stringValue(row, fields.CaseTeam),
			Analyst:    stringValue(row, fields.Analyst),
			Status:     stringValue(row, fields.Status),
		})
	}
	return out, nil
}

func (s *Service) MatterPageCounts(ctx context.Context, dateKey string) ([]extractdomain.PageCount, error) {
	var rows []extractdomain.PageCount
	err := s.db.WithContext(ctx).Raw(
		`SELECT matter_artifact_id, date_key, SUM(page_count) AS pages, SUM(image_count) AS images
		 FROM matter_page_counts
		 WHERE date_key = ?
		 GROUP BY matter_artifact_id, date_key`,
		dateKey,
	).Scan(&rows).Error
	if err != nil {
		return nil, errors.Join(extractdomain.ErrSourceRead, err)
	}
	return rows, nil
}

func stringValue(row objectstore.Row, field uuid.UUID) string {
	if field == uuid.Nil {
		return ""
	}
	v, ok := row.Value(field)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func timeValue(row objectstore.Row, field uuid.UUID) *time.Time {
	if field == uuid.Nil {
		return nil
	}
	v, ok := row.Value(field)
	if !ok || v == nil {
		return nil
	}
	switch value := v.(type) {
	case time.Time:
		t := value.UTC()
		return &t
	case string:
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			t := parsed.UTC()
			return &t
		}
	}
	return nil
}
