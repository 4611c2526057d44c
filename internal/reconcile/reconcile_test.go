package reconcile

import (
	"testing"
	"time"

	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func client(artifactID int, number, name string) extractdomain.Record {
	return extractdomain.Record{
		ArtifactID: artifactID,
		SourceKey:  number,
		Number:     number,
		Name:       name,
	}
}

func TestClientNumberFormatRule(t *testing.T) {
	source := []extractdomain.Record{
		client(1, "12345", "Good Client"),
		client(2, "1234", "Short Client"),
		client(3, "LEGACY-9", "Excepted Client"),
	}

	result := Classify(extractdomain.KindClient, source, nil, Options{
		ClientNumberExceptions: []string{"LEGACY-9"},
	})

	require.Len(t, result.Invalid, 1)
	assert.Equal(t, "1234", result.Invalid[0].Number)
	assert.Len(t, result.New, 2)
}

func TestMatterNumberFormatRule(t *testing.T) {
	source := []extractdomain.Record{
		{ArtifactID: 1, SourceKey: "12345.00001", Number: "12345.00001"},
		{ArtifactID: 2, SourceKey: "12345.1", Number: "12345.1"},
	}

	result := Classify(extractdomain.KindMatter, source, nil, Options{})

	require.Len(t, result.Invalid, 1)
	assert.Equal(t, "12345.1", result.Invalid[0].Number)
	require.Len(t, result.New, 1)
	assert.Equal(t, "12345.00001", result.New[0].Number)
}

func TestDuplicateKeysGroupedAscending(t *testing.T) {
	source := []extractdomain.Record{
		client(1, "99999", "B"),
		client(2, "99999", "B copy"),
		client(3, "11111", "A"),
		client(4, "11111", "A copy"),
		client(5, "55555", "Solo"),
	}

	result := Classify(extractdomain.KindClient, source, nil, Options{})

	require.Len(t, result.Duplicates, 2)
	assert.Equal(t, "11111", result.Duplicates[0].Key)
	assert.Equal(t, "99999", result.Duplicates[1].Key)
	// duplicates never also classify as new
	require.Len(t, result.New, 1)
	assert.Equal(t, "55555", result.New[0].Number)
}

func TestOrphanedBillingRecords(t *testing.T) {
	billing := []extractdomain.Record{
		{ArtifactID: 100, SourceKey: "11111", Status: "Active"},
		{ArtifactID: 101, SourceKey: "22222", Status: "Deleted"},
	}

	result := Classify(extractdomain.KindClient, nil, billing, Options{})

	require.Len(t, result.Orphaned, 1)
	assert.Equal(t, 100, result.Orphaned[0].ArtifactID)
}

func TestChangedFieldsEmitOneStreamPerField(t *testing.T) {
	createdOn := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	source := []extractdomain.Record{{
		ArtifactID: 1,
		SourceKey:  "12345",
		Number:     "12345",
		Name:       "Renamed Client",
		Analyst:    "analyst@example.com",
		CreatedOn:  &createdOn,
		Status:     "Active",
	}}
	billing := []extractdomain.Record{{
		ArtifactID: 200,
		SourceKey:  "12345",
		Number:     "12345",
		Name:       "Old Name",
		Analyst:    "analyst@example.com",
		CreatedOn:  &createdOn,
		Status:     "Active",
	}}

	result := Classify(extractdomain.KindClient, source, billing, Options{})

	assert.Empty(t, result.New)
	assert.Empty(t, result.Unchanged)
	require.Len(t, result.Changes[FieldName], 1)
	change := result.Changes[FieldName][0]
	assert.Equal(t, 200, change.TargetArtifactID)
	assert.Equal(t, "Renamed Client", change.NewValue)
	assert.Empty(t, result.Changes[FieldAnalyst])
	assert.Empty(t, result.Changes[FieldStatus])
}

func TestMatchedIdenticalRecordIsUnchanged(t *testing.T) {
	source := []extractdomain.Record{client(1, "12345", "Same")}
	billing := []extractdomain.Record{{
		ArtifactID: 300, SourceKey: "12345", Number: "12345", Name: "Same",
	}}

	result := Classify(extractdomain.KindClient, source, billing, Options{})

	assert.Empty(t, result.New)
	assert.Empty(t, result.Orphaned)
	assert.Empty(t, result.Changes)
	require.Len(t, result.Unchanged, 1)
}

func TestDiffIdempotence(t *testing.T) {
	createdOn := time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)
	// Billing mirrors source exactly: the second pass of a converged pair.
	records := []extractdomain.Record{
		{ArtifactID: 1, SourceKey: "12345", Number: "12345", Name: "A", CreatedOn: &createdOn, Status: "Active"},
		{ArtifactID: 2, SourceKey: "67890", Number: "67890", Name: "B", CreatedOn: &createdOn, Status: "Active"},
	}
	billing := []extractdomain.Record{
		{ArtifactID: 900, SourceKey: "12345", Number: "12345", Name: "A", CreatedOn: &createdOn, Status: "Active"},
		{ArtifactID: 901, SourceKey: "67890", Number: "67890", Name: "B", CreatedOn: &createdOn, Status: "Active"},
	}

	first := Classify(extractdomain.KindClient, records, billing, Options{})
	second := Classify(extractdomain.KindClient, records, billing, Options{})

	for _, result := range []Result{first, second} {
		assert.Empty(t, result.New)
		assert.Empty(t, result.Changes)
		assert.Empty(t, result.Duplicates)
		assert.Empty(t, result.Orphaned)
		assert.Len(t, result.Unchanged, 2)
	}
}

func TestWorkspaceRecordsSkipFormatRules(t *testing.T) {
	source := []extractdomain.Record{
		{ArtifactID: 1, SourceKey: "1", Name: "WS"},
	}

	result := Classify(extractdomain.KindWorkspace, source, nil, Options{})

	assert.Empty(t, result.Invalid)
	require.Len(t, result.New, 1)
}

func TestBuildReportSkipsEmptyGroups(t *testing.T) {
	result := Result{Kind: extractdomain.KindClient, Changes: map[TrackedField][]FieldChange{}}
	report := BuildReport(result)
	assert.True(t, report.Empty())

	result.New = []extractdomain.Record{client(1, "12345", "New Co")}
	report = BuildReport(result)
	require.Len(t, report.Sections, 1)
	assert.Contains(t, report.Sections[0].Title, "New client")
}
