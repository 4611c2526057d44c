package service

import (
	"strings"
	"testing"

	usagedomain "github.com/smallbiznis/concord/internal/usagereport/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullHeader = `Workspace ArtifactID,Matter ArtifactID,Workspace Name,Published Document Size [GB],Linked Total File Size [GB],Peak Workspace Hosted Size [GB],Translation Units,AI Review Units,AI Privilege Units,Workspace Type`

func TestParseSingleLine(t *testing.T) {
	payload := fullHeader + "\n" +
		`100,55,Acme Review,12.5,3.2,40,0,0,0,REVIEW`

	records, lineErrors, err := ParseCSV(payload)
	require.NoError(t, err)
	require.Empty(t, lineErrors)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, 100, record.WorkspaceArtifactID)
	assert.Equal(t, 55, record.MatterArtifactID)
	assert.Equal(t, "Acme Review", record.WorkspaceName)
	assert.Equal(t, 12.5, record.PublishedDocumentSizeGB)
	assert.Equal(t, 3.2, record.LinkedTotalFileSizeGB)
	assert.Equal(t, 40.0, record.PeakWorkspaceHostedSizeGB)
	assert.Equal(t, "REVIEW", record.WorkspaceType)
}

func TestParseMissingRequiredColumnAborts(t *testing.T) {
	header := strings.Replace(fullHeader, ",Workspace Type", "", 1)
	payload := header + "\n" + `100,55,Acme,1,1,1,0,0,0`

	records, lineErrors, err := ParseCSV(payload)
	require.ErrorIs(t, err, usagedomain.ErrMissingColumns)
	assert.Contains(t, err.Error(), "Workspace Type")
	assert.Empty(t, records)
	assert.Empty(t, lineErrors)
}

func TestParseHeaderIsCaseInsensitiveAndQuoteStripped(t *testing.T) {
	header := `"WORKSPACE ARTIFACTID","matter artifactid","Workspace Name","published document size [gb]","Linked Total File Size [GB]","Peak Workspace Hosted Size [GB]","Translation Units","AI Review Units","AI Privilege Units","workspace type"`
	payload := header + "\n" + `7,9,"Quoted, Name",1.5,0,2,0,0,0,REPOSITORY`

	records, lineErrors, err := ParseCSV(payload)
	require.NoError(t, err)
	require.Empty(t, lineErrors)
	require.Len(t, records, 1)
	assert.Equal(t, "Quoted, Name", records[0].WorkspaceName)
	assert.Equal(t, "REPOSITORY", records[0].WorkspaceType)
}

func TestParseBadLineIsCountedNotFatal(t *testing.T) {
	payload := fullHeader + "\n" +
		`100,55,Good,1,1,1,0,0,0,REVIEW` + "\n" +
		`not-a-number,55,Bad,1,1,1,0,0,0,REVIEW` + "\n" +
		`101,55,Also Good,2,2,2,0,0,0,REVIEW`

	records, lineErrors, err := ParseCSV(payload)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, lineErrors, 1)
	assert.Equal(t, 3, lineErrors[0].Line)
	assert.Contains(t, lineErrors[0].Raw, "not-a-number")
}

func TestParseBlankLinesKeepPhysicalLineNumbers(t *testing.T) {
	payload := fullHeader + "\n" +
		`100,55,Good,1,1,1,0,0,0,REVIEW` + "\n" +
		"\n" +
		`not-a-number,55,Bad,1,1,1,0,0,0,REVIEW`

	records, lineErrors, err := ParseCSV(payload)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, lineErrors, 1)
	assert.Equal(t, 4, lineErrors[0].Line, "the blank line still counts toward the position")
	assert.Contains(t, lineErrors[0].Raw, "not-a-number")
}

func TestParseLeadingBlankLinesBeforeHeader(t *testing.T) {
	payload := "\n" + fullHeader + "\n" +
		`100,55,Acme,1,1,1,0,0,0,REVIEW`

	records, lineErrors, err := ParseCSV(payload)
	require.NoError(t, err)
	require.Empty(t, lineErrors)
	require.Len(t, records, 1)
}

func TestParseNAAndEmptyNumericsDefaultToZero(t *testing.T) {
	payload := fullHeader + "\n" +
		`100,55,Acme,N/A,,n/a,,N/A,,COLD STORAGE`

	records, lineErrors, err := ParseCSV(payload)
	require.NoError(t, err)
	require.Empty(t, lineErrors)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].PublishedDocumentSizeGB)
	assert.Zero(t, records[0].LinkedTotalFileSizeGB)
	assert.Zero(t, records[0].PeakWorkspaceHostedSizeGB)
	assert.Zero(t, records[0].TranslationUnits)
}

func TestParseCreatedOnDate(t *testing.T) {
	payload := fullHeader + ",Created On\n" +
		`100,55,Acme,1,1,1,0,0,0,REVIEW,03/15/2025 09:30 AM` + "\n" +
		`101,55,NoDate,1,1,1,0,0,0,REVIEW,N/A` + "\n" +
		`102,55,BadDate,1,1,1,0,0,0,REVIEW,2025-03-15`

	records, lineErrors, err := ParseCSV(payload)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, lineErrors, 1)

	require.NotNil(t, records[0].CreatedOn)
	assert.Equal(t, 2025, records[0].CreatedOn.Year())
	assert.Equal(t, 9, records[0].CreatedOn.Hour())
	assert.Nil(t, records[1].CreatedOn)
}

func TestParseMissingWorkspaceIDIsLineError(t *testing.T) {
	payload := fullHeader + "\n" +
		`,55,NoWorkspace,1,1,1,0,0,0,REVIEW`

	records, lineErrors, err := ParseCSV(payload)
	require.NoError(t, err)
	assert.Empty(t, records)
	require.Len(t, lineErrors, 1)
}
