package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	usagedomain "github.com/smallbiznis/concord/internal/usagereport/domain"
)

const createdOnLayout = "01/02/2006 03:04 PM"

// Report column names, matched case-insensitively after quote stripping.
const (
	colWorkspaceArtifactID = "Workspace ArtifactID"
	colMatterArtifactID    = "Matter ArtifactID"
	colWorkspaceName       = "Workspace Name"
	colPublishedSize       = "Published Document Size [GB]"
	colLinkedSize          = "Linked Total File Size [GB]"
	colPeakSize            = "Peak Workspace Hosted Size [GB]"
	colTranslationUnits    = "Translation Units"
	colAIReviewUnits       = "AI Review Units"
	colAIPrivilegeUnits    = "AI Privilege Units"
	colWorkspaceType       = "Workspace Type"
	colCreatedOn           = "Created On"
)

var requiredColumns = []string{
	colWorkspaceArtifactID,
	colMatterArtifactID,
	colWorkspaceName,
	colPublishedSize,
	colLinkedSize,
	colPeakSize,
	colTranslationUnits,
	colAIReviewUnits,
	colAIPrivilegeUnits,
	colWorkspaceType,
}

// ParseCSV parses the downloaded report payload. A header missing any
// required column aborts the whole parse; a malformed data line is recorded
// as a LineError and skipped, never aborting the batch.
func ParseCSV(payload string) ([]usagedomain.UsageRecord, []usagedomain.LineError, error) {
	lines := splitLines(payload)
	headerIdx := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, nil, fmt.Errorf("%w: empty payload", usagedomain.ErrMissingColumns)
	}

	columns := headerIndex(lines[headerIdx])
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", usagedomain.ErrMissingColumns, strings.Join(missing, ", "))
	}

	var records []usagedomain.UsageRecord
	var lineErrors []usagedomain.LineError
	for i := headerIdx + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		record, err := parseLine(columns, line)
		if err != nil {
			lineErrors = append(lineErrors, usagedomain.LineError{
				// Physical 1-based line number in the payload, blanks included.
				Line: i + 1,
				Raw:  line,
				Err:  err,
			})
			continue
		}
		records = append(records, record)
	}
	return records, lineErrors, nil
}

func parseLine(columns map[string]int, line string) (usagedomain.UsageRecord, error) {
	var record usagedomain.UsageRecord
	tokens := tokenize(line)

	field := func(name string) string {
		idx := columns[strings.ToLower(name)]
		if idx >= len(tokens) {
			return ""
		}
		return strings.TrimSpace(tokens[idx])
	}

	workspaceID, err := intField(field(colWorkspaceArtifactID), colWorkspaceArtifactID)
	if err != nil {
		return record, err
	}
	if workspaceID == 0 {
		return record, fmt.Errorf("missing %s", colWorkspaceArtifactID)
	}
	matterID, err := intField(field(colMatterArtifactID), colMatterArtifactID)
	if err != nil {
		return record, err
	}

	record.WorkspaceArtifactID = workspaceID
	record.MatterArtifactID = matterID
	record.WorkspaceName = field(colWorkspaceName)
	record.WorkspaceType = field(colWorkspaceType)

	numeric := []struct {
		name string
		dst  *float64
	}{
		{colPublishedSize, &record.PublishedDocumentSizeGB},
		{colLinkedSize, &record.LinkedTotalFileSizeGB},
		{colPeakSize, &record.PeakWorkspaceHostedSizeGB},
		{colTranslationUnits, &record.TranslationUnits},
		{colAIReviewUnits, &record.AIReviewUnits},
		{colAIPrivilegeUnits, &record.AIPrivilegeUnits},
	}
	for _, col := range numeric {
		value, err := floatField(field(col.name), col.name)
		if err != nil {
			return record, err
		}
		*col.dst = value
	}

	if _, ok := columns[strings.ToLower(colCreatedOn)]; ok {
		createdOn, err := dateField(field(colCreatedOn), colCreatedOn)
		if err != nil {
			return record, err
		}
		record.CreatedOn = createdOn
	}
	return record, nil
}

func emptyValue(raw string) bool {
	return raw == "" || strings.EqualFold(raw, "N/A")
}

func intField(raw, name string) (int, error) {
	if emptyValue(raw) {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("bad %s value %q", name, raw)
	}
	return value, nil
}

func floatField(raw, name string) (float64, error) {
	if emptyValue(raw) {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s value %q", name, raw)
	}
	return value, nil
}

func dateField(raw, name string) (*time.Time, error) {
	if emptyValue(raw) {
		return nil, nil
	}
	value, err := time.Parse(createdOnLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("bad %s value %q", name, raw)
	}
	value = value.UTC()
	return &value, nil
}

func headerIndex(header string) map[string]int {
	columns := map[string]int{}
	for i, name := range tokenize(header) {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return columns
}

// tokenize splits one CSV line. Quotes toggle an in-quotes state; commas
// split only outside quotes, and the quotes themselves are stripped.
func tokenize(line string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			tokens = append(tokens, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	tokens = append(tokens, current.String())
	return tokens
}

// splitLines keeps blank lines so error positions match the raw payload.
func splitLines(payload string) []string {
	payload = strings.ReplaceAll(payload, "\r\n", "\n")
	return strings.Split(payload, "\n")
}
