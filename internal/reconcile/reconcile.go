// Package reconcile diffs the two stores' snapshots per entity type and
// classifies every record. Classification is pure: no I/O, no ordering
// requirements beyond ascending duplicate keys for reporting.
package reconcile

import (
	"sort"
	"strings"
	"time"

	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
)

// TrackedField names a field whose drift between stores produces an update.
type TrackedField string

const (
	FieldName      TrackedField = "name"
	FieldNumber    TrackedField = "number"
	FieldCreatedBy TrackedField = "created_by"
	FieldCreatedOn TrackedField = "created_on"
	FieldCaseTeam  TrackedField = "case_team"
	FieldAnalyst   TrackedField = "analyst"
	FieldStatus    TrackedField = "status"
)

// TrackedFields lists every compared field in reporting order.
var TrackedFields = []TrackedField{
	FieldName, FieldNumber, FieldCreatedBy, FieldCreatedOn,
	FieldCaseTeam, FieldAnalyst, FieldStatus,
}

// FieldChange is one pending billing-store update: write NewValue into the
// tracked field of the billing record identified by TargetArtifactID.
type FieldChange struct {
	TargetArtifactID int
	SourceKey        string
	NewValue         any
}

// DuplicateGroup is a natural key shared by two or more records.
type DuplicateGroup struct {
	Key     string
	Records []extractdomain.Record
}

// Result is the full classification for one entity kind.
type Result struct {
	Kind extractdomain.EntityKind

	Invalid    []extractdomain.Record
	Duplicates []DuplicateGroup
	New        []extractdomain.Record
	Unchanged  []extractdomain.Record
	Orphaned   []extractdomain.Record
	Changes    map[TrackedField][]FieldChange
}

// StatusDeleted is the billing-side terminal status; orphans already in it
// are not re-reported.
const StatusDeleted = "Deleted"

// Options carries the per-deployment policy knobs.
type Options struct {
	// ClientNumberExceptions exempts listed client numbers from the
	// five-character format rule.
	ClientNumberExceptions []string
}

func (o Options) isExceptedClient(number string) bool {
	for _, exception := range o.ClientNumberExceptions {
		if strings.EqualFold(exception, number) {
			return true
		}
	}
	return false
}

// Classify diffs one entity kind's source records against billing records.
// Running it twice over identical snapshots yields empty new/changed/
// duplicate/orphaned sets the second time only if the first run's outcomes
// were applied; the function itself is deterministic and side-effect free.
func Classify(kind extractdomain.EntityKind, source, billing []extractdomain.Record, opts Options) Result {
	result := Result{
		Kind:    kind,
		Changes: map[TrackedField][]FieldChange{},
	}

	sourceByKey := groupByKey(source)
	billingByKey := groupByKey(billing)

	flagged := map[string]bool{}

	// Duplicate natural keys are a reportable condition on either side,
	// never a processing halt.
	for _, group := range duplicateGroups(sourceByKey) {
		result.Duplicates = append(result.Duplicates, group)
		flagged[group.Key] = true
	}
	for _, group := range duplicateGroups(billingByKey) {
		result.Duplicates = append(result.Duplicates, group)
		flagged[group.Key] = true
	}
	sortGroups(result.Duplicates)

	for _, record := range source {
		if !validFormat(kind, record, opts) {
			result.Invalid = append(result.Invalid, record)
			flagged[record.SourceKey] = true
		}
	}

	for _, record := range source {
		if flagged[record.SourceKey] {
			continue
		}

		matches, exists := billingByKey[record.SourceKey]
		if !exists {
			result.New = append(result.New, record)
			continue
		}

		target := matches[0]
		changed := false
		for _, field := range TrackedFields {
			sourceValue, billingValue := fieldValues(field, record, target)
			if sourceValue == billingValue {
				continue
			}
			changed = true
			result.Changes[field] = append(result.Changes[field], FieldChange{
				TargetArtifactID: target.ArtifactID,
				SourceKey:        record.SourceKey,
				NewValue:         rawFieldValue(field, record),
			})
		}
		if !changed {
			result.Unchanged = append(result.Unchanged, record)
		}
	}

	for _, record := range billing {
		if flagged[record.SourceKey] {
			continue
		}
		if _, exists := sourceByKey[record.SourceKey]; exists {
			continue
		}
		if strings.EqualFold(record.Status, StatusDeleted) {
			continue
		}
		result.Orphaned = append(result.Orphaned, record)
	}

	return result
}

func validFormat(kind extractdomain.EntityKind, record extractdomain.Record, opts Options) bool {
	switch kind {
	case extractdomain.KindClient:
		if len(record.Number) == 5 {
			return true
		}
		return opts.isExceptedClient(record.Number)
	case extractdomain.KindMatter:
		return len(record.Number) >= 11
	default:
		return true
	}
}

// fieldValues renders both sides of a tracked field as comparable strings.
func fieldValues(field TrackedField, source, billing extractdomain.Record) (string, string) {
	switch field {
	case FieldName:
		return source.Name, billing.Name
	case FieldNumber:
		return source.Number, billing.Number
	case FieldCreatedBy:
		return source.CreatedBy, billing.CreatedBy
	case FieldCreatedOn:
		return timeString(source.CreatedOn), timeString(billing.CreatedOn)
	case FieldCaseTeam:
		return source.CaseTeam, billing.CaseTeam
	case FieldAnalyst:
		return source.Analyst, billing.Analyst
	case FieldStatus:
		return source.Status, billing.Status
	}
	return "", ""
}

// rawFieldValue is the value written to the billing store on drift.
func rawFieldValue(field TrackedField, record extractdomain.Record) any {
	switch field {
	case FieldName:
		return record.Name
	case FieldNumber:
		return record.Number
	case FieldCreatedBy:
		return record.CreatedBy
	case FieldCreatedOn:
		if record.CreatedOn == nil {
			return nil
		}
		return record.CreatedOn.UTC()
	case FieldCaseTeam:
		return record.CaseTeam
	case FieldAnalyst:
		return record.Analyst
	case FieldStatus:
		return record.Status
	}
	return nil
}

func timeString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func groupByKey(records []extractdomain.Record) map[string][]extractdomain.Record {
	out := make(map[string][]extractdomain.Record, len(records))
	for _, record := range records {
		out[record.SourceKey] = append(out[record.SourceKey], record)
	}
	return out
}

func duplicateGroups(byKey map[string][]extractdomain.Record) []DuplicateGroup {
	var groups []DuplicateGroup
	for key, records := range byKey {
		if len(records) < 2 {
			continue
		}
		groups = append(groups, DuplicateGroup{Key: key, Records: records})
	}
	return groups
}

func sortGroups(groups []DuplicateGroup) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key < groups[j].Key
	})
}
