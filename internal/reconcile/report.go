package reconcile

import (
	"fmt"

	extractdomain "github.com/smallbiznis/concord/internal/extract/domain"
	"github.com/smallbiznis/concord/internal/notify"
)

// maxSampleLines caps how many rows one section lists; the count line always
// carries the full total.
const maxSampleLines = 25

// BuildReport converts a classification result into notification sections.
// Empty groups produce no section, so an all-quiet run sends nothing.
func BuildReport(result Result) notify.Report {
	report := notify.Report{
		Subject: fmt.Sprintf("Reconciliation: %ss", result.Kind),
	}

	report.AddSection(
		fmt.Sprintf("Invalid %ss (%d)", result.Kind, len(result.Invalid)),
		recordLines(result.Invalid),
	)

	if len(result.Duplicates) > 0 {
		lines := make([]string, 0, len(result.Duplicates))
		for _, group := range result.Duplicates {
			lines = append(lines, fmt.Sprintf("%s: %d records", group.Key, len(group.Records)))
		}
		report.AddSection(
			fmt.Sprintf("Duplicate %s keys (%d)", result.Kind, len(result.Duplicates)),
			lines,
		)
	}

	report.AddSection(
		fmt.Sprintf("New %ss (%d)", result.Kind, len(result.New)),
		recordLines(result.New),
	)

	report.AddSection(
		fmt.Sprintf("Orphaned %ss (%d)", result.Kind, len(result.Orphaned)),
		recordLines(result.Orphaned),
	)

	for _, field := range TrackedFields {
		changes := result.Changes[field]
		if len(changes) == 0 {
			continue
		}
		lines := make([]string, 0, len(changes))
		for i, change := range changes {
			if i == maxSampleLines {
				lines = append(lines, fmt.Sprintf("... and %d more", len(changes)-maxSampleLines))
				break
			}
			lines = append(lines, fmt.Sprintf("%s -> %v", change.SourceKey, change.NewValue))
		}
		report.AddSection(
			fmt.Sprintf("Changed %s on %ss (%d)", field, result.Kind, len(changes)),
			lines,
		)
	}

	return report
}

func recordLines(records []extractdomain.Record) []string {
	lines := make([]string, 0, len(records))
	for i, record := range records {
		if i == maxSampleLines {
			lines = append(lines, fmt.Sprintf("... and %d more", len(records)-maxSampleLines))
			break
		}
		label := record.SourceKey
		if record.Name != "" {
			label = fmt.Sprintf("%s (%s)", record.SourceKey, record.Name)
		}
		lines = append(lines, label)
	}
	return lines
}
