// Package notify is the best-effort reporting seam. Reconciliation and
// persistence outcomes are summarized into Reports; delivery failures are
// logged by callers and never propagate into the run.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// Report is a subject plus a list of titled sections. Rendering here is
// deliberately plain; full template rendering lives outside this service.
type Report struct {
	Subject  string
	Sections []Section
}

// Section is one titled group of lines, typically one classification group
// or one failure summary.
type Section struct {
	Title string
	Lines []string
}

// AddSection appends a non-empty section; empty groups are not reported.
func (r *Report) AddSection(title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	r.Sections = append(r.Sections, Section{Title: title, Lines: lines})
}

// Empty reports whether the report has nothing to say.
func (r *Report) Empty() bool { return len(r.Sections) == 0 }

// HTMLBody renders the report as a minimal HTML document.
func (r *Report) HTMLBody() string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(r.Subject)))
	for _, section := range r.Sections {
		b.WriteString(fmt.Sprintf("<h3>%s</h3><ul>", html.EscapeString(section.Title)))
		for _, line := range section.Lines {
			b.WriteString(fmt.Sprintf("<li>%s</li>", html.EscapeString(line)))
		}
		b.WriteString("</ul>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// Notifier delivers a report to the configured distribution list.
type Notifier interface {
	Send(ctx context.Context, report Report) error
}

type NoOpNotifier struct{}

func (NoOpNotifier) Send(ctx context.Context, report Report) error { return nil }
