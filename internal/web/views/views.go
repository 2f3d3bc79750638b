// Package views renders the HTML fragments returned to HTMX clients.
// Components live in views.templ; run `templ generate` after editing it.
package views

import (
	"fmt"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
	"github.com/shplep/homecontentslistpro-sub000/internal/session"
)

// maxListed caps how many errors or warnings a fragment shows.
const maxListed = 20

func previewOf(s *session.Session) *importer.Preview {
	if s.Preview == nil {
		return &importer.Preview{}
	}
	return s.Preview
}

func commitURL(previewID string) string {
	return "/api/imports/" + previewID + "/commit"
}

func listed(msgs []string) []string {
	if len(msgs) > maxListed {
		return msgs[:maxListed]
	}
	return msgs
}

// diagnosticLines formats diagnostics as "Row N: message", naming the
// entity and reason when there is no message.
func diagnosticLines(diags []importer.Diagnostic) []string {
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		msg := d.Message
		if msg == "" {
			msg = fmt.Sprintf("%s %s", d.Entity, d.Reason)
		}
		lines = append(lines, fmt.Sprintf("Row %d: %s", d.Row, msg))
	}
	return lines
}
