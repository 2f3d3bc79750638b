package views

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
	"github.com/shplep/homecontentslistpro-sub000/internal/session"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return b.String()
}

func TestErrorAlert_Escapes(t *testing.T) {
	got := render(t, ErrorAlert("<b>bad</b>", "Retry", "IMP001"))

	for _, want := range []string{"&lt;b&gt;bad&lt;/b&gt;", "Retry", "Code: IMP001", `role="alert"`} {
		if !strings.Contains(got, want) {
			t.Errorf("ErrorAlert missing %q in %s", want, got)
		}
	}
	if strings.Contains(got, "<b>") {
		t.Errorf("ErrorAlert did not escape message: %s", got)
	}
}

func TestPreviewSummary(t *testing.T) {
	tests := []struct {
		name       string
		preview    *importer.Preview
		wantButton bool
		want       []string
	}{
		{
			name:       "clean preview offers commit",
			preview:    &importer.Preview{Items: make([]importer.ItemCandidate, 3)},
			wantButton: true,
			want:       []string{"0 houses", "3 items"},
		},
		{
			name:    "errors hide commit",
			preview: &importer.Preview{Errors: []string{"Row 2: Item name is required"}},
			want:    []string{"Row 2: Item name is required", "preview-errors"},
		},
		{
			name:       "nil preview",
			wantButton: true,
			want:       []string{"0 items"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &session.Session{ID: "p-1", Source: "items.csv", Preview: tt.preview}
			got := render(t, PreviewSummary(s))

			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("missing %q in %s", w, got)
				}
			}
			if has := strings.Contains(got, "/api/imports/p-1/commit"); has != tt.wantButton {
				t.Errorf("commit button present = %v, want %v", has, tt.wantButton)
			}
		})
	}
}

func TestPreviewSummary_TruncatesLongLists(t *testing.T) {
	p := &importer.Preview{}
	for i := range 25 {
		p.Warnings = append(p.Warnings, fmt.Sprintf("Row %d: Price adjusted", i+1))
	}
	got := render(t, PreviewSummary(&session.Session{ID: "p", Preview: p}))

	if !strings.Contains(got, "and 5 more") {
		t.Errorf("expected truncation marker in %s", got)
	}
	if strings.Contains(got, "Row 21:") {
		t.Errorf("row 21 should be truncated")
	}
}

func TestCommitResult(t *testing.T) {
	res := &importer.Result{
		Summary: "Import completed: 1 house, 1 room, 1 item created. 0 items updated, 1 item skipped.",
		Diagnostics: []importer.Diagnostic{
			{Row: 3, Entity: importer.EntityItem, Reason: importer.ReasonUnresolvedRoom},
		},
	}
	got := render(t, CommitResult(res))

	if !strings.Contains(got, res.Summary) {
		t.Errorf("missing summary in %s", got)
	}
	if !strings.Contains(got, "Row 3: item unresolved_room") {
		t.Errorf("missing diagnostic in %s", got)
	}
}
