// Package compose turns a resolved query context (history, profile,
// retrieved passages) into the assistant's reply text.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/campuskit/advisor/internal/conversation"
	"github.com/campuskit/advisor/internal/profile"
	"github.com/campuskit/advisor/internal/retrieval"
)

// Input carries everything a composer may draw on for one turn. Replies must
// stay grounded in Results: the outbound gate rejects facts that appear in
// neither the passages nor the query.
type Input struct {
	Query   string
	History []conversation.Turn
	Profile profile.Profile
	Results []retrieval.Result
}

type Composer interface {
	Compose(ctx context.Context, in Input) (string, error)
}

// TemplateComposer assembles replies from the retrieved passages directly.
// It is fully deterministic and never fails, so it also serves as the
// fallback when a model-backed composer errors out.
type TemplateComposer struct{}

func NewTemplateComposer() *TemplateComposer { return &TemplateComposer{} }

func (c *TemplateComposer) Compose(_ context.Context, in Input) (string, error) {
	var b strings.Builder

	if greeting := personalNote(in.Profile); greeting != "" {
		b.WriteString(greeting)
		b.WriteString(" ")
	}

	for i, r := range in.Results {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "According to %s: %s", r.SourceRef, strings.TrimSpace(r.Passage))
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("compose: no passages to answer from")
	}
	return b.String(), nil
}

// personalNote folds known profile attributes into a short lead-in. Only
// attributes we hold are mentioned, so the line stays grounded.
func personalNote(p profile.Profile) string {
	course := p.Attr("course")
	campus := p.Attr("campus")
	year := p.Attr("year")
	if course == "" && campus == "" && year == "" {
		return ""
	}

	var parts []string
	if year != "" && course != "" {
		parts = append(parts, fmt.Sprintf("As a year %s %s student", year, course))
	} else if course != "" {
		parts = append(parts, fmt.Sprintf("As a %s student", course))
	}
	if campus != "" {
		if len(parts) > 0 {
			parts = append(parts, fmt.Sprintf("at %s", campus))
		} else {
			parts = append(parts, fmt.Sprintf("For students at %s", campus))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + ", here is what I found."
}
