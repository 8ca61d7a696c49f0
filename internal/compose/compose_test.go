package compose

import (
	"context"
	"strings"
	"testing"

	"github.com/campuskit/advisor/internal/profile"
	"github.com/campuskit/advisor/internal/retrieval"
)

func TestTemplateComposerCitesSources(t *testing.T) {
	c := NewTemplateComposer()

	in := Input{
		Query: "When does the library close?",
		Results: []retrieval.Result{
			{Passage: "The main library is open until 22:00 on weekdays.", SourceRef: "library-hours.md", SourceKind: retrieval.KindIndex, Score: 0.9},
			{Passage: "Weekend opening is 10:00 to 18:00.", SourceRef: "library-hours.md", SourceKind: retrieval.KindIndex, Score: 0.7},
		},
	}

	got, err := c.Compose(context.Background(), in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(got, "According to library-hours.md") {
		t.Fatalf("reply missing source attribution: %q", got)
	}
	if !strings.Contains(got, "22:00") || !strings.Contains(got, "18:00") {
		t.Fatalf("reply dropped passage content: %q", got)
	}
}

func TestTemplateComposerPersonalization(t *testing.T) {
	c := NewTemplateComposer()

	in := Input{
		Query: "Which labs can I use?",
		Profile: profile.Profile{
			UserID: "u1",
			Attributes: map[string]string{
				"course": "Computer Science",
				"campus": "City Campus",
				"year":   "2",
			},
		},
		Results: []retrieval.Result{
			{Passage: "Engineering labs are in building B.", SourceRef: "labs.md", SourceKind: retrieval.KindIndex, Score: 0.8},
		},
	}

	got, err := c.Compose(context.Background(), in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for _, want := range []string{"Computer Science", "City Campus", "year 2"} {
		if !strings.Contains(got, want) {
			t.Fatalf("reply missing profile fact %q: %q", want, got)
		}
	}
}

func TestTemplateComposerDeterministic(t *testing.T) {
	c := NewTemplateComposer()
	in := Input{
		Query: "fees?",
		Results: []retrieval.Result{
			{Passage: "Tuition is 9250 per year.", SourceRef: "fees.md", Score: 0.9},
		},
	}

	first, err := c.Compose(context.Background(), in)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := c.Compose(context.Background(), in)
		if err != nil {
			t.Fatalf("Compose: %v", err)
		}
		if got != first {
			t.Fatalf("output changed across identical calls:\n%q\n%q", first, got)
		}
	}
}

func TestTemplateComposerNoPassages(t *testing.T) {
	c := NewTemplateComposer()
	if _, err := c.Compose(context.Background(), Input{Query: "anything"}); err == nil {
		t.Fatal("expected error with no passages")
	}
}

func TestPersonalNoteUnknownProfile(t *testing.T) {
	if got := personalNote(profile.Profile{UserID: "ghost"}); got != "" {
		t.Fatalf("empty profile should produce no note, got %q", got)
	}
}

func TestSystemPromptListsSources(t *testing.T) {
	in := Input{
		Query: "fees?",
		Results: []retrieval.Result{
			{Passage: "Tuition is 9250 per year.", SourceRef: "fees.md"},
			{Passage: "Scholarships cover up to half.", SourceRef: "funding.md"},
		},
	}
	got := systemPrompt(in)
	if !strings.Contains(got, "[1] (fees.md)") || !strings.Contains(got, "[2] (funding.md)") {
		t.Fatalf("system prompt missing numbered sources:\n%s", got)
	}
}
