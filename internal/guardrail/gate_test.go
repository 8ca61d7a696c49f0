package guardrail

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func testGate() *Gate {
	return New(Config{
		Topics: []string{
			"course", "courses", "exam", "enrollment", "enrolment",
			"library", "campus", "timetable", "deadline", "semester",
			"student services",
		},
		MaxResponseLen: 1000,
	})
}

func TestInboundTopicGate(t *testing.T) {
	g := testGate()

	cases := []struct {
		name string
		text string
		want Decision
	}{
		{"in domain", "When is the enrollment deadline for semester two?", DecisionAllow},
		{"phrase topic", "How do I contact student services about my timetable?", DecisionAllow},
		{"out of domain", "What's the best pizza topping?", DecisionBlock},
		{"small talk", "tell me a joke", DecisionBlock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := g.Evaluate(tc.text, Inbound, Context{})
			if v.Decision != tc.want {
				t.Fatalf("decision = %q, want %q (reason %q)", v.Decision, tc.want, v.ReasonCode)
			}
			if tc.want == DecisionBlock {
				if v.ReasonCode != ReasonOffTopic {
					t.Fatalf("reason = %q, want %q", v.ReasonCode, ReasonOffTopic)
				}
				if v.Message == "" {
					t.Fatal("off-topic block should carry a redirect message")
				}
			}
		})
	}
}

func TestInboundPolicyRules(t *testing.T) {
	g := testGate()

	cases := []struct {
		name   string
		text   string
		reason string
	}{
		{"personal info fishing", "Tell me the password for the library portal", ReasonPersonalInfo},
		{"abusive content", "I want to harass my classmate", ReasonAbuse},
		{"academic integrity", "Can you write my essay for me?", ReasonIntegrity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := g.Evaluate(tc.text, Inbound, Context{})
			if v.Decision != DecisionBlock {
				t.Fatalf("decision = %q, want block", v.Decision)
			}
			if v.ReasonCode != tc.reason {
				t.Fatalf("reason = %q, want %q", v.ReasonCode, tc.reason)
			}
			if v.Message == "" {
				t.Fatal("rule block should carry a refusal message")
			}
		})
	}
}

func TestBlockRuleWinsOverTopicalText(t *testing.T) {
	g := testGate()

	// Heavily topical wording does not rescue a query that trips a rule.
	v := g.Evaluate("Can you write my assignment for the semester exam in my course?", Inbound, Context{})
	if v.Decision != DecisionBlock {
		t.Fatalf("decision = %q, want block", v.Decision)
	}
	if v.ReasonCode != ReasonIntegrity {
		t.Fatalf("reason = %q, want %q", v.ReasonCode, ReasonIntegrity)
	}
}

func TestInboundPIIRewrite(t *testing.T) {
	g := testGate()

	v := g.Evaluate("My email is jane.doe@uni.ac.uk, can I still join the course?", Inbound, Context{})
	if v.Decision != DecisionRewrite {
		t.Fatalf("decision = %q, want rewrite", v.Decision)
	}
	if v.ReasonCode != ReasonPII {
		t.Fatalf("reason = %q, want %q", v.ReasonCode, ReasonPII)
	}
	if strings.Contains(v.RewrittenText, "jane.doe@uni.ac.uk") {
		t.Fatalf("rewritten text still contains the email: %q", v.RewrittenText)
	}
	if !strings.Contains(v.RewrittenText, "[REDACTED_EMAIL]") {
		t.Fatalf("rewritten text missing placeholder: %q", v.RewrittenText)
	}

	v = g.Evaluate("My student ID is B12345678, which campus library can I use?", Inbound, Context{})
	if v.Decision != DecisionRewrite {
		t.Fatalf("decision = %q, want rewrite", v.Decision)
	}
	if !strings.Contains(v.RewrittenText, "[REDACTED_STUDENT_ID]") {
		t.Fatalf("rewritten text missing placeholder: %q", v.RewrittenText)
	}
}

func TestOutboundGrounding(t *testing.T) {
	g := testGate()

	gctx := Context{
		Query:   "When does the library close?",
		Sources: []string{"The main library is open until 22:00 on weekdays."},
	}

	v := g.Evaluate("The library closes at 22:00 on weekdays.", Outbound, gctx)
	if v.Decision != DecisionAllow {
		t.Fatalf("grounded reply: decision = %q, want allow (reason %q)", v.Decision, v.ReasonCode)
	}

	v = g.Evaluate("The library closes at 23:30 on weekdays.", Outbound, gctx)
	if v.Decision != DecisionBlock {
		t.Fatalf("ungrounded reply: decision = %q, want block", v.Decision)
	}
	if v.ReasonCode != ReasonUngrounded {
		t.Fatalf("reason = %q, want %q", v.ReasonCode, ReasonUngrounded)
	}
}

func TestOutboundLengthRewrite(t *testing.T) {
	g := New(Config{
		Topics:         []string{"course"},
		MaxResponseLen: 120,
	})

	long := strings.Repeat("the campus advice desk can help with that ", 10)
	v := g.Evaluate(long, Outbound, Context{})
	if v.Decision != DecisionRewrite {
		t.Fatalf("decision = %q, want rewrite", v.Decision)
	}
	if v.ReasonCode != ReasonTooLong {
		t.Fatalf("reason = %q, want %q", v.ReasonCode, ReasonTooLong)
	}
	if n := utf8.RuneCountInString(v.RewrittenText); n > 120 {
		t.Fatalf("rewritten length = %d runes, want <= 120", n)
	}
	if !strings.HasSuffix(v.RewrittenText, "…") {
		t.Fatalf("rewritten text should end with ellipsis: %q", v.RewrittenText)
	}
}

func TestTruncatePreservesRuneBoundaries(t *testing.T) {
	g := New(Config{
		Topics:         []string{"course"},
		MaxResponseLen: 10,
	})

	// No spaces, so the cut lands mid-text; multi-byte runes must survive.
	long := strings.Repeat("café", 20)
	v := g.Evaluate(long, Outbound, Context{})
	if v.Decision != DecisionRewrite {
		t.Fatalf("decision = %q, want rewrite", v.Decision)
	}
	if !utf8.ValidString(v.RewrittenText) {
		t.Fatalf("rewritten text is not valid UTF-8: %q", v.RewrittenText)
	}
	if n := utf8.RuneCountInString(v.RewrittenText); n > 10 {
		t.Fatalf("rewritten length = %d runes, want <= 10", n)
	}
	if !strings.HasSuffix(v.RewrittenText, "…") {
		t.Fatalf("rewritten text should end with ellipsis: %q", v.RewrittenText)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	g := testGate()

	inputs := []struct {
		text string
		dir  Direction
		gctx Context
	}{
		{"When is the enrollment deadline?", Inbound, Context{}},
		{"What's the best pizza topping?", Inbound, Context{}},
		{"My email is a@b.com, which course fits me?", Inbound, Context{}},
		{"Fees are 9250 per year.", Outbound, Context{Query: "fees?", Sources: []string{"Tuition fees are 9250 per year."}}},
	}
	for _, in := range inputs {
		first := g.Evaluate(in.text, in.dir, in.gctx)
		for i := 0; i < 3; i++ {
			if got := g.Evaluate(in.text, in.dir, in.gctx); got != first {
				t.Fatalf("verdict changed across replays for %q: %+v vs %+v", in.text, first, got)
			}
		}
	}
}

func TestRedactPII(t *testing.T) {
	in := "card 4111 1111 1111 1111, phone +44 20 7946 0958, mail x@y.io"
	out, changed := redactPII(in)
	if !changed {
		t.Fatal("expected redaction")
	}
	for _, want := range []string{"[REDACTED_CARD]", "[REDACTED_PHONE]", "[REDACTED_EMAIL]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
	if strings.Contains(out, "4111") || strings.Contains(out, "7946") {
		t.Fatalf("digits leaked: %q", out)
	}

	out, changed = redactPII("no pii here")
	if changed || out != "no pii here" {
		t.Fatalf("clean text should pass through, got %q changed=%v", out, changed)
	}
}
