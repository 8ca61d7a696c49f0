// Package guardrail classifies inbound queries and candidate replies against
// domain-scope and safety policy. The gate is deterministic given identical
// inputs and configuration, so policy behavior is testable by fixture replay.
package guardrail

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Decision string

const (
	DecisionAllow   Decision = "allow"
	DecisionBlock   Decision = "block"
	DecisionRewrite Decision = "rewrite"
)

type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Reason codes surfaced on verdicts.
const (
	ReasonPersonalInfo = "personal_info_request"
	ReasonAbuse        = "abusive_content"
	ReasonIntegrity    = "academic_integrity"
	ReasonOffTopic     = "off_topic"
	ReasonPII          = "pii_redacted"
	ReasonUngrounded   = "ungrounded_fact"
	ReasonTooLong      = "response_too_long"
)

// Verdict is the gate's decision for one text in one direction.
type Verdict struct {
	Decision      Decision
	ReasonCode    string
	RewrittenText string
	// Message is the user-facing refusal for a block, when the firing rule
	// carries one.
	Message string
	// TopicScore is the inbound domain-relevance score in [0,1].
	TopicScore float64
}

// Context carries per-turn facts the gate may check a text against.
type Context struct {
	// Sources holds the passages and profile facts the candidate reply is
	// allowed to draw on. Outbound only.
	Sources []string
	// Query is the (possibly rewritten) user query for this turn.
	Query string
}

type Config struct {
	Topics         []string
	MaxResponseLen int
	// MinTopicScore is the inbound relevance floor; below it the query is
	// out of domain. One topic keyword hit is enough to clear the default.
	MinTopicScore float64
	// OffTopicMessage is the redirect shown for out-of-domain queries.
	OffTopicMessage string
}

type Gate struct {
	rules           []rule
	topics          map[string]struct{}
	phraseTopics    []string
	maxResponseLen  int
	minTopicScore   float64
	offTopicMessage string
}

func New(cfg Config) *Gate {
	topics := make(map[string]struct{}, len(cfg.Topics))
	var phrases []string
	for _, t := range cfg.Topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.ContainsRune(t, ' ') {
			phrases = append(phrases, t)
			continue
		}
		topics[t] = struct{}{}
	}

	maxLen := cfg.MaxResponseLen
	if maxLen <= 0 {
		maxLen = 1000
	}
	minScore := cfg.MinTopicScore
	if minScore <= 0 {
		minScore = 0.25
	}
	msg := cfg.OffTopicMessage
	if msg == "" {
		msg = "I'm here to help with university topics, courses, and student services. " +
			"How can I assist you with your studies?"
	}

	return &Gate{
		rules:           defaultRules(),
		topics:          topics,
		phraseTopics:    phrases,
		maxResponseLen:  maxLen,
		minTopicScore:   minScore,
		offTopicMessage: msg,
	}
}

// Evaluate classifies text for the given direction. Policy blocks win over
// every other signal: a flagged keyword dominates topical adjacency, so a
// borderline query that trips a block rule is refused, never scored through.
func (g *Gate) Evaluate(text string, dir Direction, gctx Context) Verdict {
	if dir == Outbound {
		return g.evaluateOutbound(text, gctx)
	}
	return g.evaluateInbound(text)
}

func (g *Gate) evaluateInbound(text string) Verdict {
	lower := strings.ToLower(text)

	for _, r := range g.rules {
		for _, p := range r.patterns {
			if p.MatchString(lower) {
				return Verdict{
					Decision:   DecisionBlock,
					ReasonCode: r.reason,
					Message:    r.message,
				}
			}
		}
	}

	score := g.topicScore(lower)
	if score < g.minTopicScore {
		return Verdict{
			Decision:   DecisionBlock,
			ReasonCode: ReasonOffTopic,
			Message:    g.offTopicMessage,
			TopicScore: score,
		}
	}

	if redacted, changed := redactPII(text); changed {
		return Verdict{
			Decision:      DecisionRewrite,
			ReasonCode:    ReasonPII,
			RewrittenText: redacted,
			TopicScore:    score,
		}
	}

	return Verdict{Decision: DecisionAllow, TopicScore: score}
}

func (g *Gate) evaluateOutbound(text string, gctx Context) Verdict {
	if tok, ok := ungroundedFact(text, gctx); ok {
		return Verdict{
			Decision:   DecisionBlock,
			ReasonCode: ReasonUngrounded,
			Message:    "ungrounded fact: " + tok,
		}
	}

	if utf8.RuneCountInString(text) > g.maxResponseLen {
		return Verdict{
			Decision:      DecisionRewrite,
			ReasonCode:    ReasonTooLong,
			RewrittenText: truncate(text, g.maxResponseLen),
		}
	}

	return Verdict{Decision: DecisionAllow}
}

// topicScore blends exact keyword hits with token overlap against multiword
// topics. One clean keyword hit clears the default floor.
func (g *Gate) topicScore(lower string) float64 {
	matches := 0
	for _, tok := range tokenize(lower) {
		if _, ok := g.topics[tok]; ok {
			matches++
		}
	}
	for _, phrase := range g.phraseTopics {
		if strings.Contains(lower, phrase) {
			matches += 2
		}
	}

	score := float64(matches) / 4.0
	if score > 1 {
		score = 1
	}
	return score
}

// ungroundedFact reports the first factual token in text (a number, a date
// fragment, or a URL) that appears in neither the grounding sources nor the
// query itself.
func ungroundedFact(text string, gctx Context) (string, bool) {
	allowed := strings.ToLower(gctx.Query)
	for _, s := range gctx.Sources {
		allowed += "\n" + strings.ToLower(s)
	}

	for _, tok := range tokenize(strings.ToLower(text)) {
		if !isFactToken(tok) {
			continue
		}
		if !strings.Contains(allowed, tok) {
			return tok, true
		}
	}
	return "", false
}

func isFactToken(tok string) bool {
	if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
		return true
	}
	for _, r := range tok {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func tokenize(lower string) []string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', ',', ';', '!', '?', '"', '\'', '(', ')', '[', ']':
			return true
		}
		return false
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".:")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// truncate cuts text down to max runes, never splitting a multi-byte rune.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	cut := runes[:max-3] // leave room for the ellipsis
	for i := len(cut) - 1; i > max/2; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRight(string(cut), " .,;:") + "…"
}
