package orchestrator

import "strings"

// Terms that mark a query as time-sensitive: the answer may have changed
// since the knowledge snapshot, so fresh results are consulted even when the
// index scores well.
var timeSensitiveTerms = []string{
	"deadline", "deadlines",
	"date", "dates",
	"when",
	"today", "tomorrow", "this week", "this semester", "this term",
	"now", "current", "currently", "latest", "upcoming",
	"status", "schedule", "timetable change",
	"closing", "opening", "open today", "closed today",
}

func timeSensitive(query string) bool {
	lower := strings.ToLower(query)
	tokens := make(map[string]struct{})
	for _, f := range strings.Fields(lower) {
		tokens[strings.Trim(f, ".,;:!?\"'()")] = struct{}{}
	}
	for _, term := range timeSensitiveTerms {
		if strings.ContainsRune(term, ' ') {
			if strings.Contains(lower, term) {
				return true
			}
			continue
		}
		if _, ok := tokens[term]; ok {
			return true
		}
	}
	return false
}
