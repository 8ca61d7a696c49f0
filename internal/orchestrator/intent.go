package orchestrator

import (
	"regexp"
	"strings"

	"github.com/campuskit/advisor/internal/profile"
)

const IntentScheduleMeeting = "schedule_meeting"

var meetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(book|schedule|arrange|set up|request)\b.{0,40}\b(meeting|appointment|call|session)\b`),
	regexp.MustCompile(`(?i)\b(speak|talk|meet)\s+(to|with)\s+(an?\s+)?(advisor|adviser|tutor|counsellor|counselor)\b`),
	regexp.MustCompile(`(?i)\bsee\s+(an?\s+)?(advisor|adviser)\b`),
}

// detectIntent recognizes actionable requests in a query. Today the only
// actionable intent is meeting scheduling with an advisor.
func detectIntent(query string) (profile.Intent, bool) {
	for _, p := range meetingPatterns {
		if p.MatchString(query) {
			return profile.Intent{
				Type: IntentScheduleMeeting,
				Parameters: map[string]string{
					"topic": strings.TrimSpace(query),
				},
			}, true
		}
	}
	return profile.Intent{}, false
}
