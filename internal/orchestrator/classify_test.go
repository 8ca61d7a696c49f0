package orchestrator

import "testing"

func TestTimeSensitive(t *testing.T) {
	cases := []struct {
		query string
		want  bool
	}{
		{"What are the deadlines for semester 2 enrollment?", true},
		{"When does the library close?", true},
		{"Is the gym open today?", true},
		{"What is the current status of my application?", true},
		{"Tell me about the computer science curriculum", false},
		{"Which library services are available?", false},
		{"How do I reference a journal article?", false},
	}
	for _, tc := range cases {
		if got := timeSensitive(tc.query); got != tc.want {
			t.Errorf("timeSensitive(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		query string
		want  bool
	}{
		{"Can I book a meeting with an advisor?", true},
		{"Please schedule an appointment for next week", true},
		{"I'd like to speak to an advisor about my course", true},
		{"How do I set up a call with my tutor?", true},
		{"What does my course timetable look like?", false},
		{"Where is the advisor's office?", false},
	}
	for _, tc := range cases {
		intent, got := detectIntent(tc.query)
		if got != tc.want {
			t.Errorf("detectIntent(%q) = %v, want %v", tc.query, got, tc.want)
			continue
		}
		if got && intent.Type != IntentScheduleMeeting {
			t.Errorf("detectIntent(%q) type = %q, want %q", tc.query, intent.Type, IntentScheduleMeeting)
		}
	}
}
