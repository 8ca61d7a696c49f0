package guardrail

import "regexp"

// rule is one policy entry: if any pattern matches the inbound text the rule
// fires with its reason code and user-facing message.
type rule struct {
	name     string
	reason   string
	message  string
	patterns []*regexp.Regexp
}

func defaultRules() []rule {
	return []rule{
		{
			name:   "personal_info_fishing",
			reason: ReasonPersonalInfo,
			message: "I can't ask for or handle personal sensitive information. " +
				"For account issues please contact student services directly.",
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(password|passcode|pin|bank account|credit card|card number|login credentials)\b`),
				regexp.MustCompile(`(?i)\b(national insurance|social security)\b`),
				regexp.MustCompile(`(?i)(give me|tell me|share|send)\b.*\b(personal|private|confidential) (details|information|data)`),
				regexp.MustCompile(`(?i)what('s| is)\b.*\b(home address|phone number|password)`),
			},
		},
		{
			name:   "abusive_content",
			reason: ReasonAbuse,
			message: "I can't help with that. Please keep our conversation focused on " +
				"university topics and services.",
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)\b(hate|harass|harassment|abuse|threaten|threat)\b`),
				regexp.MustCompile(`(?i)\b(hurt|harm|attack)\b.*\b(someone|somebody|them|him|her|people)\b`),
			},
		},
		{
			name:   "academic_integrity",
			reason: ReasonIntegrity,
			message: "I can't help with academic dishonesty, but I can point you to " +
				"legitimate study support services.",
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)(write|do|complete|finish)\s+my\s+(assignment|essay|exam|test|homework|dissertation)`),
				regexp.MustCompile(`(?i)\b(answers|solutions)\s+(to|for)\s+(the\s+)?(exam|test|quiz|assessment)`),
				regexp.MustCompile(`(?i)\b(cheat|plagiari[sz]e|plagiarism)\b`),
				regexp.MustCompile(`(?i)\b(hack|bypass|circumvent)\b.*\b(exam|test|turnitin|system)\b`),
			},
		},
	}
}

// PII patterns applied as rewrites rather than blocks: the redacted question
// can still be answered.
var (
	emailPattern     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern     = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern      = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	studentIDPattern = regexp.MustCompile(`(?i)\bB\d{8}\b`)
)

// redactPII masks common high-risk PII patterns.
func redactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	next = studentIDPattern.ReplaceAllString(out, "[REDACTED_STUDENT_ID]")
	changed = changed || next != out
	out = next

	// Card redaction runs before phone so card numbers are not classified
	// as phone numbers.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}
