package notify

import "regexp"

// Redaction patterns for text that ends up in logs, error columns and dead
// letters. Never applied to the message actually sent to the recipient.
var (
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern  = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)
	handlePattern = regexp.MustCompile(`\$[A-Za-z][A-Za-z0-9_-]*`)
)

// RedactPII replaces email addresses, phone-number-shaped substrings and
// $handle payment tags with placeholder tokens. Emails are replaced first so
// the digits inside them are not half-eaten by the phone pattern.
func RedactPII(text string) string {
	text = emailPattern.ReplaceAllString(text, "[email]")
	text = phonePattern.ReplaceAllString(text, "[phone]")
	text = handlePattern.ReplaceAllString(text, "[handle]")
	return text
}
