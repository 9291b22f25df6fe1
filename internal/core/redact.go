package core

import "regexp"

// RedactionMarker replaces sensitive substrings in surfaced messages.
const RedactionMarker = "[REDACTED]"

var (
	pemBlockPattern = regexp.MustCompile(`(?s)-----BEGIN [A-Z0-9 ]+-----.*?-----END [A-Z0-9 ]+-----`)
	// A PEM header whose footer was truncated away still leaks the key body.
	pemOpenPattern = regexp.MustCompile(`(?s)-----BEGIN [A-Z0-9 ]+-----.*`)
	jwtPattern     = regexp.MustCompile(`eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)
	bearerPattern  = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
	uuidPattern    = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// Redact replaces PEM blocks, JWT-shaped tokens, bearer credentials and UUIDs
// with RedactionMarker.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = pemBlockPattern.ReplaceAllString(s, RedactionMarker)
	s = pemOpenPattern.ReplaceAllString(s, RedactionMarker)
	s = jwtPattern.ReplaceAllString(s, RedactionMarker)
	s = bearerPattern.ReplaceAllString(s, "${1}"+RedactionMarker)
	s = uuidPattern.ReplaceAllString(s, RedactionMarker)
	return s
}
