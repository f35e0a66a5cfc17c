// Package normalize turns the raw rendered text of a case into the typed
// CaseRecord: label mapping, redaction of secret-bearing values, free-text
// heuristics and category inference. It never fails; unmapped labels leave
// fields empty and unmatched categories degrade to UNKNOWN.
package normalize

import "regexp"

// Mask replaces the value segment of secret-bearing lines. Re-running
// redaction over already-redacted text is a no-op: the mask itself matches
// the value patterns and is replaced by itself.
const Mask = "[REDACTED]"

// Line-anchored patterns handle indented "Key : value" lines; the inline
// fallbacks cover secrets embedded mid-line. Logins, usernames and URLs are
// deliberately kept.
var redactLine = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^(\s*Password\s*:\s*).+$`),
	regexp.MustCompile(`(?im)^(\s*Password\s*Token\s*:\s*).+$`),
	regexp.MustCompile(`(?im)^(\s*Wrap\s*token\s*:\s*).+$`),
	regexp.MustCompile(`(?im)^(\s*Token\s*:\s*).+$`),
}

var redactInline = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(Password\s*:\s*)([^\s]+)`),
	regexp.MustCompile(`(?i)(Password\s*Token\s*:\s*)([^\s]+)`),
	regexp.MustCompile(`(?i)(Wrap\s*token\s*:\s*)([^\s]+)`),
}

// Redact masks obvious password/token values in text before it is persisted.
// This is best-effort masking of token-shaped substrings, not a guarantee of
// complete redaction.
func Redact(text string) string {
	if text == "" {
		return ""
	}
	for _, rx := range redactLine {
		text = rx.ReplaceAllString(text, "${1}"+Mask)
	}
	for _, rx := range redactInline {
		text = rx.ReplaceAllString(text, "${1}"+Mask)
	}
	return text
}
