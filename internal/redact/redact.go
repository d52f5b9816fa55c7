// Package redact scrubs credentials from text that leaves the process,
// either toward a model provider or into the log.
package redact

import "regexp"

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

var rules = []rule{
	// .env style VAR=value lines keep the name.
	{regexp.MustCompile(`(?m)^([A-Z_]+)=\S+$`), "${1}=[REDACTED]"},
	{regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9._~+/=-]{16,}`), "${1} [REDACTED]"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9\-_]{20,}`), "[REDACTED_KEY]"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "[REDACTED_KEY]"},
	{regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36}`), "[REDACTED_KEY]"},
}

// Clean replaces anything that looks like a secret.
func Clean(input string) string {
	for _, r := range rules {
		input = r.pattern.ReplaceAllString(input, r.replacement)
	}
	return input
}

// Error renders err for display or logging with secrets removed.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Clean(err.Error())
}
