package utils

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "***REDACTED***"

// sensitivePatterns match secret material that must never reach logs or
// API error responses. Each pattern captures the key name in group 1 and
// the secret value in group 2 so redaction can keep the key.
var sensitivePatterns = []*regexp.Regexp{
	// API keys (various formats)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)[=:]\s*["']?([a-zA-Z0-9_\-.]{8,})["']?`),
	// Bearer tokens
	regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_.\-]{8,})`),
	// Webhook signatures
	regexp.MustCompile(`(?i)(sha256=)([a-f0-9]{16,})`),
	// Passwords in URLs or config
	regexp.MustCompile(`(?i)(password|passwd|pwd)[=:]\s*["']?([^"'\s&]+)["']?`),
	// Generic secrets and tokens
	regexp.MustCompile(`(?i)(secret|token)[=:]\s*["']?([a-zA-Z0-9_\-.]{8,})["']?`),
}

// Redact masks secret material in a string, keeping key names so the
// message stays diagnosable.
func Redact(s string) string {
	result := s
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			parts := pattern.FindStringSubmatch(match)
			if len(parts) >= 3 {
				return parts[1] + redactedPlaceholder
			}
			return redactedPlaceholder
		})
	}
	return result
}

// RedactError returns the error text with secrets masked. Safe on nil.
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return Redact(err.Error())
}

// MaskToken shortens a credential for log output, showing only the first
// and last four characters.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// IsSensitiveField reports whether a field name suggests secret content.
// Used to scrub webhook payloads before they are stored or streamed.
func IsSensitiveField(fieldName string) bool {
	sensitiveNames := []string{
		"password", "passwd", "pwd",
		"secret", "token", "apikey", "api_key",
		"authorization", "credential", "private_key",
	}

	fieldLower := strings.ToLower(fieldName)
	for _, name := range sensitiveNames {
		if strings.Contains(fieldLower, name) {
			return true
		}
	}
	return false
}
