package stringutil

import (
	"regexp"
	"strings"

	"github.com/syslua/syslua/pkg/logger"
)

var sanitizeLog = logger.New("stringutil:sanitize")

// Regex patterns for detecting potential secret key names
var (
	// Match uppercase snake_case identifiers that look like secret names (e.g., MY_SECRET_KEY, GITHUB_TOKEN, API_KEY)
	secretNamePattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]*_[A-Z0-9_]+)\b`)

	// Match PascalCase identifiers ending with security-related suffixes (e.g., GitHubToken, ApiKey, DeploySecret)
	pascalCaseSecretPattern = regexp.MustCompile(`\b([A-Z][a-z0-9]*(?:[A-Z][a-z0-9]*)*(?:Token|Key|Secret|Password|Credential|Auth))\b`)

	// Common non-sensitive environment keywords to exclude from redaction
	commonEnvKeywords = map[string]bool{
		"PATH": true, "HOME": true, "SHELL": true, "LANG": true,
		"USER": true, "PWD": true, "TERM": true, "EDITOR": true,
		"TMPDIR": true, "DISPLAY": true,
	}
)

// SanitizeErrorMessage redacts probable secret key names from captured action
// output before it reaches a failure report or the logger. exec actions
// receive a hermetic, caller-supplied environment (spec §4.C), but stderr
// tails and stdout captures often echo back the name of whatever credential
// a build or bind script failed to find — this keeps that out of logs.
func SanitizeErrorMessage(message string) string {
	if message == "" {
		return message
	}

	sanitizeLog.Printf("Sanitizing captured output: length=%d", len(message))

	sanitized := secretNamePattern.ReplaceAllStringFunc(message, func(match string) string {
		if commonEnvKeywords[match] {
			return match
		}
		if strings.HasPrefix(match, "SYSLUA_") {
			return match
		}
		sanitizeLog.Printf("Redacted snake_case secret pattern: %s", match)
		return "[REDACTED]"
	})

	sanitized = pascalCaseSecretPattern.ReplaceAllString(sanitized, "[REDACTED]")

	if sanitized != message {
		sanitizeLog.Print("Output sanitization applied redactions")
	}

	return sanitized
}
