package agent

import (
	"regexp"
	"strings"
)

// builtinSecretPatterns matches common credential shapes so tool output
// never reaches the model or a transcript unredacted.
var builtinSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`(?i)AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)(password|passwd|secret|api_key|apikey|token)\s*[:=]\s*["']?[^\s"']{8,}`),
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
}

// ToolResultGuard redacts likely secrets and truncates oversized output
// before a tool result is persisted or streamed back to the model.
type ToolResultGuard struct {
	// MaxContentLength truncates Content beyond this many bytes (0 = no limit).
	MaxContentLength int

	// ExtraPatterns are additional regexes checked alongside the builtins.
	ExtraPatterns []*regexp.Regexp

	// Disabled turns off all redaction/truncation, for tests and tools
	// that are known not to touch sensitive data.
	Disabled bool
}

// active reports whether g carries any non-zero configuration, used by
// mergeOptions to decide whether an override replaces the base guard.
func (g ToolResultGuard) active() bool {
	return g.MaxContentLength != 0 || len(g.ExtraPatterns) != 0 || g.Disabled
}

// DetectSecrets reports whether content matches any configured secret
// pattern.
func (g ToolResultGuard) DetectSecrets(content string) bool {
	if g.Disabled {
		return false
	}
	for _, pattern := range builtinSecretPatterns {
		if pattern.MatchString(content) {
			return true
		}
	}
	for _, pattern := range g.ExtraPatterns {
		if pattern.MatchString(content) {
			return true
		}
	}
	return false
}

// Apply redacts secret-like substrings and truncates content, returning
// the sanitized text.
func (g ToolResultGuard) Apply(content string) string {
	if g.Disabled {
		return content
	}
	out := content
	for _, pattern := range builtinSecretPatterns {
		out = pattern.ReplaceAllString(out, "[REDACTED]")
	}
	for _, pattern := range g.ExtraPatterns {
		out = pattern.ReplaceAllString(out, "[REDACTED]")
	}
	if g.MaxContentLength > 0 && len(out) > g.MaxContentLength {
		out = out[:g.MaxContentLength] + "\n...[truncated]"
	}
	return out
}

// SanitizeToolResult applies Apply to a ToolResult's content in place and
// returns it for chaining.
func (g ToolResultGuard) SanitizeToolResult(result *ToolResult) *ToolResult {
	if result == nil || g.Disabled {
		return result
	}
	result.Content = g.Apply(result.Content)
	return result
}

// isLikelyBinary is a cheap heuristic used before sanitizing large
// payloads, since regex scans of binary blobs are wasted and risky.
func isLikelyBinary(content string) bool {
	if len(content) == 0 {
		return false
	}
	sample := content
	if len(sample) > 512 {
		sample = sample[:512]
	}
	return strings.ContainsRune(sample, '\x00')
}
