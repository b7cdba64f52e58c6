// scrubber.go redacts sensitive data from events before they are queued.

package gatey

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// ScrubberConfig controls scrubbing behavior.
type ScrubberConfig struct {
	// SensitiveKeys contains additional case-insensitive substrings marking
	// variable names whose values are redacted.
	SensitiveKeys []string

	// MaxMessageSize is the maximum length for messages and descriptions (default: 4096).
	MaxMessageSize int

	// MaxVariableSize is the maximum length of a single variable value (default: 1024).
	MaxVariableSize int

	// MaxVariables is the maximum number of locals and of globals kept (default: 256).
	MaxVariables int

	// DisableMessageScrubbing turns off redaction of secrets and PII in
	// messages and descriptions. Truncation still applies.
	DisableMessageScrubbing bool
}

// DefaultScrubberConfig returns production-safe defaults.
func DefaultScrubberConfig() ScrubberConfig {
	return ScrubberConfig{
		MaxMessageSize:  4096,
		MaxVariableSize: 1024,
		MaxVariables:    256,
	}
}

const redacted = "[REDACTED]"

// Compiled regex patterns for message scrubbing
var messageScrubPatterns = []*regexp.Regexp{
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w\-\.=]+`),
	regexp.MustCompile(`(?i)sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)gh[po]_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`(?i)xox[baprs]-[a-zA-Z0-9\-]{10,}`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),

	// Credentials
	regexp.MustCompile(`(?i)(password|passwd|credential)[=:\s]+['"]?[^\s'",]+['"]?`),

	// Email and card numbers
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
}

// Sensitive variable name patterns (case-insensitive substring match)
var sensitiveKeyPatterns = []string{
	"token",
	"key",
	"secret",
	"password",
	"passwd",
	"credential",
	"auth",
	"cookie",
}

// Scrubber redacts sensitive data from events.
type Scrubber struct {
	cfg  ScrubberConfig
	keys []string
}

// NewScrubber creates a scrubber. Zero limits fall back to the defaults.
func NewScrubber(cfg ScrubberConfig) *Scrubber {
	def := DefaultScrubberConfig()
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.MaxVariableSize <= 0 {
		cfg.MaxVariableSize = def.MaxVariableSize
	}
	if cfg.MaxVariables <= 0 {
		cfg.MaxVariables = def.MaxVariables
	}

	keys := append([]string{}, sensitiveKeyPatterns...)
	for _, k := range cfg.SensitiveKeys {
		keys = append(keys, strings.ToLower(k))
	}
	return &Scrubber{cfg: cfg, keys: keys}
}

// ScrubEvent scrubs the message, the exception description, and variables in place.
func (s *Scrubber) ScrubEvent(event *Event) {
	event.Message = s.ScrubMessage(event.Message)
	if event.Exception != nil {
		event.Exception.Description = s.ScrubMessage(event.Exception.Description)
		event.Exception.Vars = Variables{
			Locals:  s.ScrubVariables(event.Exception.Vars.Locals),
			Globals: s.ScrubVariables(event.Exception.Vars.Globals),
		}
	}
}

// ScrubMessage truncates msg and redacts secret patterns when enabled.
func (s *Scrubber) ScrubMessage(msg string) string {
	if msg == "" {
		return msg
	}
	msg = truncateWithMarker(msg, s.cfg.MaxMessageSize)
	if s.cfg.DisableMessageScrubbing {
		return msg
	}
	for _, pattern := range messageScrubPatterns {
		msg = pattern.ReplaceAllString(msg, redacted)
	}
	return msg
}

// ScrubVariables redacts sensitive names and truncates long values.
// Variables beyond MaxVariables are dropped in key order.
func (s *Scrubber) ScrubVariables(vars map[string]string) map[string]string {
	if vars == nil {
		return nil
	}

	result := make(map[string]string, min(len(vars), s.cfg.MaxVariables))
	for _, key := range slices.Sorted(maps.Keys(vars)) {
		if len(result) >= s.cfg.MaxVariables {
			break
		}
		if s.isSensitiveKey(key) {
			result[key] = redacted
			continue
		}
		result[key] = truncateWithMarker(vars[key], s.cfg.MaxVariableSize)
	}
	return result
}

// isSensitiveKey checks if a variable name matches sensitive patterns.
func (s *Scrubber) isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range s.keys {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// truncateWithMarker truncates a string and adds a truncation marker.
func truncateWithMarker(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	marker := "...[TRUNCATED]"
	if maxLen <= len(marker) {
		return marker[:maxLen]
	}
	cut := maxLen - len(marker)
	// Never split a UTF-8 sequence.
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}
