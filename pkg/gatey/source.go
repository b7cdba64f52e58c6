// source.go reads source lines around a fault site.

package gatey

import (
	"os"
	"strings"
)

// DefaultContextWindow is the number of lines read before and after a frame.
const DefaultContextWindow = 5

// ReadContext returns up to window lines before and after the 1-based line of
// filename, plus the line itself. Lines are stripped of their terminators and
// runs of four spaces become tabs.
//
// The file is read on every call since it may change while the process runs.
// An unreadable file or an out-of-range line yields an empty context with a
// nil Target; ReadContext never fails.
func ReadContext(filename string, line, window int) SourceContext {
	empty := SourceContext{Pre: []string{}, Post: []string{}}
	if window < 0 {
		window = 0
	}
	if filename == "" || line < 1 {
		return empty
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return empty
	}

	lines := splitLines(string(data))
	if line > len(lines) {
		return empty
	}

	target := lines[line-1]
	return SourceContext{
		Pre:    lines[max(0, line-window-1) : line-1],
		Target: &target,
		Post:   lines[line:min(line+window, len(lines))],
	}
}

func splitLines(content string) []string {
	raw := strings.SplitAfter(content, "\n")
	if n := len(raw); n > 0 && raw[n-1] == "" {
		raw = raw[:n-1]
	}
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = normalizeSourceLine(l)
	}
	return lines
}

func normalizeSourceLine(l string) string {
	l = strings.TrimRight(l, "\r\n")
	return strings.ReplaceAll(l, "    ", "\t")
}
