package gatey

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.go")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line " + strings.Repeat("x", i)
	}
	return lines
}

func TestReadContext_Middle(t *testing.T) {
	lines := numberedLines(20)
	path := writeSource(t, lines...)

	ctx := ReadContext(path, 10, 5)

	if ctx.Target == nil || *ctx.Target != lines[9] {
		t.Fatalf("Target = %v, want %q", ctx.Target, lines[9])
	}
	if len(ctx.Pre) != 5 || len(ctx.Post) != 5 {
		t.Fatalf("len(Pre)=%d len(Post)=%d, want 5 and 5", len(ctx.Pre), len(ctx.Post))
	}
	if ctx.Pre[0] != lines[4] || ctx.Pre[4] != lines[8] {
		t.Errorf("Pre = %v, want lines 5..9", ctx.Pre)
	}
	if ctx.Post[0] != lines[10] || ctx.Post[4] != lines[14] {
		t.Errorf("Post = %v, want lines 11..15", ctx.Post)
	}
}

func TestReadContext_ClippedAtBounds(t *testing.T) {
	lines := numberedLines(4)
	path := writeSource(t, lines...)

	first := ReadContext(path, 1, 5)
	if len(first.Pre) != 0 {
		t.Errorf("first line Pre = %v, want empty", first.Pre)
	}
	if len(first.Post) != 3 {
		t.Errorf("first line len(Post) = %d, want 3", len(first.Post))
	}

	last := ReadContext(path, 4, 5)
	if len(last.Pre) != 3 {
		t.Errorf("last line len(Pre) = %d, want 3", len(last.Pre))
	}
	if len(last.Post) != 0 {
		t.Errorf("last line Post = %v, want empty", last.Post)
	}
	if last.Target == nil || *last.Target != lines[3] {
		t.Errorf("last line Target = %v, want %q", last.Target, lines[3])
	}
}

func TestReadContext_NormalizesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crlf.go")
	content := "package x\r\n\r\nfunc f() {\r\n    return\r\n}\r\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx := ReadContext(path, 4, 1)

	if ctx.Target == nil || *ctx.Target != "\treturn" {
		t.Fatalf("Target = %q, want %q", derefString(ctx.Target), "\treturn")
	}
	if len(ctx.Pre) != 1 || ctx.Pre[0] != "func f() {" {
		t.Errorf("Pre = %q, want [\"func f() {\"]", ctx.Pre)
	}
	if len(ctx.Post) != 1 || ctx.Post[0] != "}" {
		t.Errorf("Post = %q, want [\"}\"]", ctx.Post)
	}
}

func TestReadContext_Unavailable(t *testing.T) {
	path := writeSource(t, numberedLines(3)...)

	tests := []struct {
		name string
		file string
		line int
	}{
		{"missing file", filepath.Join(t.TempDir(), "missing.go"), 1},
		{"empty filename", "", 1},
		{"line zero", path, 0},
		{"line past end", path, 4},
		{"directory", t.TempDir(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ReadContext(tt.file, tt.line, 5)
			if ctx.Target != nil {
				t.Errorf("Target = %q, want nil", *ctx.Target)
			}
			if ctx.Pre == nil || ctx.Post == nil {
				t.Error("Pre and Post must be empty, not nil")
			}
			if len(ctx.Pre) != 0 || len(ctx.Post) != 0 {
				t.Errorf("Pre=%v Post=%v, want empty", ctx.Pre, ctx.Post)
			}
		})
	}
}

func TestReadContext_ZeroWindow(t *testing.T) {
	lines := numberedLines(5)
	path := writeSource(t, lines...)

	ctx := ReadContext(path, 3, 0)
	if len(ctx.Pre) != 0 || len(ctx.Post) != 0 {
		t.Errorf("Pre=%v Post=%v, want empty", ctx.Pre, ctx.Post)
	}
	if ctx.Target == nil || *ctx.Target != lines[2] {
		t.Errorf("Target = %q, want %q", derefString(ctx.Target), lines[2])
	}
}

func derefString(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
