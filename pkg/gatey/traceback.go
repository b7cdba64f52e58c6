// traceback.go turns program counters into normalized frames.

package gatey

import (
	"errors"
	"runtime"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ContextMode selects which frames receive source context.
type ContextMode int

const (
	// ContextTailOnly attaches source context to the innermost frame only.
	ContextTailOnly ContextMode = iota

	// ContextAllFrames attaches source context to every frame.
	ContextAllFrames
)

// TracebackOptions controls NormalizeStack.
type TracebackOptions struct {
	// IncludeContext enables source context.
	IncludeContext bool

	// Window is the number of context lines around each frame (default 5).
	Window int

	// Mode selects the frames that receive context.
	Mode ContextMode
}

const maxStackDepth = 64

// stackTracer is implemented by errors from github.com/pkg/errors.
type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// NormalizeStack converts program counters, innermost first as returned by
// runtime.Callers, into frames ordered outermost first. Runtime frames are
// dropped, so the last frame is the fault site in user code.
func NormalizeStack(pcs []uintptr, opts TracebackOptions) []Frame {
	window := opts.Window
	if window <= 0 {
		window = DefaultContextWindow
	}

	frames := make([]Frame, 0, len(pcs))
	if len(pcs) > 0 {
		iter := runtime.CallersFrames(pcs)
		for {
			rf, more := iter.Next()
			if !isRuntimeFrame(rf.Function) {
				frames = append(frames, frameFromRuntime(rf))
			}
			if !more {
				break
			}
		}
	}

	// Runtime order is innermost first.
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}

	if !opts.IncludeContext || len(frames) == 0 {
		return frames
	}

	switch opts.Mode {
	case ContextAllFrames:
		for i := range frames {
			frames[i].Context = contextFor(frames[i], window)
		}
	default:
		last := len(frames) - 1
		frames[last].Context = contextFor(frames[last], window)
	}
	return frames
}

// StackOf returns the program counters recorded for err, innermost first.
//
// The innermost github.com/pkg/errors stack in the unwrap chain wins, then the
// stack of a recovered panic. It returns nil when err carries no stack.
func StackOf(err error) []uintptr {
	var (
		traced []uintptr
		panics []uintptr
	)
	walkChain(err, func(e error) {
		switch v := e.(type) {
		case stackTracer:
			if st := v.StackTrace(); len(st) > 0 {
				traced = make([]uintptr, len(st))
				for i, f := range st {
					traced[i] = uintptr(f)
				}
			}
		case *PanicError:
			if len(v.pcs) > 0 && panics == nil {
				panics = v.pcs
			}
		}
	})
	if traced != nil {
		return traced
	}
	return panics
}

// callers returns the program counters of the caller skip frames above callers.
func callers(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	return pcs[:n]
}

// walkChain calls fn for err and every error it wraps, outermost first.
// For multi-errors only the first branch is followed.
func walkChain(err error, fn func(error)) {
	for depth := 0; err != nil && depth < 100; depth++ {
		fn(err)
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return
			}
			err = errs[0]
		default:
			err = errors.Unwrap(err)
		}
	}
}

func frameFromRuntime(rf runtime.Frame) Frame {
	module, name := splitFunctionName(rf.Function)
	return Frame{
		Filename: rf.File,
		Name:     name,
		Line:     rf.Line,
		Module:   module,
	}
}

func contextFor(f Frame, window int) *SourceContext {
	ctx := ReadContext(f.Filename, f.Line, window)
	return &ctx
}

// splitFunctionName splits "example.com/pkg/sub.(*T).Method" into
// "example.com/pkg/sub" and "(*T).Method".
func splitFunctionName(fn string) (module, name string) {
	if fn == "" {
		return "", UnknownFunction
	}
	slash := strings.LastIndex(fn, "/")
	dot := strings.Index(fn[slash+1:], ".")
	if dot < 0 {
		return "", fn
	}
	dot += slash + 1
	// Dots in the last path element are escaped in symbol names.
	return strings.ReplaceAll(fn[:dot], "%2e", "."), fn[dot+1:]
}

func isRuntimeFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.")
}
