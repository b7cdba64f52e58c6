// exception.go maps errors and panics into exception fragments.

package gatey

import (
	"reflect"
	"strings"
)

// ExceptionClasser lets an error choose the class name reported for it.
type ExceptionClasser interface {
	ExceptionClass() string
}

// MapOptions controls ExceptionFromError.
type MapOptions struct {
	// SkipVars disables variable capture.
	SkipVars bool

	// IncludeContext enables source context.
	IncludeContext bool

	// Window is the number of source lines around a frame (default 5).
	Window int

	// Mode selects which frames receive source context.
	Mode ContextMode
}

// ExceptionFromError builds the exception fragment for err. When err carries
// no stack of its own, the stack of the caller is used.
//
// It never panics: failures while reading frames or variables yield partial
// fields.
func ExceptionFromError(err error, opts MapOptions) Exception {
	return exceptionFromError(err, opts, 1)
}

func exceptionFromError(err error, opts MapOptions, skip int) (exc Exception) {
	exc = Exception{
		Vars:      Variables{Locals: map[string]string{}, Globals: map[string]string{}},
		Traceback: []Frame{},
	}

	// A broken error must not break the capture of itself.
	defer func() { _ = recover() }()

	exc.Class = ClassOf(err)
	if err != nil {
		exc.Description = describe(err)
	}

	exc.Vars = VariablesOf(err, !opts.SkipVars)

	pcs := StackOf(err)
	if len(pcs) == 0 {
		pcs = callers(skip + 1)
	}
	exc.Traceback = NormalizeStack(pcs, TracebackOptions{
		IncludeContext: opts.IncludeContext,
		Window:         opts.Window,
		Mode:           opts.Mode,
	})
	return exc
}

func describe(err error) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = "<unprintable error>"
		}
	}()
	return err.Error()
}

// ClassOf returns the class name reported for err: its ExceptionClass when
// implemented, otherwise the name of its dynamic type without pointer or
// package. Wrappers that only add a stack or variables are looked through.
func ClassOf(err error) string {
	if err == nil {
		return "nil"
	}
	err = unwrapTransparent(err)
	if c, ok := err.(ExceptionClasser); ok {
		if name := c.ExceptionClass(); name != "" {
			return name
		}
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	name := t.String()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// unwrapTransparent skips wrappers that do not change the error message.
func unwrapTransparent(err error) error {
	for depth := 0; depth < 100; depth++ {
		var inner error
		switch v := err.(type) {
		case *localsError:
			inner = v.err
		case *caughtError:
			inner = v.err
		case stackTracer:
			u, ok := err.(interface{ Unwrap() error })
			if !ok {
				return err
			}
			inner = u.Unwrap()
			if inner == nil || inner.Error() != err.Error() {
				return err
			}
		default:
			return err
		}
		if inner == nil {
			return err
		}
		err = inner
	}
	return err
}
