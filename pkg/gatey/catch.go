// catch.go wraps functions so their errors and panics are captured.

package gatey

import (
	"context"
	"reflect"
)

// CatchOption configures Catch.
type CatchOption func(*catchConfig)

type catchConfig struct {
	ctx                context.Context
	reraise            bool
	match              func(error) bool
	ignored            []reflect.Type
	skipGlobalOnIgnore bool
}

// WithReraise controls whether a captured error is returned (or a captured
// panic re-raised) after capture (default true). When false the wrapped
// function returns nil and zero values.
func WithReraise(reraise bool) CatchOption {
	return func(c *catchConfig) {
		c.reraise = reraise
	}
}

// CatchOnly restricts handling to errors for which match returns true. Other
// errors and panics pass through untouched. See IsType.
func CatchOnly(match func(error) bool) CatchOption {
	return func(c *catchConfig) {
		c.match = match
	}
}

// IgnoreTypes passes through errors whose dynamic type is exactly the type of
// one of the samples, without capturing them. Wrapping types and types that
// merely implement the same interfaces are not ignored.
//
//	client.Catch(gatey.IgnoreTypes(&NotFoundError{}))
func IgnoreTypes(samples ...error) CatchOption {
	return func(c *catchConfig) {
		for _, s := range samples {
			if s != nil {
				c.ignored = append(c.ignored, reflect.TypeOf(s))
			}
		}
	}
}

// WithSkipGlobalHookOnIgnore marks ignored errors so the global hook does not
// report them either. The marked error is returned wrapped, like a handled one.
func WithSkipGlobalHookOnIgnore(skip bool) CatchOption {
	return func(c *catchConfig) {
		c.skipGlobalOnIgnore = skip
	}
}

// WithCatchContext sets the context used for captures (default context.Background).
func WithCatchContext(ctx context.Context) CatchOption {
	return func(c *catchConfig) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// IsType reports whether err's dynamic type is T, or implements T when T is
// an interface. It is a convenient CatchOnly matcher:
//
//	client.Catch(gatey.CatchOnly(gatey.IsType[*TimeoutError]))
func IsType[T any](err error) bool {
	_, ok := any(err).(T)
	return ok
}

// Catch returns a wrapper that captures the errors returned by, and the
// panics raised in, the wrapped function.
//
// A matching error that is in the ignore list is passed through unchanged.
// Any other matching error is captured and marked handled, so the global hook
// will not report it again, then returned (or re-panicked) when reraise is
// set, or swallowed otherwise. Capture failures are logged and never replace
// the original error.
//
// A handled error is returned wrapped, and a handled panic is re-raised as
// its *PanicError; the marker travels with that value only, so errors.Is
// still matches the original while a later failure with the same sentinel
// is reported again.
//
//	run := client.Catch(gatey.WithReraise(false))(func() error {
//	    return doWork()
//	})
//	_ = run()
func (c *Client) Catch(opts ...CatchOption) func(fn func() error) func() error {
	cfg := catchConfig{ctx: context.Background(), reraise: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(fn func() error) func() error {
		return func() error {
			return c.guard(&cfg, fn)
		}
	}
}

// CatchValue is Catch for functions returning a value. The value is the zero
// value whenever the wrapped function failed.
func CatchValue[T any](c *Client, fn func() (T, error), opts ...CatchOption) func() (T, error) {
	cfg := catchConfig{ctx: context.Background(), reraise: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func() (T, error) {
		var v T
		err := c.guard(&cfg, func() error {
			out, err := fn()
			if err != nil {
				return err
			}
			v = out
			return nil
		})
		return v, err
	}
}

// guard runs fn and applies the catch state machine to its outcome.
func (c *Client) guard(cfg *catchConfig, fn func() error) (err error) {
	panicking := true
	defer func() {
		if !panicking {
			return
		}
		r := recover()
		if r == nil {
			// runtime.Goexit; nothing to handle.
			return
		}
		pe := NewPanicError(r)
		out, swallowed := c.handle(cfg, panicTarget(r, pe), pe)
		if !swallowed {
			panic(repanicValue(r, out))
		}
		err = nil
	}()

	err = fn()
	panicking = false

	if err != nil {
		out, swallowed := c.handle(cfg, err, nil)
		if !swallowed {
			return out
		}
	}
	return nil
}

// handle applies the ignore and capture rules to err and returns the error
// to propagate, and whether it was swallowed. pe is set for panics and is
// what gets reported, since it carries the panicking stack.
//
// Markers are attached to an occurrence of err rather than to err itself:
// the same error value, e.g. a sentinel such as io.EOF, may fail again later
// and must still reach the global hook.
func (c *Client) handle(cfg *catchConfig, err error, pe *PanicError) (out error, swallowed bool) {
	if cfg.match != nil && !cfg.match(err) {
		return err, false
	}
	if cfg.isIgnored(err) {
		if !cfg.skipGlobalOnIgnore {
			return err, false
		}
		occ := occurrenceOf(err, pe)
		MarkSkipGlobalHook(occ)
		return occ, false
	}

	var captured error = pe
	if pe == nil {
		captured = err
	}
	c.captureCaught(cfg.ctx, captured, 2)

	occ := occurrenceOf(err, pe)
	MarkHandled(occ)
	return occ, !cfg.reraise
}

func (cfg *catchConfig) isIgnored(err error) bool {
	t := reflect.TypeOf(err)
	for _, ignored := range cfg.ignored {
		if t == ignored {
			return true
		}
	}
	return false
}

// caughtError is one occurrence of a returned error that passed through
// Catch. It unwraps to the error, so errors.Is and errors.As see through it.
type caughtError struct {
	err error
}

func (e *caughtError) Error() string { return e.err.Error() }

func (e *caughtError) Unwrap() error { return e.err }

// occurrenceOf returns the value markers attach to: the *PanicError of a
// panic, or a fresh carrier around a returned error.
func occurrenceOf(err error, pe *PanicError) error {
	if pe != nil {
		return pe
	}
	return &caughtError{err: err}
}

// panicTarget is the error a panic is matched and ignored as: the panic
// value itself when it is an error, else the *PanicError carrying it.
func panicTarget(r any, pe *PanicError) error {
	if err, ok := r.(error); ok {
		return err
	}
	return pe
}

// repanicValue re-raises the *PanicError when a marker was attached to it,
// so the marker survives up to RecoverGlobal. Unmarked panics keep their
// original value.
func repanicValue(r any, out error) any {
	if pe, ok := out.(*PanicError); ok && markers.marked(pe) {
		return pe
	}
	return r
}
