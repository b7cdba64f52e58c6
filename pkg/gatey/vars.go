// vars.go attaches and collects variable snapshots for captured errors.

package gatey

import (
	"expvar"
	"fmt"
	"maps"
)

// localsError carries stringified local variables alongside an error.
type localsError struct {
	err    error
	locals map[string]string
}

// WithLocals attaches local variables to err. The values are stringified
// immediately so no live references are retained. When an error chain carries
// several attachments, the innermost one is reported.
//
//	if err := charge(order); err != nil {
//	    return gatey.WithLocals(err, map[string]any{"order_id": order.ID})
//	}
func WithLocals(err error, locals map[string]any) error {
	if err == nil {
		return nil
	}
	return &localsError{err: err, locals: stringifyAll(locals)}
}

func (e *localsError) Error() string { return e.err.Error() }

func (e *localsError) Unwrap() error { return e.err }

// VariablesOf returns the variable snapshot for err. Locals come from the
// innermost WithLocals attachment; globals are the published expvar variables.
// Both maps are empty when enabled is false.
func VariablesOf(err error, enabled bool) Variables {
	vars := Variables{Locals: map[string]string{}, Globals: map[string]string{}}
	if !enabled {
		return vars
	}

	walkChain(err, func(e error) {
		if le, ok := e.(*localsError); ok {
			vars.Locals = maps.Clone(le.locals)
		}
	})

	expvar.Do(func(kv expvar.KeyValue) {
		// memstats is large and stops the world to compute.
		if kv.Key == "memstats" {
			return
		}
		vars.Globals[kv.Key] = stringify(kv.Value)
	})
	return vars
}

func stringifyAll(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = stringify(v)
	}
	return out
}

// stringify formats v, tolerating String methods that panic.
func stringify(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<unprintable: %v>", r)
		}
	}()
	return fmt.Sprint(v)
}
