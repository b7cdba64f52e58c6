// transport_func.go implements the callback transport.

package gatey

import (
	"context"
)

// FuncOption configures a FuncTransport.
type FuncOption func(*FuncTransport)

// WithErrorWrapping controls whether callback errors and panics are wrapped
// in *TransportError (default true). When disabled, callback errors are
// returned unchanged and panics propagate to the caller.
func WithErrorWrapping(enabled bool) FuncOption {
	return func(t *FuncTransport) {
		t.wrapErrors = enabled
	}
}

// FuncTransport delegates delivery to a caller-supplied callback.
type FuncTransport struct {
	fn         func(ctx context.Context, event Event) error
	wrapErrors bool
}

// NewFuncTransport creates a transport that calls fn for every event.
func NewFuncTransport(fn func(ctx context.Context, event Event) error, opts ...FuncOption) (*FuncTransport, error) {
	if fn == nil {
		return nil, &ConfigError{Field: "transport", Reason: "function transport callback is nil"}
	}
	t := &FuncTransport{fn: fn, wrapErrors: true}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Send calls the callback.
func (t *FuncTransport) Send(ctx context.Context, event Event) (err error) {
	if !t.wrapErrors {
		return t.fn(ctx, event)
	}

	defer func() {
		if r := recover(); r != nil {
			err = &TransportError{Transport: "func", Err: NewPanicError(r)}
		}
	}()
	if err := t.fn(ctx, event); err != nil {
		return &TransportError{Transport: "func", Err: err}
	}
	return nil
}
