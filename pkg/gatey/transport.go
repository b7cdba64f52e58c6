// transport.go defines the Transport interface and transport construction.

package gatey

import (
	"context"
	"fmt"

	"github.com/strongdm/gatey-go/pkg/gatey/api"
)

// Transport delivers one event to a destination.
// Implementations must be safe for concurrent use and must not retain or
// mutate the event after Send returns.
type Transport interface {
	Send(ctx context.Context, event Event) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, event Event) error

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Deliver sends event through t and translates the outcome.
//
// With failFast the error is returned to the caller. Otherwise failures are
// reported only through the boolean, so every transport shares the same
// failure semantics regardless of how it signals errors. A panic inside the
// transport is a failure like any other, returned as *TransportError. The
// transport gets its own copy of the event.
func Deliver(ctx context.Context, t Transport, event Event, failFast bool) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = nil
			if failFast {
				err = &TransportError{Transport: fmt.Sprintf("%T", t), Err: NewPanicError(r)}
			}
		}
	}()

	if err := t.Send(ctx, event.Clone()); err != nil {
		if failFast {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

type transportKind int

const (
	transportHTTP transportKind = iota
	transportNoop
	transportPrint
	transportInstance
	transportFunc
)

// TransportSpec selects the transport a Client is built with.
// The zero value selects the network transport.
type TransportSpec struct {
	kind      transportKind
	transport Transport
	fn        func(ctx context.Context, event Event) error
	funcOpts  []FuncOption
	printOpts []PrintOption
}

// UseHTTP selects the network transport that sends events to the Gatey API.
func UseHTTP() TransportSpec {
	return TransportSpec{kind: transportHTTP}
}

// UseNoop selects a transport that discards events.
func UseNoop() TransportSpec {
	return TransportSpec{kind: transportNoop}
}

// UsePrint selects a transport that prints events as JSON.
func UsePrint(opts ...PrintOption) TransportSpec {
	return TransportSpec{kind: transportPrint, printOpts: opts}
}

// UseTransport uses an already built transport as is.
func UseTransport(t Transport) TransportSpec {
	return TransportSpec{kind: transportInstance, transport: t}
}

// UseFunc wraps a callback in a function transport.
func UseFunc(fn func(ctx context.Context, event Event) error, opts ...FuncOption) TransportSpec {
	return TransportSpec{kind: transportFunc, fn: fn, funcOpts: opts}
}

// IsNetwork reports whether the spec selects the network transport.
func (s TransportSpec) IsNetwork() bool {
	return s.kind == transportHTTP
}

// BuildTransport resolves spec into a transport. The gateway is only used by
// the network transport.
func BuildTransport(spec TransportSpec, gw *api.Gateway) (Transport, error) {
	switch spec.kind {
	case transportHTTP:
		return NewHTTPTransport(gw)
	case transportNoop:
		return NewNoopTransport(), nil
	case transportPrint:
		return NewPrintTransport(spec.printOpts...), nil
	case transportInstance:
		if spec.transport == nil {
			return nil, &ConfigError{Field: "transport", Reason: "transport instance is nil"}
		}
		return spec.transport, nil
	case transportFunc:
		return NewFuncTransport(spec.fn, spec.funcOpts...)
	default:
		return nil, &ConfigError{Field: "transport", Reason: "unknown transport kind"}
	}
}
