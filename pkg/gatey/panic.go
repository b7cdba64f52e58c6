// panic.go converts recovered panic values into errors.

package gatey

import (
	"fmt"
	"runtime"
)

// PanicError is a recovered panic value carried as an error.
type PanicError struct {
	// Value is the value passed to panic.
	Value any

	pcs []uintptr
}

// NewPanicError wraps a recovered value and records the stack of the panic.
// It must be called from the deferred function that recovered, so that the
// panicking frames are still on the stack.
func NewPanicError(value any) *PanicError {
	if pe, ok := value.(*PanicError); ok {
		return pe
	}
	return &PanicError{Value: value, pcs: panicStack(callers(1))}
}

func (e *PanicError) Error() string {
	return formatRecovered(e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ExceptionClass names the exception after the panic value's type.
func (e *PanicError) ExceptionClass() string {
	if err, ok := e.Value.(error); ok {
		return ClassOf(err)
	}
	return "panic"
}

// panicStack drops the frames of the deferred call, keeping only the frames
// below runtime.gopanic, i.e. the panicking goroutine's stack.
func panicStack(pcs []uintptr) []uintptr {
	for i, pc := range pcs {
		fn := runtime.FuncForPC(pc - 1)
		if fn != nil && fn.Name() == "runtime.gopanic" {
			return pcs[i+1:]
		}
	}
	return pcs
}

// formatRecovered formats a recovered panic value as a string.
func formatRecovered(recovered any) string {
	if recovered == nil {
		return "<nil>"
	}
	if err, ok := recovered.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", recovered)
}
