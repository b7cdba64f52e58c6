// errors.go defines the SDK error taxonomy.

package gatey

import (
	"errors"
	"fmt"

	"github.com/strongdm/gatey-go/pkg/gatey/api"
)

var (
	// ErrEmptyEvent is returned when an event has neither a message nor an exception.
	ErrEmptyEvent = errors.New("gatey: event has neither message nor exception")

	// ErrUndelivered is returned by Close when buffered events could not be delivered.
	ErrUndelivered = errors.New("gatey: buffered events were not delivered")
)

// ConfigError is returned at construction time when the client, a transport,
// or the buffer is configured incorrectly.
type ConfigError struct {
	// Field names the offending option.
	Field string

	// Reason describes what is wrong with it.
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gatey: invalid %s: %s", e.Field, e.Reason)
}

// TransportError wraps a failure inside a transport send path that is not
// otherwise classified, such as a callback error or panic.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gatey: %s transport: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsInternal reports whether err originates from the SDK itself rather than
// from the application.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	var (
		configErr    *ConfigError
		transportErr *TransportError
		apiErr       *api.APIError
		responseErr  *api.ResponseError
		authErr      *api.AuthError
	)
	switch {
	case errors.As(err, &configErr),
		errors.As(err, &transportErr),
		errors.As(err, &apiErr),
		errors.As(err, &responseErr),
		errors.As(err, &authErr):
		return true
	}
	return errors.Is(err, ErrEmptyEvent) || errors.Is(err, ErrUndelivered)
}
