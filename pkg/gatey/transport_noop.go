// transport_noop.go implements a transport that discards events.

package gatey

import "context"

// NoopTransport discards all events and always succeeds.
// Useful for testing or when capture is disabled.
type NoopTransport struct{}

// NewNoopTransport creates a transport that discards events.
func NewNoopTransport() *NoopTransport {
	return &NoopTransport{}
}

// Send does nothing.
func (t *NoopTransport) Send(ctx context.Context, event Event) error {
	return nil
}
