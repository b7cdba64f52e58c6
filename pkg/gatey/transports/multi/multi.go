// Package multi provides a transport that fans out to multiple transports.
// All transports receive all events; errors are aggregated.
package multi

import (
	"context"
	"errors"
	"io"

	"github.com/strongdm/gatey-go/pkg/gatey"
)

// multiTransport fans out to multiple transports.
type multiTransport struct {
	transports []gatey.Transport
}

// NewMultiTransport creates a transport that sends to multiple transports.
// All transports receive all events. Errors are aggregated via errors.Join,
// so the event counts as failed (and stays buffered) if any transport fails.
func NewMultiTransport(transports ...gatey.Transport) gatey.Transport {
	return &multiTransport{
		transports: transports,
	}
}

// Send sends the event to all transports, collecting any errors.
// All transports are called even if some return errors.
func (t *multiTransport) Send(ctx context.Context, event gatey.Event) error {
	var errs []error
	for _, tr := range t.transports {
		// Each transport gets its own copy.
		if err := tr.Send(ctx, event.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport that implements io.Closer, collecting any errors.
func (t *multiTransport) Close() error {
	var errs []error
	for _, tr := range t.transports {
		if c, ok := tr.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
