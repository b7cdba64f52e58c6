package gatey

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingTransport captures delivered events for verification in tests.
type recordingTransport struct {
	mu       sync.Mutex
	events   []Event
	attempts int
	fail     func(Event) error
}

func (r *recordingTransport) Send(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.fail != nil {
		if err := r.fail(event); err != nil {
			return err
		}
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingTransport) getEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Event, len(r.events))
	copy(result, r.events)
	return result
}

func (r *recordingTransport) getAttempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *recordingTransport) messages() []string {
	var out []string
	for _, ev := range r.getEvents() {
		out = append(out, ev.Message)
	}
	return out
}

// newTestClient builds a client over a recording transport.
func newTestClient(t *testing.T, opts ...Option) (*Client, *recordingTransport) {
	t.Helper()
	rec := &recordingTransport{}
	base := []Option{
		WithTransport(UseTransport(rec)),
		WithBufferFlushInterval(0),
	}
	client, err := NewClient(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, rec
}
