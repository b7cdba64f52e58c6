// transport_print.go implements a transport that prints events for debugging.

package gatey

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// PrintOption configures a PrintTransport.
type PrintOption func(*PrintTransport)

// WithIndent sets the JSON indentation (default two spaces). An empty indent
// prints each event on a single line.
func WithIndent(indent string) PrintOption {
	return func(t *PrintTransport) {
		t.indent = indent
	}
}

// WithPrepare sets a hook applied to each event before printing, e.g. to
// drop fields that are noisy on a terminal.
func WithPrepare(fn func(Event) Event) PrintOption {
	return func(t *PrintTransport) {
		t.prepare = fn
	}
}

// WithOutput sets the writer events are printed to (default os.Stdout).
func WithOutput(w io.Writer) PrintOption {
	return func(t *PrintTransport) {
		if w != nil {
			t.out = w
		}
	}
}

// PrintTransport writes events as JSON with sorted keys.
type PrintTransport struct {
	mu      sync.Mutex
	out     io.Writer
	indent  string
	prepare func(Event) Event
}

// NewPrintTransport creates a transport that prints events.
func NewPrintTransport(opts ...PrintOption) *PrintTransport {
	t := &PrintTransport{out: os.Stdout, indent: "  "}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send prints the event.
func (t *PrintTransport) Send(ctx context.Context, event Event) error {
	if t.prepare != nil {
		event = t.prepare(event)
	}

	out, err := sortedJSON(event, t.indent)
	if err != nil {
		return &TransportError{Transport: "print", Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintln(t.out, string(out)); err != nil {
		return &TransportError{Transport: "print", Err: err}
	}
	return nil
}

// sortedJSON encodes v with object keys in sorted order.
func sortedJSON(v any, indent string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	if indent == "" {
		return json.Marshal(generic)
	}
	return json.MarshalIndent(generic, "", indent)
}
