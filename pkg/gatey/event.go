// event.go defines the event data model sent to transports.

package gatey

import "maps"

// Common event levels. Any string is accepted; levels are lower-cased at capture.
const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// UnknownFunction is the frame name used when a function cannot be resolved.
const UnknownFunction = "<unknown>"

// Event is one unit of telemetry bound for the destination.
// An event carries a message, an exception, or both.
type Event struct {
	// ID identifies the event inside the process. It is not sent to the API.
	ID string `json:"-"`

	// Message is the human-readable message. For exceptions it defaults to the description.
	Message string `json:"message,omitempty"`

	// Exception is set for exception events.
	Exception *Exception `json:"exception,omitempty"`

	// Level is the lower-cased event level.
	Level string `json:"level"`

	// Tags is string-keyed metadata.
	Tags map[string]string `json:"tags"`
}

// Exception is the normalized form of a captured error or panic.
type Exception struct {
	// Class is the exception type name, e.g. "TypeError".
	Class string `json:"class"`

	// Description is the error message.
	Description string `json:"description"`

	// Vars holds stringified variables. Empty unless variable capture is enabled.
	Vars Variables `json:"vars"`

	// Traceback lists frames outermost first. The last frame is the fault site.
	Traceback []Frame `json:"traceback"`
}

// Variables holds stringified local and global variables.
type Variables struct {
	Locals  map[string]string `json:"locals"`
	Globals map[string]string `json:"globals"`
}

// Frame is one normalized call-stack entry.
type Frame struct {
	Filename string         `json:"filename"`
	Name     string         `json:"name"`
	Line     int            `json:"line,omitempty"`
	Module   string         `json:"module"`
	Context  *SourceContext `json:"context,omitempty"`
}

// SourceContext holds the source lines around a frame.
type SourceContext struct {
	Pre    []string `json:"pre"`
	Target *string  `json:"target"`
	Post   []string `json:"post"`
}

// Validate reports ErrEmptyEvent when the event has neither message nor exception.
func (e Event) Validate() error {
	if e.Message == "" && e.Exception == nil {
		return ErrEmptyEvent
	}
	return nil
}

// Clone returns a deep copy so transports cannot mutate buffered events.
func (e Event) Clone() Event {
	out := e
	out.Tags = maps.Clone(e.Tags)
	if e.Exception != nil {
		exc := e.Exception.clone()
		out.Exception = &exc
	}
	return out
}

func (x Exception) clone() Exception {
	out := x
	out.Vars = Variables{
		Locals:  maps.Clone(x.Vars.Locals),
		Globals: maps.Clone(x.Vars.Globals),
	}
	if x.Traceback != nil {
		out.Traceback = make([]Frame, len(x.Traceback))
		for i, f := range x.Traceback {
			out.Traceback[i] = f
			if f.Context != nil {
				ctx := f.Context.clone()
				out.Traceback[i].Context = &ctx
			}
		}
	}
	return out
}

func (c SourceContext) clone() SourceContext {
	out := SourceContext{
		Pre:  append([]string{}, c.Pre...),
		Post: append([]string{}, c.Post...),
	}
	if c.Target != nil {
		target := *c.Target
		out.Target = &target
	}
	return out
}
