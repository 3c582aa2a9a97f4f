// Package event defines the ordered progress stream produced by a pipeline
// run. The sink is transport-agnostic: SSE framing, log output and test
// capture are all implementations of the same interface.
package event

// Kinds of events a pipeline run emits. A run always ends with a Done event,
// even after a fatal error, so consumers can detect stream end reliably.
const (
	KindDebug    = "dbg"
	KindProgress = "progress"
	KindError    = "error"
	KindDone     = "done"
)

// ErrorEvent is the structured payload for error events.
type ErrorEvent struct {
	Stage       string   `json:"stage"`
	Code        string   `json:"code,omitempty"`
	Message     string   `json:"message"`
	Detail      string   `json:"detail,omitempty"`
	Status      int      `json:"status,omitempty"`
	Category    string   `json:"category,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Sink receives the ordered event stream of one pipeline run. Implementations
// are used by a single goroutine; ordering is the producer's.
type Sink interface {
	// Debug emits a free-text diagnostic line.
	Debug(msg string)
	// Progress marks entry into a named stage.
	Progress(stage string)
	// Error reports a structured, possibly non-fatal error.
	Error(ev ErrorEvent)
	// Table publishes a named intermediate payload (table preview, result).
	Table(name string, payload any)
	// Done terminates the stream.
	Done(msg string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Debug(string)      {}
func (Nop) Progress(string)   {}
func (Nop) Error(ErrorEvent)  {}
func (Nop) Table(string, any) {}
func (Nop) Done(string)       {}
