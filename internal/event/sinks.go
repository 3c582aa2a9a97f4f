package event

import (
	"fmt"
	"log/slog"
	"sync"
)

// Recorded is one captured event, for assertions and buffering.
type Recorded struct {
	Kind string
	Name string // table name, progress stage
	Data any
}

// Recorder captures the stream in order. Safe for concurrent use so tests
// can drive parallel group writes through it.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

func (r *Recorder) append(ev Recorded) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
}

func (r *Recorder) Debug(msg string)      { r.append(Recorded{Kind: KindDebug, Data: msg}) }
func (r *Recorder) Progress(stage string) { r.append(Recorded{Kind: KindProgress, Name: stage}) }
func (r *Recorder) Error(ev ErrorEvent)   { r.append(Recorded{Kind: KindError, Data: ev}) }
func (r *Recorder) Done(msg string)       { r.append(Recorded{Kind: KindDone, Data: msg}) }

func (r *Recorder) Table(name string, payload any) {
	r.append(Recorded{Kind: name, Name: name, Data: payload})
}

// Kinds returns the captured kinds in emission order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, ev := range r.Events {
		out[i] = ev.Kind
	}
	return out
}

// Logger adapts a slog.Logger as a sink, used by the offline CLI where no
// client is listening.
type Logger struct {
	Log *slog.Logger
}

func (l Logger) logger() *slog.Logger {
	if l.Log == nil {
		return slog.Default()
	}
	return l.Log
}

func (l Logger) Debug(msg string)      { l.logger().Debug(msg) }
func (l Logger) Progress(stage string) { l.logger().Info("progress", "stage", stage) }
func (l Logger) Done(msg string)       { l.logger().Info("done", "msg", msg) }

func (l Logger) Error(ev ErrorEvent) {
	l.logger().Error("pipeline error",
		"stage", ev.Stage,
		"code", ev.Code,
		"message", ev.Message,
		"detail", ev.Detail,
	)
}

func (l Logger) Table(name string, payload any) {
	l.logger().Info("table", "name", name, "payload", fmt.Sprintf("%.200v", payload))
}
