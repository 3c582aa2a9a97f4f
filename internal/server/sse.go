package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/knagasawa/bidsheet/internal/event"
)

// envelope is the wire shape of one SSE frame's data line.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type progressPayload struct {
	Stage string `json:"stage"`
}

// sseSink frames pipeline events as Server-Sent Events and flushes each one
// immediately. Safe for concurrent use; parallel group writes emit from
// multiple goroutines.
type sseSink struct {
	mu  sync.Mutex
	w   http.ResponseWriter
	f   http.Flusher
	log *zap.Logger
}

func newSSESink(w http.ResponseWriter, log *zap.Logger) *sseSink {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("X-Accel-Buffering", "no")
	f, _ := w.(http.Flusher)
	return &sseSink{w: w, f: f, log: log}
}

func (s *sseSink) emit(eventName string, data any) {
	payload, err := json.Marshal(envelope{Event: eventName, Data: data})
	if err != nil {
		s.log.Warn("sse.marshal_failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "data: %s\n\n", payload)
	if s.f != nil {
		s.f.Flush()
	}
}

func (s *sseSink) Debug(msg string)          { s.emit(event.KindDebug, msg) }
func (s *sseSink) Progress(stage string)     { s.emit(event.KindProgress, progressPayload{Stage: stage}) }
func (s *sseSink) Error(ev event.ErrorEvent) { s.emit(event.KindError, ev) }
func (s *sseSink) Done(msg string)           { s.emit(event.KindDone, msg) }

func (s *sseSink) Table(name string, payload any) { s.emit(name, payload) }
