package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lowrenn/inkroom/internal/services/room/domain"
)

// sseSink writes server-sent event frames. Flushing after every frame keeps
// delivery immediate despite response buffering.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSESink checks streaming support without touching the response, so a
// failure here can still be answered with a regular JSON error.
func newSSESink(w http.ResponseWriter) (*sseSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	return &sseSink{w: w, flusher: flusher}, nil
}

// start commits the response to the event stream: headers, status, and an
// immediate comment line confirming the stream to the client. After start
// the status is written and errors can only end the stream.
func (s *sseSink) start() error {
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
	return s.SendHeartbeat()
}

func (s *sseSink) SendEvent(event domain.Event) error {
	data, err := json.Marshal(newUpdateFrame(event))
	if err != nil {
		return fmt.Errorf("marshal update frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\ndata: %s\n\n", event.Seq, data); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) SendHeartbeat() error {
	if _, err := fmt.Fprint(s.w, ":\n\n"); err != nil {
		return fmt.Errorf("write sse keepalive: %w", err)
	}
	s.flusher.Flush()
	return nil
}
