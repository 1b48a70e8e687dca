package server

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/lowrenn/inkroom/internal/services/room/domain"
)

// wsSink writes update frames to a websocket peer. The mutex serializes
// encoder writes between the event pump and any future writer.
type wsSink struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSSink(conn *websocket.Conn) *wsSink {
	return &wsSink{encoder: json.NewEncoder(conn)}
}

func (s *wsSink) SendEvent(event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder.Encode(newUpdateFrame(event))
}

func (s *wsSink) SendHeartbeat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder.Encode(updateFrame{Type: "heartbeat"})
}

// serveWS streams a namespace's events over a websocket until either side
// closes. Inbound frames are drained only to notice the close; clients write
// through the REST surface.
func serveWS(conn *websocket.Conn, service *Service, namespace string) {
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		buf := make([]byte, 256)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	sub := service.Subscribe(namespace)
	_ = streamEvents(ctx, sub, newWSSink(conn))
}
