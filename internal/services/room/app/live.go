package server

import (
	"context"
	"time"

	"github.com/lowrenn/inkroom/internal/platform/timeouts"
	"github.com/lowrenn/inkroom/internal/services/room/bus"
	"github.com/lowrenn/inkroom/internal/services/room/domain"
)

// eventSink is one live client connection. Implementations serialize their
// own writes; streamEvents never calls a sink concurrently.
type eventSink interface {
	SendEvent(event domain.Event) error
	SendHeartbeat() error
}

// updateFrame is the wire shape of one fanout event: the write kind plus the
// touched document keyed by its collection, batched as a single-element list
// so multi-document frames stay possible.
type updateFrame struct {
	Type string                      `json:"type"`
	Data map[string][]map[string]any `json:"data"`
}

func newUpdateFrame(event domain.Event) updateFrame {
	return updateFrame{
		Type: string(event.Kind),
		Data: map[string][]map[string]any{
			event.Collection: {event.Document.Payload()},
		},
	}
}

// streamEvents pumps a subscription into a sink until the client leaves, the
// subscription ends, or a write fails. Heartbeats keep idle connections from
// being reaped by intermediaries.
func streamEvents(ctx context.Context, sub *bus.Subscription, sink eventSink) error {
	defer sub.Cancel()

	ticker := time.NewTicker(timeouts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case event := <-sub.Events():
			if err := sink.SendEvent(event); err != nil {
				return err
			}
		case <-ticker.C:
			if err := sink.SendHeartbeat(); err != nil {
				return err
			}
		}
	}
}
