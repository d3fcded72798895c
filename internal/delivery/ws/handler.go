package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/whisperer/internal/ports"
)

// EventsHandler upgrades the request and keeps the client registered until
// it disconnects. Clients only listen; anything they send is discarded.
func EventsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		hub.Register(conn)
		defer hub.Unregister(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// Pump forwards pipeline events to the hub until events is closed or ctx ends.
func Pump(ctx context.Context, hub *Hub, events <-chan ports.PipelineEvent, log *logger.ZapLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Log(logger.LogEntry{
					Level:   "error",
					Message: "[SEND][ERR] json marshal failed",
					Error:   err,
				})
				continue
			}
			hub.Broadcast(payload)
		}
	}
}
