package websocket

import (
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
)

// HandleFeed returns an HTTP handler that upgrades connections to
// WebSocket and subscribes them to the feed of the event in the path.
func HandleFeed(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || eventID <= 0 {
			http.Error(w, "invalid event id", http.StatusBadRequest)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // event pages are embedded on partner sites
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, eventID)
		client.Run(r.Context())
	}
}
