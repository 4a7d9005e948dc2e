package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades console views to the change feed. The optional
// "entities" query parameter (for example "item,comp") limits which changes
// the view receives. originPatterns restricts cross-origin connections; empty
// allows only same-origin requests.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		entities := ParseEntities(r.URL.Query().Get("entities"))
		client := NewClient(hub, conn, entities)
		logger.Debug("websocket connected", "client_id", client.id, "entities", entities)
		client.Run(r.Context())
		logger.Debug("websocket disconnected", "client_id", client.id)
	}
}
