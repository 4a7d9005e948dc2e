// Package handler serves the console's JSON API on top of the desk service
// and the cache.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/auctiondesk/internal/api"
	"github.com/dukerupert/auctiondesk/internal/desk"
	"github.com/dukerupert/auctiondesk/internal/storage"
	"github.com/dukerupert/auctiondesk/internal/websocket"
)

// maxUploadBytes caps multipart bodies: a form of drafts with one photo each.
const maxUploadBytes = 64 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps desk and API errors to a response status. Anything not
// recognised came from the remote side.
func errorStatus(err error) int {
	var apiErr *api.Error
	switch {
	case errors.Is(err, desk.ErrInvalidInput), errors.Is(err, desk.ErrInvalidDraft):
		return http.StatusBadRequest
	case errors.Is(err, desk.ErrNotFound), errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// writeFailure logs err and writes it with the status errorStatus picks. The
// remote API's detail text is shown when there is one.
func writeFailure(w http.ResponseWriter, logger *slog.Logger, action string, err error) {
	status := errorStatus(err)
	msg := err.Error()
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		msg = apiErr.Detail
	}
	if status >= 500 {
		logger.Error(action, "error", err)
	} else {
		logger.Warn(action, "error", err)
	}
	writeError(w, status, action+": "+msg)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func broadcast(hub *websocket.Hub, msg websocket.Message) {
	if hub != nil {
		hub.Broadcast(msg)
	}
}
