package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/auctiondesk/internal/desk"
	"github.com/dukerupert/auctiondesk/internal/websocket"
)

// CompBatchHandler starts comp batches and collects them in the background.
type CompBatchHandler struct {
	desk     *desk.Service
	hub      *websocket.Hub
	baseCtx  context.Context
	interval time.Duration
	logger   *slog.Logger
}

// NewCompBatchHandler creates the handler. Watchers run under baseCtx so they
// outlive the request that started them and end on shutdown.
func NewCompBatchHandler(ctx context.Context, d *desk.Service, hub *websocket.Hub, interval time.Duration, logger *slog.Logger) *CompBatchHandler {
	return &CompBatchHandler{desk: d, hub: hub, baseCtx: ctx, interval: interval, logger: logger}
}

type batchRequest struct {
	ItemIDs []string `json:"item_ids"`
}

func (h *CompBatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	b, err := h.desk.StartCompBatch(r.Context(), req.ItemIDs)
	if err != nil {
		writeFailure(w, h.logger, "start comp batch", err)
		return
	}

	go h.watch(b.ID)
	writeJSON(w, http.StatusAccepted, b)
}

func (h *CompBatchHandler) watch(id string) {
	summary, err := h.desk.WatchCompBatch(h.baseCtx, id, h.interval)
	if err != nil {
		h.logger.Warn("watch comp batch", "batch_id", id, "error", err)
		broadcast(h.hub, websocket.NewMessage("comp_batch", "failed", id, map[string]any{"error": err.Error()}))
		return
	}
	broadcast(h.hub, websocket.NewMessage("comp_batch", summary.Batch.Status, id, map[string]any{
		"comps_added": summary.CompsAdded,
		"failed":      summary.Failed,
	}))
}

func (h *CompBatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.desk.CompBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, h.logger, "get comp batch", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *CompBatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.CancelCompBatch(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, h.logger, "cancel comp batch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
