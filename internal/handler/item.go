package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/auctiondesk/internal/cache"
	"github.com/dukerupert/auctiondesk/internal/desk"
	"github.com/dukerupert/auctiondesk/internal/model"
)

type ItemHandler struct {
	desk   *desk.Service
	cache  *cache.Store
	logger *slog.Logger
}

func NewItemHandler(d *desk.Service, c *cache.Store, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{desk: d, cache: c, logger: logger}
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	it, err := h.desk.UpdateItem(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeFailure(w, h.logger, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, h.logger, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) Images(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.cache.Item(id); !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, h.cache.ImagesForItem(id))
}

// UploadImage stores the "image" file and points an image record at it. The
// optional "image_id" field picks the record; the primary image is replaced
// otherwise.
func (h *ItemHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var imageID int64
	if v := r.FormValue("image_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid image_id")
			return
		}
		imageID = n
	}

	up, err := formUpload(r, "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if up == nil {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	img, err := h.desk.ReplaceItemImage(r.Context(), id, imageID, *up)
	if err != nil {
		writeFailure(w, h.logger, "upload image", err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

func (h *ItemHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image id")
		return
	}
	img, ok := h.cache.Image(id)
	if !ok {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	if err := h.desk.RemoveItemImage(r.Context(), img.ItemID, id); err != nil {
		writeFailure(w, h.logger, "delete image", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Comps lists the item's cached comps. ?top=N limits the list to the first N.
func (h *ItemHandler) Comps(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.cache.Item(id); !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	top := -1
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "top must be a non-negative integer")
			return
		}
		top = n
	}
	writeJSON(w, http.StatusOK, h.cache.TopComps(id, top))
}

// SearchComps runs a live comp search for the item and returns what was added.
func (h *ItemHandler) SearchComps(w http.ResponseWriter, r *http.Request) {
	limit := desk.CompsPerNewItem
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	comps, err := h.desk.FetchComps(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeFailure(w, h.logger, "search comps", err)
		return
	}
	writeJSON(w, http.StatusOK, comps)
}
