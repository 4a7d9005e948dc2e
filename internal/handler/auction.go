package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/dukerupert/auctiondesk/internal/cache"
	"github.com/dukerupert/auctiondesk/internal/desk"
	"github.com/dukerupert/auctiondesk/internal/model"
)

type AuctionHandler struct {
	desk   *desk.Service
	cache  *cache.Store
	logger *slog.Logger
}

func NewAuctionHandler(d *desk.Service, c *cache.Store, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{desk: d, cache: c, logger: logger}
}

type auctionRequest struct {
	Name   *string `json:"auction_name"`
	Status *string `json:"status"`
}

func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Auctions())
}

func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req auctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == nil {
		writeError(w, http.StatusBadRequest, "auction_name is required")
		return
	}

	a, err := h.desk.CreateAuction(r.Context(), *req.Name)
	if err != nil {
		writeFailure(w, h.logger, "create auction", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Update renames the auction and/or changes its status.
func (h *AuctionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req auctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == nil && req.Status == nil {
		writeError(w, http.StatusBadRequest, "auction_name or status is required")
		return
	}

	var (
		a   model.Auction
		err error
	)
	if req.Name != nil {
		if a, err = h.desk.RenameAuction(r.Context(), id, *req.Name); err != nil {
			writeFailure(w, h.logger, "rename auction", err)
			return
		}
	}
	if req.Status != nil {
		if a, err = h.desk.SetAuctionStatus(r.Context(), id, *req.Status); err != nil {
			writeFailure(w, h.logger, "update auction status", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AuctionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.DeleteAuction(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, h.logger, "delete auction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// itemView is an item with the images and top comps a listing row shows.
type itemView struct {
	model.Item
	PrimaryImage *model.ItemImage `json:"primary_image,omitempty"`
	TopComps     []model.Comp     `json:"top_comps"`
}

func (h *AuctionHandler) view(it model.Item, topN int) itemView {
	v := itemView{Item: it, TopComps: h.cache.TopComps(it.ID, topN)}
	v.Images = h.cache.ImagesForItem(it.ID)
	if img, ok := h.cache.PrimaryImage(it.ID); ok {
		v.PrimaryImage = &img
	}
	return v
}

func (h *AuctionHandler) Items(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.cache.Auction(id); !ok {
		writeError(w, http.StatusNotFound, "auction not found")
		return
	}
	items := h.cache.ItemsForAuction(id)
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, h.view(it, desk.CompsPerNewItem))
	}
	writeJSON(w, http.StatusOK, out)
}

// AddItems accepts either a JSON array of drafts or a multipart form whose
// "items" field holds that array and whose "image_N" files are the photos of
// draft N.
func (h *AuctionHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.cache.Auction(id); !ok {
		writeError(w, http.StatusNotFound, "auction not found")
		return
	}

	drafts, err := readDrafts(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.desk.AddItems(r.Context(), id, drafts)
	if err != nil {
		if len(res.Items) > 0 {
			h.logger.Error("add items stopped early", "auction_id", id, "created", len(res.Items), "error", err)
			writeJSON(w, errorStatus(err), map[string]any{"error": err.Error(), "result": res})
			return
		}
		writeFailure(w, h.logger, "add items", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func readDrafts(w http.ResponseWriter, r *http.Request) ([]desk.Draft, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var drafts []desk.Draft
		if err := json.NewDecoder(r.Body).Decode(&drafts); err != nil {
			return nil, fmt.Errorf("invalid JSON")
		}
		return drafts, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %v", err)
	}
	var drafts []desk.Draft
	if err := json.Unmarshal([]byte(r.FormValue("items")), &drafts); err != nil {
		return nil, fmt.Errorf("items must be a JSON array of drafts")
	}
	for i := range drafts {
		up, err := formUpload(r, fmt.Sprintf("image_%d", i))
		if err != nil {
			return nil, err
		}
		drafts[i].Image = up
	}
	return drafts, nil
}

// formUpload reads an optional file field. It returns nil when the field is
// absent.
func formUpload(r *http.Request, field string) (*desk.Upload, error) {
	f, hdr, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", field, err)
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%s must be an image", field)
	}
	return &desk.Upload{Filename: hdr.Filename, ContentType: ct, Data: data}, nil
}
