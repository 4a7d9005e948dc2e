package mockapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/auctiondesk/internal/api"
	"github.com/dukerupert/auctiondesk/internal/auth"
	"github.com/dukerupert/auctiondesk/internal/model"
	"github.com/dukerupert/auctiondesk/internal/store"
)

// maxDescriptionUpload bounds the multipart body of generate-description.
const maxDescriptionUpload = 16 << 20

// ownedItem loads the item and checks the caller may use it. It writes the
// error response and returns nil when not.
func (a *API) ownedItem(w http.ResponseWriter, r *http.Request, id string) *model.Item {
	owner, err := a.items.OwnerID(id)
	if err != nil {
		a.internalError(w, "get item", err)
		return nil
	}
	if owner == "" || !auth.CanAccessProfile(r.Context(), owner) {
		writeDetail(w, http.StatusNotFound, "item not found")
		return nil
	}
	it, err := a.items.GetByID(id)
	if err != nil {
		a.internalError(w, "get item", err)
		return nil
	}
	if it == nil {
		writeDetail(w, http.StatusNotFound, "item not found")
		return nil
	}
	return it
}

func (a *API) listItems(w http.ResponseWriter, r *http.Request) {
	profileID := profileParam(r)
	if !auth.CanAccessProfile(r.Context(), profileID) {
		writeDetail(w, http.StatusForbidden, "cannot access this profile")
		return
	}
	items, err := a.items.List(profileID, r.URL.Query().Get("auction_id"))
	if err != nil {
		a.internalError(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) createItem(w http.ResponseWriter, r *http.Request) {
	var req api.NewItem
	if !decode(w, r, &req) {
		return
	}
	if req.AuctionID == "" {
		writeDetail(w, http.StatusBadRequest, "auction_id is required")
		return
	}
	if a.ownedAuction(w, r, req.AuctionID) == nil {
		return
	}
	if req.StartingBid < 0 || req.MinIncrement < 0 || req.BuyNowPrice < 0 {
		writeDetail(w, http.StatusBadRequest, "prices cannot be negative")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = model.DisplayTitle(req.Brand, req.Model, req.Year)
	}
	if title == "" {
		writeDetail(w, http.StatusBadRequest, "title or brand and model are required")
		return
	}

	in := store.NewItem{
		AuctionID:     req.AuctionID,
		Title:         title,
		Brand:         req.Brand,
		Model:         req.Model,
		Year:          req.Year,
		Description:   req.Description,
		AIDescription: req.AIDescription,
		StartingBid:   req.StartingBid,
		MinIncrement:  req.MinIncrement,
		BuyNowPrice:   req.BuyNowPrice,
	}
	for i, img := range req.Images {
		pos := img.Position
		if pos == 0 {
			pos = i
		}
		in.Images = append(in.Images, store.NewImage{URL: img.URL, Position: pos, IsPrimary: img.IsPrimary})
	}

	item, images, err := a.items.Create(in)
	if err != nil {
		a.internalError(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item, "images": images})
}

func (a *API) updateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if a.ownedItem(w, r, id) == nil {
		return
	}
	var patch model.ItemPatch
	if !decode(w, r, &patch) {
		return
	}
	if patch.IsEmpty() {
		writeDetail(w, http.StatusBadRequest, "no fields to update")
		return
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		writeDetail(w, http.StatusBadRequest, "title cannot be empty")
		return
	}

	item, err := a.items.Update(id, patch)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		a.internalError(w, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (a *API) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if a.ownedItem(w, r, id) == nil {
		return
	}
	if err := a.items.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.internalError(w, "delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func imageIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("image_id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid image id")
		return 0, false
	}
	return id, true
}

type updateImageRequest struct {
	URL string `json:"url"`
}

func (a *API) updateItemImage(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if a.ownedItem(w, r, itemID) == nil {
		return
	}
	imageID, ok := imageIDParam(w, r)
	if !ok {
		return
	}
	var req updateImageRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeDetail(w, http.StatusBadRequest, "url is required")
		return
	}

	img, err := a.items.UpdateImageURL(itemID, imageID, req.URL)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		a.internalError(w, "update item image", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"image": img})
}

func (a *API) deleteItemImage(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if a.ownedItem(w, r, itemID) == nil {
		return
	}
	imageID, ok := imageIDParam(w, r)
	if !ok {
		return
	}
	err := a.items.DeleteImage(itemID, imageID)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		a.internalError(w, "delete item image", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// generateDescription returns a deterministic catalogue description built from
// the submitted details. It stands in for the vision model behind the real API.
func (a *API) generateDescription(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDescriptionUpload)
	if err := r.ParseMultipartForm(maxDescriptionUpload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	hasImage := false
	if file, _, err := r.FormFile("image"); err == nil {
		file.Close()
		hasImage = true
	}
	title := strings.TrimSpace(r.FormValue("title"))
	modelName := strings.TrimSpace(r.FormValue("model"))
	notes := strings.TrimSpace(r.FormValue("notes"))
	year, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))

	if !hasImage && title == "" && modelName == "" {
		writeDetail(w, http.StatusBadRequest, "image or title is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"description": describe(title, modelName, year, notes, hasImage),
	})
}

func describe(title, modelName string, year int, notes string, hasImage bool) string {
	subject := title
	if subject == "" {
		subject = modelName
	} else if modelName != "" && !strings.Contains(strings.ToLower(title), strings.ToLower(modelName)) {
		subject += " " + modelName
	}
	if subject == "" {
		subject = "Item"
	}

	var b strings.Builder
	b.WriteString(subject)
	if year > 0 {
		fmt.Fprintf(&b, ", circa %d", year)
	}
	b.WriteString(".")
	if notes != "" {
		b.WriteString(" ")
		b.WriteString(strings.TrimSuffix(notes, "."))
		b.WriteString(".")
	}
	if hasImage {
		b.WriteString(" Condition as pictured.")
	} else {
		b.WriteString(" Condition to be confirmed on inspection.")
	}
	return b.String()
}
