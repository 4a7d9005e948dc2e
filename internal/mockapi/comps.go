package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dukerupert/auctiondesk/internal/auth"
	"github.com/dukerupert/auctiondesk/internal/comps"
	"github.com/dukerupert/auctiondesk/internal/model"
)

// batchCompLimit is how many comps a batch lookup saves per item.
const batchCompLimit = 3

// compQuery is the search text for an item: brand, model and year when known,
// otherwise the title.
func compQuery(it *model.Item) string {
	if q := model.DisplayTitle(it.Brand, it.Model, it.Year); q != "" {
		return q
	}
	return it.Title
}

func (a *API) findAndSave(ctx context.Context, it *model.Item, limit int) (string, int, []model.CompListing, error) {
	query := compQuery(it)
	if query == "" {
		return "", 0, nil, fmt.Errorf("item %s has nothing to search for", it.ID)
	}
	found, err := a.searcher.Search(ctx, query, limit)
	if err != nil {
		return query, 0, nil, fmt.Errorf("search comps: %w", err)
	}
	saved, err := a.comps.SaveListings(it.ID, found)
	if err != nil {
		return query, len(found), nil, err
	}
	return query, len(found), saved, nil
}

// lookupAndSave is the batch runner's per-item lookup.
func (a *API) lookupAndSave(ctx context.Context, itemID string) ([]model.CompListing, error) {
	it, err := a.items.GetByID(itemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("item %s not found", itemID)
	}
	_, _, saved, err := a.findAndSave(ctx, it, batchCompLimit)
	return saved, err
}

func (a *API) searchComps(w http.ResponseWriter, r *http.Request) {
	it := a.ownedItem(w, r, r.PathValue("id"))
	if it == nil {
		return
	}
	limit := a.cfg.CompLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeDetail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	query, found, saved, err := a.findAndSave(r.Context(), it, limit)
	if err != nil {
		a.logger.Warn("comp search failed", "item_id", it.ID, "query", query, "error", err)
		writeDetail(w, http.StatusBadGateway, "comp search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"comps":             saved,
		"search_query":      query,
		"total_comps_found": found,
		"comps_saved_to_db": len(saved),
	})
}

func (a *API) savedComps(w http.ResponseWriter, r *http.Request) {
	it := a.ownedItem(w, r, r.PathValue("id"))
	if it == nil {
		return
	}
	saved, err := a.comps.ListByItem(it.ID)
	if err != nil {
		a.internalError(w, "list comps", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comps": saved})
}

type batchRequest struct {
	ItemIDs []string `json:"item_ids"`
}

func (a *API) startBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.ItemIDs) == 0 {
		writeDetail(w, http.StatusBadRequest, "item_ids is required")
		return
	}
	for _, id := range req.ItemIDs {
		owner, err := a.items.OwnerID(id)
		if err != nil {
			a.internalError(w, "start comp batch", err)
			return
		}
		if owner == "" || !auth.CanAccessProfile(r.Context(), owner) {
			writeDetail(w, http.StatusNotFound, "item not found: "+id)
			return
		}
	}

	b, err := a.runner.Submit(r.Context(), req.ItemIDs)
	if err != nil {
		a.internalError(w, "start comp batch", err)
		return
	}
	a.logger.Info("comp batch started", "batch_id", b.ID, "items", b.Total)
	writeJSON(w, http.StatusAccepted, map[string]any{"batch": b})
}

func (a *API) batchError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, comps.ErrBatchNotFound) {
		writeDetail(w, http.StatusNotFound, "batch not found")
		return
	}
	a.internalError(w, action, err)
}

func (a *API) getBatch(w http.ResponseWriter, r *http.Request) {
	b, err := a.runner.Status(r.PathValue("id"))
	if err != nil {
		a.batchError(w, "get comp batch", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch": b})
}

func (a *API) batchResults(w http.ResponseWriter, r *http.Request) {
	results, err := a.runner.Results(r.PathValue("id"))
	if err != nil {
		a.batchError(w, "get comp batch results", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *API) cancelBatch(w http.ResponseWriter, r *http.Request) {
	if err := a.runner.Cancel(r.PathValue("id")); err != nil {
		a.batchError(w, "cancel comp batch", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
