package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dukerupert/auctiondesk/internal/model"
)

// CompSearch is the result of a live comp search for one item.
type CompSearch struct {
	Comps           []model.CompListing `json:"comps"`
	SearchQuery     string              `json:"search_query"`
	TotalCompsFound int                 `json:"total_comps_found"`
	CompsSavedToDB  int                 `json:"comps_saved_to_db"`
}

// SearchComps runs a live sold-listing search for the item. The server saves
// what it finds.
func (c *Client) SearchComps(ctx context.Context, itemID string, limit int) (CompSearch, error) {
	path := "/items/" + escape(itemID) + "/comps"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp CompSearch
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return CompSearch{}, fmt.Errorf("search comps: %w", err)
	}
	if resp.Comps == nil {
		resp.Comps = []model.CompListing{}
	}
	return resp, nil
}

type savedCompsResponse struct {
	Comps []model.Comp `json:"comps"`
}

// SavedComps returns the comps previously saved for the item.
func (c *Client) SavedComps(ctx context.Context, itemID string) ([]model.Comp, error) {
	var resp savedCompsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/items/"+escape(itemID)+"/comps/saved", nil, &resp); err != nil {
		return nil, fmt.Errorf("saved comps: %w", err)
	}
	if resp.Comps == nil {
		resp.Comps = []model.Comp{}
	}
	return resp.Comps, nil
}

type batchRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type batchResponse struct {
	Batch model.CompBatch `json:"batch"`
}

// StartCompBatch queues comp lookups for several items at once.
func (c *Client) StartCompBatch(ctx context.Context, itemIDs []string) (model.CompBatch, error) {
	var resp batchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/comps", batchRequest{ItemIDs: itemIDs}, &resp); err != nil {
		return model.CompBatch{}, fmt.Errorf("start comp batch: %w", err)
	}
	return resp.Batch, nil
}

func (c *Client) CompBatch(ctx context.Context, id string) (model.CompBatch, error) {
	var resp batchResponse
	if err := c.doJSON(ctx, http.MethodGet, "/comps/batch/"+escape(id), nil, &resp); err != nil {
		return model.CompBatch{}, fmt.Errorf("get comp batch: %w", err)
	}
	return resp.Batch, nil
}

type batchResultsResponse struct {
	Results []model.CompBatchResult `json:"results"`
}

// CompBatchResults returns per-item results. Items that failed carry Error and
// no comps.
func (c *Client) CompBatchResults(ctx context.Context, id string) ([]model.CompBatchResult, error) {
	var resp batchResultsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/comps/batch/"+escape(id)+"/results", nil, &resp); err != nil {
		return nil, fmt.Errorf("comp batch results: %w", err)
	}
	return resp.Results, nil
}

func (c *Client) CancelCompBatch(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/comps/batch/"+escape(id), nil, nil); err != nil {
		return fmt.Errorf("cancel comp batch: %w", err)
	}
	return nil
}
