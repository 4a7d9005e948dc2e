package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/auctiondesk/internal/cache"
	"github.com/dukerupert/auctiondesk/internal/desk"
	"github.com/dukerupert/auctiondesk/internal/model"
)

const recentAuctionCount = 5

type DashboardHandler struct {
	desk   *desk.Service
	cache  *cache.Store
	logger *slog.Logger
}

func NewDashboardHandler(d *desk.Service, c *cache.Store, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{desk: d, cache: c, logger: logger}
}

// State returns the whole cache for a view's first render.
func (h *DashboardHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.State())
}

func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.Reload(r.Context()); err != nil {
		writeFailure(w, h.logger, "reload", err)
		return
	}
	writeJSON(w, http.StatusOK, h.cache.StatsSummary())
}

type dashboard struct {
	Stats           cache.Stats              `json:"stats"`
	ItemsPerAuction []cache.AuctionItemCount `json:"items_per_auction"`
	CompsBySource   []cache.SourceCount      `json:"comps_by_source"`
	ItemsByDay      []cache.DayCount         `json:"items_by_day"`
	RecentAuctions  []model.Auction          `json:"recent_auctions"`
	Status          cache.Status             `json:"status"`
}

func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboard{
		Stats:           h.cache.StatsSummary(),
		ItemsPerAuction: h.cache.ItemsPerAuction(),
		CompsBySource:   h.cache.CompsBySource(),
		ItemsByDay:      h.cache.ItemsCreatedByDay(),
		RecentAuctions:  h.cache.RecentAuctions(recentAuctionCount),
		Status:          h.cache.Status(),
	})
}

// searchResult pairs an item with the auction it belongs to.
type searchResult struct {
	model.Item
	AuctionName string `json:"auction_name"`
}

func (h *DashboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	items := h.cache.SearchItems(r.URL.Query().Get("q"))
	out := make([]searchResult, 0, len(items))
	for _, it := range items {
		res := searchResult{Item: it}
		if a, ok := h.cache.Auction(it.AuctionID); ok {
			res.AuctionName = a.Name
		}
		out = append(out, res)
	}
	writeJSON(w, http.StatusOK, out)
}
