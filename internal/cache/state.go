package cache

import "github.com/dukerupert/auctiondesk/internal/model"

// State is the normalized contents of the cache. Items never carry nested
// images; those live in Images.
type State struct {
	Auctions []model.Auction   `json:"auctions"`
	Items    []model.Item      `json:"items"`
	Images   []model.ItemImage `json:"images"`
	Comps    []model.Comp      `json:"comps"`
	Loading  bool              `json:"loading"`
	Error    string            `json:"error,omitempty"`
}

// Snapshot is a full replacement payload for the cache.
type Snapshot struct {
	Auctions []model.Auction
	Items    []model.Item
	Images   []model.ItemImage
	Comps    []model.Comp
}

// Change describes one applied action. Listeners use it to fan updates out to views.
type Change struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

const (
	EntityCache   = "cache"
	EntityAuction = "auction"
	EntityItem    = "item"
	EntityImage   = "image"
	EntityComp    = "comp"

	ActionLoaded  = "loaded"
	ActionError   = "error"
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Stats is the dashboard summary of the cache.
type Stats struct {
	TotalAuctions int `json:"total_auctions"`
	TotalItems    int `json:"total_items"`
	TotalImages   int `json:"total_images"`
	TotalComps    int `json:"total_comps"`
}

// Status is the load state consumed by the top-level error banner.
type Status struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}
