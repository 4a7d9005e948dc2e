package model

import "time"

// Comp is a comparable sale used to estimate an item's value. Array order is
// presentation order.
type Comp struct {
	ID        int64   `json:"id"`
	ItemID    string  `json:"item_id"`
	Source    string  `json:"source"`
	SourceURL string  `json:"source_url"`
	SoldPrice float64 `json:"sold_price"`
	Currency  string  `json:"currency"`
	SoldAt    string  `json:"sold_at"`
	Notes     string  `json:"notes"`
}

// CompListing is a raw marketplace sale row as scraped or stored by the API.
type CompListing struct {
	ID             int64   `json:"id,omitempty"`
	ItemID         string  `json:"item_id,omitempty"`
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	SalePrice      float64 `json:"sale_price,omitempty"`
	Currency       string  `json:"currency,omitempty"`
	BestOfferPrice float64 `json:"best_offer_price,omitempty"`
	ListPrice      float64 `json:"list_price,omitempty"`
	CurrentPrice   float64 `json:"current_price,omitempty"`
	Bids           int     `json:"bids,omitempty"`
	SaleType       string  `json:"sale_type,omitempty"`
	DateText       string  `json:"date_text,omitempty"`
	Shipping       string  `json:"shipping,omitempty"`
	ImageThumb     string  `json:"image_thumb,omitempty"`
	ImageLarge     string  `json:"image_large,omitempty"`
	Source         string  `json:"source,omitempty"`
}

// SoldPrice returns the sale price, falling back to the accepted best offer and
// then the current price.
func (l CompListing) SoldPrice() float64 {
	switch {
	case l.SalePrice > 0:
		return l.SalePrice
	case l.BestOfferPrice > 0:
		return l.BestOfferPrice
	default:
		return l.CurrentPrice
	}
}

// Comp converts the listing into a comp attached to itemID.
func (l CompListing) Comp(itemID string) Comp {
	return Comp{
		ID:        l.ID,
		ItemID:    itemID,
		Source:    l.Source,
		SourceURL: l.Link,
		SoldPrice: l.SoldPrice(),
		Currency:  l.Currency,
		SoldAt:    l.DateText,
		Notes:     l.Title,
	}
}

// Comp batch statuses.
const (
	BatchStatusPending   = "pending"
	BatchStatusRunning   = "running"
	BatchStatusDone      = "done"
	BatchStatusCancelled = "cancelled"
	BatchStatusFailed    = "failed"
)

type CompBatch struct {
	ID        string    `json:"batch_id"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Finished reports whether the batch will make no further progress.
func (b CompBatch) Finished() bool {
	switch b.Status {
	case BatchStatusDone, BatchStatusCancelled, BatchStatusFailed:
		return true
	}
	return false
}

type CompBatchResult struct {
	ItemID string        `json:"item_id"`
	Comps  []CompListing `json:"comps"`
	Error  string        `json:"error,omitempty"`
}
