package model

import "time"

type Bid struct {
	ID          string    `json:"bid_id"`
	ItemID      string    `json:"item_id"`
	BidderName  string    `json:"bidder_name"`
	BidderEmail string    `json:"bidder_email"`
	Amount      float64   `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemBids is one item's entry in the auction bid feed. Bids arrive ranked
// highest first.
type ItemBids struct {
	ItemID       string  `json:"item_id"`
	Name         string  `json:"name"`
	StartingBid  float64 `json:"starting_bid"`
	MinIncrement float64 `json:"min_increment"`
	BuyNowPrice  float64 `json:"buy_now_price"`
	BidCount     int     `json:"bid_count"`
	HighestBid   float64 `json:"highest_bid"`
	IsSold       bool    `json:"is_sold"`
	IsListed     *bool   `json:"is_listed,omitempty"`
	Bids         []Bid   `json:"bids"`
}

// Listed treats a missing is_listed flag as listed.
func (ib ItemBids) Listed() bool {
	return ib.IsListed == nil || *ib.IsListed
}

// HasBids reports whether the item has received any bid.
func (ib ItemBids) HasBids() bool {
	return len(ib.Bids) > 0 || ib.HighestBid > 0
}

type AuctionBids struct {
	Auction       Auction    `json:"auction"`
	ItemsWithBids []ItemBids `json:"items_with_bids"`
}
