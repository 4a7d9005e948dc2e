package model

import "time"

// Auction statuses. The server closes auctions; clients only observe the change.
const (
	AuctionStatusOpen   = "open"
	AuctionStatusClosed = "closed"
)

type Auction struct {
	ID        string    `json:"auction_id"`
	OwnerID   string    `json:"profile_id"`
	Name      string    `json:"auction_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// IsClosed reports whether the auction has reached its end conditions.
func (a Auction) IsClosed() bool {
	return a.Status == AuctionStatusClosed
}
