package bids

import "github.com/dukerupert/auctiondesk/internal/model"

// Mode selects which items appear in a winner list.
type Mode string

const (
	// ModeOpen lists only items with at least one bid: a live leaderboard.
	ModeOpen Mode = "open"
	// ModeClosed lists every listed item so the seller gets a full manifest.
	ModeClosed Mode = "closed"
)

// ModeFor picks the winner mode for an auction status.
func ModeFor(status string) Mode {
	if status == model.AuctionStatusClosed {
		return ModeClosed
	}
	return ModeOpen
}

func modeForFeed(feed *model.AuctionBids) Mode {
	if feed == nil {
		return ModeOpen
	}
	return ModeFor(feed.Auction.Status)
}

const (
	anonymousBidder = "Anonymous"
	unknownEmail    = "N/A"
	noBidsName      = "No bids"
	noBidsEmail     = "-"
)

// Winner is the current top bid on one item.
type Winner struct {
	ItemID      string     `json:"item_id"`
	ItemName    string     `json:"item_name"`
	WinnerName  string     `json:"winner_name"`
	WinnerEmail string     `json:"winner_email"`
	WinningBid  float64    `json:"winning_bid"`
	Bid         *model.Bid `json:"bid"`
	BidCount    int        `json:"bid_count"`
	IsSold      bool       `json:"is_sold"`
	IsListed    bool       `json:"is_listed"`
	HasBids     bool       `json:"has_bids"`
}

// winnersFor trusts the server's ranking: index 0 is the winner. Bids are
// never re-sorted here.
func winnersFor(feed *model.AuctionBids, mode Mode) []Winner {
	out := []Winner{}
	if feed == nil {
		return out
	}
	for _, ib := range feed.ItemsWithBids {
		hasBids := ib.HasBids()
		switch mode {
		case ModeClosed:
			if !ib.Listed() {
				continue
			}
		default:
			if !hasBids {
				continue
			}
		}

		w := Winner{
			ItemID:   ib.ItemID,
			ItemName: ib.Name,
			BidCount: ib.BidCount,
			IsSold:   ib.IsSold,
			IsListed: ib.Listed(),
			HasBids:  hasBids,
		}
		if !hasBids {
			w.WinnerName = noBidsName
			w.WinnerEmail = noBidsEmail
			out = append(out, w)
			continue
		}

		w.WinnerName = anonymousBidder
		w.WinnerEmail = unknownEmail
		w.WinningBid = ib.HighestBid
		if len(ib.Bids) > 0 {
			top := ib.Bids[0]
			w.Bid = &top
			w.WinningBid = top.Amount
			if top.BidderName != "" {
				w.WinnerName = top.BidderName
			}
			if top.BidderEmail != "" {
				w.WinnerEmail = top.BidderEmail
			}
		}
		out = append(out, w)
	}
	return out
}

// Stats are the aggregate figures of the bid tracking view.
type Stats struct {
	TotalItems       int     `json:"total_items"`
	ItemsWithBids    int     `json:"items_with_bids"`
	SoldItems        int     `json:"sold_items"`
	TotalBids        int     `json:"total_bids"`
	TotalHighestBids float64 `json:"total_highest_bids"`
}

func statsFor(feed *model.AuctionBids) Stats {
	var s Stats
	if feed == nil {
		return s
	}
	for _, ib := range feed.ItemsWithBids {
		s.TotalItems++
		if ib.BidCount > 0 {
			s.ItemsWithBids++
		}
		if ib.IsSold {
			s.SoldItems++
		}
		s.TotalBids += ib.BidCount
		s.TotalHighestBids += ib.HighestBid
	}
	return s
}
