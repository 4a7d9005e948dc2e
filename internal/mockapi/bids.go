package mockapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dukerupert/auctiondesk/internal/store"
)

func (a *API) auctionBids(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if a.ownedAuction(w, r, id) == nil {
		return
	}
	feed, err := a.bids.AuctionFeed(id)
	if err != nil {
		a.internalError(w, "get auction bids", err)
		return
	}
	if feed == nil {
		writeDetail(w, http.StatusNotFound, "auction not found")
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

type bidRequest struct {
	BidderName  string  `json:"bidder_name"`
	BidderEmail string  `json:"bidder_email"`
	Amount      float64 `json:"amount"`
}

// placeBid accepts a bid from the public bidding page. A bid at or above the
// buy-now price sells the item.
func (a *API) placeBid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if !decode(w, r, &req) {
		return
	}
	req.BidderName = strings.TrimSpace(req.BidderName)
	req.BidderEmail = strings.TrimSpace(req.BidderEmail)
	if req.BidderName == "" || req.BidderEmail == "" {
		writeDetail(w, http.StatusBadRequest, "bidder_name and bidder_email are required")
		return
	}
	if req.Amount <= 0 {
		writeDetail(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	itemID := r.PathValue("id")
	bid, sold, err := a.bids.Place(r.Context(), itemID, req.BidderName, req.BidderEmail, req.Amount)
	var tooLow *store.BidTooLowError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "item not found")
		return
	case errors.Is(err, store.ErrAuctionClosed), errors.Is(err, store.ErrItemSold):
		writeDetail(w, http.StatusConflict, err.Error())
		return
	case errors.As(err, &tooLow):
		writeDetail(w, http.StatusBadRequest, tooLow.Error())
		return
	case err != nil:
		a.internalError(w, "place bid", err)
		return
	}
	if sold {
		a.logger.Info("item sold", "item_id", itemID, "amount", req.Amount)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bid": bid})
}
