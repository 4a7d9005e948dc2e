package mockapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dukerupert/auctiondesk/internal/auth"
	"github.com/dukerupert/auctiondesk/internal/model"
	"github.com/dukerupert/auctiondesk/internal/store"
)

// profileParam returns the requested profile, defaulting to the caller's.
func profileParam(r *http.Request) string {
	if p := r.URL.Query().Get("profile_id"); p != "" {
		return p
	}
	return auth.UserID(r.Context())
}

// ownedAuction loads the auction and checks the caller may use it. It writes
// the error response and returns nil when not.
func (a *API) ownedAuction(w http.ResponseWriter, r *http.Request, id string) *model.Auction {
	auction, err := a.auctions.GetByID(id)
	if err != nil {
		a.internalError(w, "get auction", err)
		return nil
	}
	if auction == nil || !auth.CanAccessProfile(r.Context(), auction.OwnerID) {
		writeDetail(w, http.StatusNotFound, "auction not found")
		return nil
	}
	return auction
}

func (a *API) listAuctions(w http.ResponseWriter, r *http.Request) {
	profileID := profileParam(r)
	if !auth.CanAccessProfile(r.Context(), profileID) {
		writeDetail(w, http.StatusForbidden, "cannot access this profile")
		return
	}
	auctions, err := a.auctions.ListByProfile(profileID)
	if err != nil {
		a.internalError(w, "list auctions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": auctions})
}

type createAuctionRequest struct {
	ProfileID string `json:"profile_id"`
	Name      string `json:"auction_name"`
}

func (a *API) createAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if !decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeDetail(w, http.StatusBadRequest, "auction_name is required")
		return
	}
	if req.ProfileID == "" {
		req.ProfileID = auth.UserID(r.Context())
	}
	if !auth.CanAccessProfile(r.Context(), req.ProfileID) {
		writeDetail(w, http.StatusForbidden, "cannot access this profile")
		return
	}

	auction, err := a.auctions.Create(req.ProfileID, req.Name)
	if err != nil {
		a.internalError(w, "create auction", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"auction": auction})
}

func (a *API) getAuction(w http.ResponseWriter, r *http.Request) {
	auction := a.ownedAuction(w, r, r.PathValue("id"))
	if auction == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auction": auction})
}

type updateAuctionRequest struct {
	Name   *string `json:"auction_name"`
	Status *string `json:"status"`
}

func (a *API) updateAuction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if a.ownedAuction(w, r, id) == nil {
		return
	}
	var req updateAuctionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeDetail(w, http.StatusBadRequest, "auction_name cannot be empty")
			return
		}
		req.Name = &name
	}
	if req.Status != nil && *req.Status != model.AuctionStatusOpen && *req.Status != model.AuctionStatusClosed {
		writeDetail(w, http.StatusBadRequest, "status must be open or closed")
		return
	}

	auction, err := a.auctions.Update(id, req.Name, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "auction not found")
		return
	}
	if err != nil {
		a.internalError(w, "update auction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"auction": auction})
}

func (a *API) deleteAuction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if a.ownedAuction(w, r, id) == nil {
		return
	}
	if err := a.auctions.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.internalError(w, "delete auction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
