package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dukerupert/auctiondesk/internal/model"
)

type auctionsResponse struct {
	Auctions []model.Auction `json:"auctions"`
}

type auctionResponse struct {
	Auction model.Auction `json:"auction"`
}

// AuctionUpdate changes an auction. Nil fields are left untouched.
type AuctionUpdate struct {
	Name   *string `json:"auction_name,omitempty"`
	Status *string `json:"status,omitempty"`
}

// ListAuctions returns every auction owned by profileID.
func (c *Client) ListAuctions(ctx context.Context, profileID string) ([]model.Auction, error) {
	q := url.Values{"profile_id": {profileID}}
	var resp auctionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/auctions?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	if resp.Auctions == nil {
		resp.Auctions = []model.Auction{}
	}
	return resp.Auctions, nil
}

func (c *Client) GetAuction(ctx context.Context, id string) (model.Auction, error) {
	var resp auctionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/auctions/"+escape(id), nil, &resp); err != nil {
		return model.Auction{}, fmt.Errorf("get auction: %w", err)
	}
	return resp.Auction, nil
}

// CreateAuction creates an auction for profileID and returns the server record.
func (c *Client) CreateAuction(ctx context.Context, profileID, name string) (model.Auction, error) {
	in := map[string]string{"profile_id": profileID, "auction_name": name}
	var resp auctionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auctions", in, &resp); err != nil {
		return model.Auction{}, fmt.Errorf("create auction: %w", err)
	}
	return resp.Auction, nil
}

func (c *Client) UpdateAuction(ctx context.Context, id string, upd AuctionUpdate) (model.Auction, error) {
	var resp auctionResponse
	if err := c.doJSON(ctx, http.MethodPut, "/auctions/"+escape(id), upd, &resp); err != nil {
		return model.Auction{}, fmt.Errorf("update auction: %w", err)
	}
	return resp.Auction, nil
}

// DeleteAuction deletes the auction. The server cascades to its items.
func (c *Client) DeleteAuction(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/auctions/"+escape(id), nil, nil); err != nil {
		return fmt.Errorf("delete auction: %w", err)
	}
	return nil
}

// AuctionBids returns the auction's bid feed, bids ranked highest first.
func (c *Client) AuctionBids(ctx context.Context, auctionID string) (*model.AuctionBids, error) {
	var resp model.AuctionBids
	if err := c.doJSON(ctx, http.MethodGet, "/auctions/"+escape(auctionID)+"/bids", nil, &resp); err != nil {
		return nil, fmt.Errorf("auction bids: %w", err)
	}
	return &resp, nil
}

// BidRequest places a bid through the fixture API.
type BidRequest struct {
	BidderName  string  `json:"bidder_name"`
	BidderEmail string  `json:"bidder_email"`
	Amount      float64 `json:"amount"`
}

type bidResponse struct {
	Bid model.Bid `json:"bid"`
}

func (c *Client) PlaceBid(ctx context.Context, itemID string, in BidRequest) (model.Bid, error) {
	var resp bidResponse
	if err := c.doJSON(ctx, http.MethodPost, "/items/"+escape(itemID)+"/bids", in, &resp); err != nil {
		return model.Bid{}, fmt.Errorf("place bid: %w", err)
	}
	return resp.Bid, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the session the API issued.
type LoginResult struct {
	Token     string `json:"token"`
	ProfileID string `json:"profile_id"`
}

// Login exchanges credentials for a bearer token and starts using it.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var resp LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return LoginResult{}, fmt.Errorf("login: %w", err)
	}
	c.SetToken(resp.Token)
	return resp, nil
}
