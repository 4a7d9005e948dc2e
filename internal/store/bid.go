package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/auctiondesk/internal/model"
)

var (
	ErrAuctionClosed = errors.New("auction is closed")
	ErrItemSold      = errors.New("item is already sold")
)

// BidTooLowError rejects a bid under the item's current minimum.
type BidTooLowError struct {
	Minimum float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be at least %.2f", e.Minimum)
}

// MinimumBid is the lowest acceptable next bid: the starting bid when there
// are no bids yet, otherwise the highest bid plus the increment.
func MinimumBid(startingBid, increment, highest float64) float64 {
	if highest <= 0 {
		return startingBid
	}
	return max(startingBid, highest+increment)
}

type BidStore struct {
	db *sql.DB
}

func NewBidStore(db *sql.DB) *BidStore {
	return &BidStore{db: db}
}

func scanBid(s scanner) (*model.Bid, error) {
	var b model.Bid
	err := s.Scan(&b.ID, &b.ItemID, &b.BidderName, &b.BidderEmail, &b.Amount, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const bidCols = `id, item_id, bidder_name, bidder_email, amount, created_at`

func (s *BidStore) Create(itemID, bidderName, bidderEmail string, amount float64) (*model.Bid, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO bids (id, item_id, bidder_name, bidder_email, amount) VALUES (?, ?, ?, ?, ?)`,
		id, itemID, bidderName, bidderEmail, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("insert bid: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+bidCols+` FROM bids WHERE id = ?`, id)
	b, err := scanBid(row)
	if err != nil {
		return nil, fmt.Errorf("get bid: %w", err)
	}
	return b, nil
}

// Place records a bid if the item is open for bidding and the amount meets
// the current minimum. The check and the insert run in one transaction so
// concurrent bids cannot both clear the same minimum. A bid at or above the
// buy-now price marks the item sold, reported by the second return value.
func (s *BidStore) Place(ctx context.Context, itemID, bidderName, bidderEmail string, amount float64) (*model.Bid, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin place bid: %w", err)
	}
	defer tx.Rollback()

	var startingBid, increment, buyNow float64
	var isSold int
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT i.starting_bid, i.min_increment, i.buy_now_price, i.is_sold, a.status
		FROM items i JOIN auctions a ON a.id = i.auction_id WHERE i.id = ?`,
		itemID,
	).Scan(&startingBid, &increment, &buyNow, &isSold, &status)
	if err == sql.ErrNoRows {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("get bid item: %w", err)
	}
	if status == model.AuctionStatusClosed {
		return nil, false, ErrAuctionClosed
	}
	if isSold != 0 {
		return nil, false, ErrItemSold
	}

	var highest sql.NullFloat64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(amount) FROM bids WHERE item_id = ?`, itemID).Scan(&highest); err != nil {
		return nil, false, fmt.Errorf("highest bid: %w", err)
	}
	if minBid := MinimumBid(startingBid, increment, highest.Float64); amount < minBid {
		return nil, false, &BidTooLowError{Minimum: minBid}
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bids (id, item_id, bidder_name, bidder_email, amount) VALUES (?, ?, ?, ?, ?)`,
		id, itemID, bidderName, bidderEmail, amount,
	); err != nil {
		return nil, false, fmt.Errorf("insert bid: %w", err)
	}
	sold := buyNow > 0 && amount >= buyNow
	if sold {
		if _, err := tx.ExecContext(ctx, `UPDATE items SET is_sold = 1 WHERE id = ?`, itemID); err != nil {
			return nil, false, fmt.Errorf("mark item sold: %w", err)
		}
	}
	b, err := scanBid(tx.QueryRowContext(ctx, `SELECT `+bidCols+` FROM bids WHERE id = ?`, id))
	if err != nil {
		return nil, false, fmt.Errorf("get bid: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit bid: %w", err)
	}
	return b, sold, nil
}

// Highest returns the item's highest bid amount, or 0 without bids.
func (s *BidStore) Highest(itemID string) (float64, error) {
	var amount sql.NullFloat64
	if err := s.db.QueryRow(`SELECT MAX(amount) FROM bids WHERE item_id = ?`, itemID).Scan(&amount); err != nil {
		return 0, fmt.Errorf("highest bid: %w", err)
	}
	return amount.Float64, nil
}

// ListByItem returns the item's bids highest first. Equal amounts keep the
// earlier bid ahead.
func (s *BidStore) ListByItem(itemID string) ([]model.Bid, error) {
	rows, err := s.db.Query(
		`SELECT `+bidCols+` FROM bids WHERE item_id = ? ORDER BY amount DESC, created_at, rowid`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	bids := []model.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, *b)
	}
	return bids, rows.Err()
}

// AuctionFeed builds the bid feed for an auction: every item in creation order
// with its ranked bids and totals. It returns nil if the auction does not exist.
func (s *BidStore) AuctionFeed(auctionID string) (*model.AuctionBids, error) {
	row := s.db.QueryRow(`SELECT `+auctionCols+` FROM auctions WHERE id = ?`, auctionID)
	auction, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auction: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT id, title, starting_bid, min_increment, buy_now_price, is_sold, is_listed
		FROM items WHERE auction_id = ? ORDER BY created_at, rowid`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list auction items: %w", err)
	}
	entries := []model.ItemBids{}
	for rows.Next() {
		var ib model.ItemBids
		var sold, listed int
		if err := rows.Scan(&ib.ItemID, &ib.Name, &ib.StartingBid, &ib.MinIncrement, &ib.BuyNowPrice, &sold, &listed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan auction item: %w", err)
		}
		ib.IsSold = sold != 0
		isListed := listed != 0
		ib.IsListed = &isListed
		entries = append(entries, ib)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		bids, err := s.ListByItem(entries[i].ItemID)
		if err != nil {
			return nil, err
		}
		entries[i].Bids = bids
		entries[i].BidCount = len(bids)
		if len(bids) > 0 {
			entries[i].HighestBid = bids[0].Amount
		}
	}
	return &model.AuctionBids{Auction: *auction, ItemsWithBids: entries}, nil
}
