package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/auctiondesk/internal/model"
)

type AuctionStore struct {
	db *sql.DB
}

func NewAuctionStore(db *sql.DB) *AuctionStore {
	return &AuctionStore{db: db}
}

func scanAuction(s scanner) (*model.Auction, error) {
	var a model.Auction
	err := s.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const auctionCols = `id, profile_id, name, status, created_at`

func (s *AuctionStore) Create(profileID, name string) (*model.Auction, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO auctions (id, profile_id, name) VALUES (?, ?, ?)`,
		id, profileID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert auction: %w", err)
	}
	return s.GetByID(id)
}

func (s *AuctionStore) GetByID(id string) (*model.Auction, error) {
	row := s.db.QueryRow(`SELECT `+auctionCols+` FROM auctions WHERE id = ?`, id)
	a, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auction: %w", err)
	}
	return a, nil
}

// ListByProfile returns the profile's auctions oldest first.
func (s *AuctionStore) ListByProfile(profileID string) ([]model.Auction, error) {
	rows, err := s.db.Query(
		`SELECT `+auctionCols+` FROM auctions WHERE profile_id = ? ORDER BY created_at, rowid`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	auctions := []model.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		auctions = append(auctions, *a)
	}
	return auctions, rows.Err()
}

// Update changes the name and/or status. Nil arguments are left untouched.
func (s *AuctionStore) Update(id string, name, status *string) (*model.Auction, error) {
	result, err := s.db.Exec(
		`UPDATE auctions SET name = COALESCE(?, name), status = COALESCE(?, status) WHERE id = ?`,
		name, status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update auction: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(id)
}

// Delete removes the auction; its items, images, comps and bids cascade.
func (s *AuctionStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM auctions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete auction: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
