package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/auctiondesk/internal/model"
)

type CompStore struct {
	db *sql.DB
}

func NewCompStore(db *sql.DB) *CompStore {
	return &CompStore{db: db}
}

func scanComp(s scanner) (*model.Comp, error) {
	var c model.Comp
	err := s.Scan(&c.ID, &c.ItemID, &c.Source, &c.SourceURL, &c.SoldPrice, &c.Currency, &c.SoldAt, &c.Notes)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const compCols = `id, item_id, source, source_url, sold_price, currency, sold_at, notes`

// SaveListings stores the listings as comps of itemID in the given order and
// returns them with their ids and item id filled in.
func (s *CompStore) SaveListings(itemID string, listings []model.CompListing) ([]model.CompListing, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	saved := make([]model.CompListing, 0, len(listings))
	for _, l := range listings {
		c := l.Comp(itemID)
		result, err := tx.Exec(
			`INSERT INTO comps (item_id, source, source_url, sold_price, currency, sold_at, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			itemID, c.Source, c.SourceURL, c.SoldPrice, c.Currency, c.SoldAt, c.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("insert comp: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		l.ID = id
		l.ItemID = itemID
		saved = append(saved, l)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// ListByItem returns the item's comps in the order they were saved.
func (s *CompStore) ListByItem(itemID string) ([]model.Comp, error) {
	rows, err := s.db.Query(`SELECT `+compCols+` FROM comps WHERE item_id = ? ORDER BY id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list comps: %w", err)
	}
	defer rows.Close()

	comps := []model.Comp{}
	for rows.Next() {
		c, err := scanComp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comp: %w", err)
		}
		comps = append(comps, *c)
	}
	return comps, rows.Err()
}
