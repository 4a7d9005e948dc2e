package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/auctiondesk/internal/model"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

// NewItem holds the fields of an item being created.
type NewItem struct {
	AuctionID     string
	Title         string
	Brand         string
	Model         string
	Year          int
	Description   string
	AIDescription string
	StartingBid   float64
	MinIncrement  float64
	BuyNowPrice   float64
	Images        []NewImage
}

type NewImage struct {
	URL       string
	Position  int
	IsPrimary bool
}

func scanItem(s scanner) (*model.Item, error) {
	var it model.Item
	var year sql.NullInt64
	err := s.Scan(
		&it.ID, &it.AuctionID, &it.Title, &it.Brand, &it.Model, &year,
		&it.Description, &it.AIDescription, &it.StartingBid, &it.MinIncrement,
		&it.BuyNowPrice, &it.Status, &it.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if year.Valid {
		it.Year = int(year.Int64)
	}
	return &it, nil
}

const itemCols = `items.id, items.auction_id, items.title, items.brand, items.model, items.year,
	items.description, items.ai_description, items.starting_bid, items.min_increment,
	items.buy_now_price, items.status, items.created_at`

func scanImage(s scanner) (*model.ItemImage, error) {
	var img model.ItemImage
	var primary int
	err := s.Scan(&img.ID, &img.ItemID, &img.URL, &img.Position, &primary, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	img.IsPrimary = primary != 0
	return &img, nil
}

const imageCols = `id, item_id, url, position, is_primary, created_at`

func nullYear(year int) sql.NullInt64 {
	if year <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(year), Valid: true}
}

// Create inserts the item and its image slots in one transaction. If no image
// is marked primary, the first one becomes primary.
func (s *ItemStore) Create(in NewItem) (*model.Item, []model.ItemImage, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO items (id, auction_id, title, brand, model, year, description, ai_description,
			starting_bid, min_increment, buy_now_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.AuctionID, in.Title, in.Brand, in.Model, nullYear(in.Year), in.Description,
		in.AIDescription, in.StartingBid, in.MinIncrement, in.BuyNowPrice,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert item: %w", err)
	}

	hasPrimary := false
	for _, img := range in.Images {
		hasPrimary = hasPrimary || img.IsPrimary
	}
	for i, img := range in.Images {
		primary := img.IsPrimary || (!hasPrimary && i == 0)
		if _, err := tx.Exec(
			`INSERT INTO item_images (item_id, url, position, is_primary) VALUES (?, ?, ?, ?)`,
			id, img.URL, img.Position, boolInt(primary),
		); err != nil {
			return nil, nil, fmt.Errorf("insert item image: %w", err)
		}
		if primary {
			hasPrimary = true
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	it, err := s.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	images, err := s.Images(id)
	if err != nil {
		return nil, nil, err
	}
	return it, images, nil
}

func (s *ItemStore) GetByID(id string) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE items.id = ?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// OwnerID returns the profile that owns the item's auction, or "" if the item
// does not exist.
func (s *ItemStore) OwnerID(itemID string) (string, error) {
	var owner string
	err := s.db.QueryRow(
		`SELECT auctions.profile_id FROM items JOIN auctions ON auctions.id = items.auction_id WHERE items.id = ?`,
		itemID,
	).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get item owner: %w", err)
	}
	return owner, nil
}

// List returns the profile's items oldest first with their images nested.
// auctionID narrows the list to one auction when non-empty.
func (s *ItemStore) List(profileID, auctionID string) ([]model.Item, error) {
	query := `SELECT ` + itemCols + ` FROM items
		JOIN auctions ON auctions.id = items.auction_id
		WHERE auctions.profile_id = ?`
	args := []any{profileID}
	if auctionID != "" {
		query += ` AND items.auction_id = ?`
		args = append(args, auctionID)
	}
	query += ` ORDER BY items.created_at, items.rowid`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		images, err := s.Images(items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Images = images
	}
	return items, nil
}

// Update applies the non-nil fields of patch.
func (s *ItemStore) Update(id string, patch model.ItemPatch) (*model.Item, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Brand != nil {
		add("brand", *patch.Brand)
	}
	if patch.Model != nil {
		add("model", *patch.Model)
	}
	if patch.Year != nil {
		add("year", nullYear(*patch.Year))
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.AIDescription != nil {
		add("ai_description", *patch.AIDescription)
	}
	if patch.StartingBid != nil {
		add("starting_bid", *patch.StartingBid)
	}
	if patch.MinIncrement != nil {
		add("min_increment", *patch.MinIncrement)
	}
	if patch.BuyNowPrice != nil {
		add("buy_now_price", *patch.BuyNowPrice)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if len(sets) == 0 {
		it, err := s.GetByID(id)
		if err == nil && it == nil {
			return nil, ErrNotFound
		}
		return it, err
	}

	args = append(args, id)
	result, err := s.db.Exec(`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(id)
}

func (s *ItemStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSold flags the item as sold.
func (s *ItemStore) MarkSold(id string) error {
	if _, err := s.db.Exec(`UPDATE items SET is_sold = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark item sold: %w", err)
	}
	return nil
}

// Images returns the item's images ordered by position.
func (s *ItemStore) Images(itemID string) ([]model.ItemImage, error) {
	rows, err := s.db.Query(
		`SELECT `+imageCols+` FROM item_images WHERE item_id = ? ORDER BY position, id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list item images: %w", err)
	}
	defer rows.Close()

	images := []model.ItemImage{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item image: %w", err)
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

func (s *ItemStore) UpdateImageURL(itemID string, imageID int64, url string) (*model.ItemImage, error) {
	result, err := s.db.Exec(
		`UPDATE item_images SET url = ? WHERE id = ? AND item_id = ?`,
		url, imageID, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("update item image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	row := s.db.QueryRow(`SELECT `+imageCols+` FROM item_images WHERE id = ?`, imageID)
	img, err := scanImage(row)
	if err != nil {
		return nil, fmt.Errorf("get item image: %w", err)
	}
	return img, nil
}

// DeleteImage removes one image. When it was the primary one, the next image
// by position is promoted.
func (s *ItemStore) DeleteImage(itemID string, imageID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var primary int
	err = tx.QueryRow(
		`SELECT is_primary FROM item_images WHERE id = ? AND item_id = ?`,
		imageID, itemID,
	).Scan(&primary)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get item image: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM item_images WHERE id = ?`, imageID); err != nil {
		return fmt.Errorf("delete item image: %w", err)
	}
	if primary != 0 {
		if _, err := tx.Exec(
			`UPDATE item_images SET is_primary = 1 WHERE id = (
				SELECT id FROM item_images WHERE item_id = ? ORDER BY position, id LIMIT 1)`,
			itemID,
		); err != nil {
			return fmt.Errorf("promote item image: %w", err)
		}
	}
	return tx.Commit()
}
