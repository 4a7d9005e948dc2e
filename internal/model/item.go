package model

import (
	"strconv"
	"strings"
	"time"
)

type Item struct {
	ID            string      `json:"item_id"`
	AuctionID     string      `json:"auction_id"`
	Title         string      `json:"title"`
	Brand         string      `json:"brand"`
	Model         string      `json:"model"`
	Year          int         `json:"year,omitempty"`
	Description   string      `json:"description"`
	AIDescription string      `json:"ai_description"`
	StartingBid   float64     `json:"starting_bid"`
	MinIncrement  float64     `json:"min_increment"`
	BuyNowPrice   float64     `json:"buy_now_price"`
	Status        string      `json:"status,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	Images        []ItemImage `json:"images,omitempty"`
}

// ItemPatch carries a partial item update. Nil fields are left untouched.
type ItemPatch struct {
	Title         *string  `json:"title,omitempty"`
	Brand         *string  `json:"brand,omitempty"`
	Model         *string  `json:"model,omitempty"`
	Year          *int     `json:"year,omitempty"`
	Description   *string  `json:"description,omitempty"`
	AIDescription *string  `json:"ai_description,omitempty"`
	StartingBid   *float64 `json:"starting_bid,omitempty"`
	MinIncrement  *float64 `json:"min_increment,omitempty"`
	BuyNowPrice   *float64 `json:"buy_now_price,omitempty"`
	Status        *string  `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Title == nil && p.Brand == nil && p.Model == nil && p.Year == nil &&
		p.Description == nil && p.AIDescription == nil && p.StartingBid == nil &&
		p.MinIncrement == nil && p.BuyNowPrice == nil && p.Status == nil
}

// Apply merges the non-nil fields of p into item and returns the result.
func (p ItemPatch) Apply(item Item) Item {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Brand != nil {
		item.Brand = *p.Brand
	}
	if p.Model != nil {
		item.Model = *p.Model
	}
	if p.Year != nil {
		item.Year = *p.Year
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.AIDescription != nil {
		item.AIDescription = *p.AIDescription
	}
	if p.StartingBid != nil {
		item.StartingBid = *p.StartingBid
	}
	if p.MinIncrement != nil {
		item.MinIncrement = *p.MinIncrement
	}
	if p.BuyNowPrice != nil {
		item.BuyNowPrice = *p.BuyNowPrice
	}
	if p.Status != nil {
		item.Status = *p.Status
	}
	return item
}

// PatchOf returns a patch that sets every editable field to its value in item.
func PatchOf(item Item) ItemPatch {
	return ItemPatch{
		Title:         &item.Title,
		Brand:         &item.Brand,
		Model:         &item.Model,
		Year:          &item.Year,
		Description:   &item.Description,
		AIDescription: &item.AIDescription,
		StartingBid:   &item.StartingBid,
		MinIncrement:  &item.MinIncrement,
		BuyNowPrice:   &item.BuyNowPrice,
		Status:        &item.Status,
	}
}

// DisplayTitle builds the "Brand Model Year" title used when no title was supplied.
// Empty parts are skipped.
func DisplayTitle(brand, model string, year int) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{brand, model} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if year > 0 {
		parts = append(parts, strconv.Itoa(year))
	}
	return strings.Join(parts, " ")
}

type ItemImage struct {
	ID        int64     `json:"image_id"`
	ItemID    string    `json:"item_id"`
	URL       string    `json:"url"`
	Position  int       `json:"position"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}
