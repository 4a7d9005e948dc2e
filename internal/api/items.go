package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukerupert/auctiondesk/internal/model"
)

type itemsResponse struct {
	Items []model.Item `json:"items"`
}

type itemResponse struct {
	Item model.Item `json:"item"`
}

// NewItem is the payload for creating an item. Images reserve image slots; their
// URLs are usually filled in after upload with UpdateItemImage.
type NewItem struct {
	AuctionID     string     `json:"auction_id"`
	Title         string     `json:"title"`
	Brand         string     `json:"brand"`
	Model         string     `json:"model"`
	Year          int        `json:"year,omitempty"`
	Description   string     `json:"description"`
	AIDescription string     `json:"ai_description"`
	StartingBid   float64    `json:"starting_bid"`
	MinIncrement  float64    `json:"min_increment"`
	BuyNowPrice   float64    `json:"buy_now_price"`
	Images        []NewImage `json:"images,omitempty"`
}

type NewImage struct {
	URL       string `json:"url"`
	Position  int    `json:"position"`
	IsPrimary bool   `json:"is_primary"`
}

// CreatedItem is the server's response to CreateItem.
type CreatedItem struct {
	Item   model.Item        `json:"item"`
	Images []model.ItemImage `json:"images"`
}

// ListItems returns every item owned by profileID, images nested.
func (c *Client) ListItems(ctx context.Context, profileID string) ([]model.Item, error) {
	return c.listItems(ctx, url.Values{"profile_id": {profileID}})
}

// ListAuctionItems returns the items of one auction.
func (c *Client) ListAuctionItems(ctx context.Context, profileID, auctionID string) ([]model.Item, error) {
	return c.listItems(ctx, url.Values{"profile_id": {profileID}, "auction_id": {auctionID}})
}

func (c *Client) listItems(ctx context.Context, q url.Values) ([]model.Item, error) {
	var resp itemsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/items?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if resp.Items == nil {
		resp.Items = []model.Item{}
	}
	return resp.Items, nil
}

func (c *Client) CreateItem(ctx context.Context, in NewItem) (CreatedItem, error) {
	var resp CreatedItem
	if err := c.doJSON(ctx, http.MethodPost, "/items", in, &resp); err != nil {
		return CreatedItem{}, fmt.Errorf("create item: %w", err)
	}
	for i := range resp.Images {
		resp.Images[i].ItemID = resp.Item.ID
	}
	return resp, nil
}

func (c *Client) UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (model.Item, error) {
	var resp itemResponse
	if err := c.doJSON(ctx, http.MethodPut, "/items/"+escape(id), patch, &resp); err != nil {
		return model.Item{}, fmt.Errorf("update item: %w", err)
	}
	return resp.Item, nil
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/items/"+escape(id), nil, nil); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

type imageResponse struct {
	Image model.ItemImage `json:"image"`
}

func imagePath(itemID string, imageID int64) string {
	return "/items/" + escape(itemID) + "/images/" + strconv.FormatInt(imageID, 10)
}

// UpdateItemImage points an existing image record at url.
func (c *Client) UpdateItemImage(ctx context.Context, itemID string, imageID int64, imageURL string) (model.ItemImage, error) {
	var resp imageResponse
	in := map[string]string{"url": imageURL}
	if err := c.doJSON(ctx, http.MethodPut, imagePath(itemID, imageID), in, &resp); err != nil {
		return model.ItemImage{}, fmt.Errorf("update item image: %w", err)
	}
	return resp.Image, nil
}

func (c *Client) DeleteItemImage(ctx context.Context, itemID string, imageID int64) error {
	if err := c.doJSON(ctx, http.MethodDelete, imagePath(itemID, imageID), nil, nil); err != nil {
		return fmt.Errorf("delete item image: %w", err)
	}
	return nil
}

// DescriptionRequest is the input for AI description generation.
type DescriptionRequest struct {
	Image    io.Reader
	Filename string
	Title    string
	Model    string
	Year     int
	Notes    string
}

type descriptionResponse struct {
	Description string `json:"description"`
}

// GenerateDescription uploads an item photo with its details and returns the
// generated description.
func (c *Client) GenerateDescription(ctx context.Context, in DescriptionRequest) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if in.Image != nil {
		name := in.Filename
		if name == "" {
			name = "image.jpg"
		}
		part, err := w.CreateFormFile("image", name)
		if err != nil {
			return "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, in.Image); err != nil {
			return "", fmt.Errorf("copy image: %w", err)
		}
	}
	fields := map[string]string{
		"title": in.Title,
		"model": in.Model,
		"notes": in.Notes,
	}
	if in.Year > 0 {
		fields["year"] = strconv.Itoa(in.Year)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/items/generate-description", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp descriptionResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("generate description: %w", err)
	}
	return resp.Description, nil
}
