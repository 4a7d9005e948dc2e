package desk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dukerupert/auctiondesk/internal/api"
	"github.com/dukerupert/auctiondesk/internal/model"
)

// Placeholder image URLs used until a photo upload succeeds.
const (
	UploadingImageURL = "https://via.placeholder.com/400x300?text=Uploading..."
	NoImageURL        = "https://via.placeholder.com/400x300?text=No+Image"
)

// CompsPerNewItem is how many comps are looked up for each newly created item.
const CompsPerNewItem = 3

// Upload is a photo received from the browser. The bytes are held in memory
// because they are sent twice: once for description generation and once to
// storage.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (u Upload) Reader() io.Reader {
	return bytes.NewReader(u.Data)
}

// Draft is one row of the multi-item form.
type Draft struct {
	Brand         string  `json:"brand"`
	Model         string  `json:"model"`
	Year          int     `json:"year,omitempty"`
	Notes         string  `json:"notes"`
	AIDescription string  `json:"ai_description"`
	StartingBid   float64 `json:"starting_bid"`
	MinIncrement  float64 `json:"min_increment"`
	BuyNowPrice   float64 `json:"buy_now_price"`
	Image         *Upload `json:"-"`
}

func (d Draft) valid() bool {
	return strings.TrimSpace(d.Brand) != "" && strings.TrimSpace(d.Model) != ""
}

// CreatedItem reports what happened to one draft.
type CreatedItem struct {
	Item             model.Item      `json:"item"`
	Image            model.ItemImage `json:"image"`
	Comps            []model.Comp    `json:"comps"`
	DescriptionError string          `json:"description_error,omitempty"`
	UploadError      string          `json:"upload_error,omitempty"`
	CompsError       string          `json:"comps_error,omitempty"`
}

// AddItemsResult summarizes a multi-item save.
type AddItemsResult struct {
	Items      []CreatedItem `json:"items"`
	Skipped    int           `json:"skipped"`
	CompsAdded int           `json:"comps_added"`
}

// AddItems creates every draft that has a brand and a model. For each one it
// generates a description from the photo when none was given, creates the
// item, uploads the photo, and caches the result. Comps are then looked up for
// all created items. Description, upload and comp failures are recorded on
// the item and do not stop the run; a failed item creation stops it and
// returns what was created so far.
func (s *Service) AddItems(ctx context.Context, auctionID string, drafts []Draft) (AddItemsResult, error) {
	var res AddItemsResult
	valid := make([]Draft, 0, len(drafts))
	for _, d := range drafts {
		if d.valid() {
			valid = append(valid, d)
		}
	}
	res.Skipped = len(drafts) - len(valid)
	if len(valid) == 0 {
		return res, fmt.Errorf("%w: fill in at least one item with brand and model", ErrInvalidDraft)
	}

	for _, d := range valid {
		created, err := s.createDraft(ctx, auctionID, d)
		if err != nil {
			return res, fmt.Errorf("create item %q: %w", model.DisplayTitle(d.Brand, d.Model, d.Year), err)
		}
		res.Items = append(res.Items, created)
	}

	for i := range res.Items {
		ci := &res.Items[i]
		comps, err := s.FetchComps(ctx, ci.Item.ID, CompsPerNewItem)
		if err != nil {
			s.logger.Warn("fetch comps for new item", "item_id", ci.Item.ID, "error", err)
			ci.CompsError = err.Error()
			continue
		}
		ci.Comps = comps
		res.CompsAdded += len(comps)
	}

	s.logger.Info("items created",
		"auction_id", auctionID,
		"created", len(res.Items),
		"skipped", res.Skipped,
		"comps", res.CompsAdded,
	)
	return res, nil
}

func (s *Service) createDraft(ctx context.Context, auctionID string, d Draft) (CreatedItem, error) {
	var out CreatedItem
	title := model.DisplayTitle(d.Brand, d.Model, d.Year)

	aiDescription := d.AIDescription
	if d.Image != nil && aiDescription == "" {
		desc, err := s.remote.GenerateDescription(ctx, api.DescriptionRequest{
			Image:    d.Image.Reader(),
			Filename: d.Image.Filename,
			Title:    title,
			Model:    d.Model,
			Year:     d.Year,
			Notes:    d.Notes,
		})
		if err != nil {
			s.logger.Warn("generate description", "title", title, "error", err)
			out.DescriptionError = err.Error()
		} else {
			aiDescription = desc
		}
	}

	created, err := s.remote.CreateItem(ctx, api.NewItem{
		AuctionID:     auctionID,
		Title:         title,
		Brand:         d.Brand,
		Model:         d.Model,
		Year:          d.Year,
		Description:   d.Notes,
		AIDescription: aiDescription,
		StartingBid:   d.StartingBid,
		MinIncrement:  d.MinIncrement,
		BuyNowPrice:   d.BuyNowPrice,
		Images:        []api.NewImage{{URL: UploadingImageURL, Position: 1, IsPrimary: true}},
	})
	if err != nil {
		return out, err
	}
	itemID := created.Item.ID

	imageURL := NoImageURL
	var imageID int64
	if len(created.Images) > 0 {
		imageID = created.Images[0].ID
	}
	if d.Image != nil {
		url, err := s.uploadNewImage(ctx, itemID, imageID, *d.Image)
		if err != nil {
			s.logger.Warn("upload item image", "item_id", itemID, "error", err)
			out.UploadError = err.Error()
		} else {
			imageURL = url
		}
	}

	item := created.Item
	item.AuctionID = auctionID
	item.AIDescription = aiDescription
	out.Item = s.cache.AddItem(item)
	out.Image = s.cache.AddItemImage(model.ItemImage{
		ID:        imageID,
		ItemID:    itemID,
		URL:       imageURL,
		Position:  1,
		IsPrimary: true,
	})
	return out, nil
}

func (s *Service) uploadNewImage(ctx context.Context, itemID string, imageID int64, up Upload) (string, error) {
	if s.images == nil {
		return "", fmt.Errorf("upload image: storage not configured")
	}
	obj, err := s.images.Upload(ctx, itemID, up.Filename, up.ContentType, up.Reader(), int64(len(up.Data)))
	if err != nil {
		return "", err
	}
	if imageID != 0 {
		if _, err := s.remote.UpdateItemImage(ctx, itemID, imageID, obj.URL); err != nil {
			return "", err
		}
	}
	return obj.URL, nil
}
