// Package desk runs staff workflows against the remote API and mirrors each
// confirmed change into the cache. A cache action is only applied after the
// remote call it depends on has succeeded.
package desk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dukerupert/auctiondesk/internal/api"
	"github.com/dukerupert/auctiondesk/internal/cache"
	"github.com/dukerupert/auctiondesk/internal/model"
	"github.com/dukerupert/auctiondesk/internal/storage"
)

var (
	// ErrInvalidDraft is returned when no draft carries both brand and model.
	ErrInvalidDraft = errors.New("invalid item draft")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Remote is the subset of the API client the desk drives.
type Remote interface {
	CreateAuction(ctx context.Context, profileID, name string) (model.Auction, error)
	UpdateAuction(ctx context.Context, id string, upd api.AuctionUpdate) (model.Auction, error)
	DeleteAuction(ctx context.Context, id string) error

	CreateItem(ctx context.Context, in api.NewItem) (api.CreatedItem, error)
	UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (model.Item, error)
	DeleteItem(ctx context.Context, id string) error
	UpdateItemImage(ctx context.Context, itemID string, imageID int64, url string) (model.ItemImage, error)
	DeleteItemImage(ctx context.Context, itemID string, imageID int64) error
	GenerateDescription(ctx context.Context, in api.DescriptionRequest) (string, error)

	SearchComps(ctx context.Context, itemID string, limit int) (api.CompSearch, error)
	StartCompBatch(ctx context.Context, itemIDs []string) (model.CompBatch, error)
	CompBatch(ctx context.Context, id string) (model.CompBatch, error)
	CompBatchResults(ctx context.Context, id string) ([]model.CompBatchResult, error)
	CancelCompBatch(ctx context.Context, id string) error
}

// ImageStore uploads item photos.
type ImageStore interface {
	Upload(ctx context.Context, itemID, filename, contentType string, body io.Reader, size int64) (storage.Object, error)
	KeyFromURL(url string) (string, bool)
	Delete(ctx context.Context, key string) error
}

// Service is the staff desk for one profile.
type Service struct {
	remote    Remote
	images    ImageStore
	cache     *cache.Store
	profileID string
	logger    *slog.Logger
}

// New creates a desk bound to profileID. images may be nil, in which case
// photos keep their placeholder URL.
func New(remote Remote, images ImageStore, store *cache.Store, profileID string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		remote:    remote,
		images:    images,
		cache:     store,
		profileID: profileID,
		logger:    logger,
	}
}

func (s *Service) ProfileID() string {
	return s.profileID
}

// Reload refreshes the whole cache from the remote API.
func (s *Service) Reload(ctx context.Context) error {
	return s.cache.Load(ctx, s.profileID)
}

// CreateAuction creates the auction remotely, then caches the server record.
func (s *Service) CreateAuction(ctx context.Context, name string) (model.Auction, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Auction{}, fmt.Errorf("%w: auction name is required", ErrInvalidInput)
	}
	a, err := s.remote.CreateAuction(ctx, s.profileID, name)
	if err != nil {
		return model.Auction{}, err
	}
	if a.OwnerID == "" {
		a.OwnerID = s.profileID
	}
	s.cache.CreateAuction(a)
	s.logger.Info("auction created", "auction_id", a.ID, "name", a.Name)
	return a, nil
}

func (s *Service) RenameAuction(ctx context.Context, id, name string) (model.Auction, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Auction{}, fmt.Errorf("%w: auction name is required", ErrInvalidInput)
	}
	a, err := s.remote.UpdateAuction(ctx, id, api.AuctionUpdate{Name: &name})
	if err != nil {
		return model.Auction{}, err
	}
	s.cache.RenameAuction(id, a.Name)
	if a.Status != "" {
		s.cache.SetAuctionStatus(id, a.Status)
	}
	return a, nil
}

// SetAuctionStatus asks the server to open or close the auction.
func (s *Service) SetAuctionStatus(ctx context.Context, id, status string) (model.Auction, error) {
	if status != model.AuctionStatusOpen && status != model.AuctionStatusClosed {
		return model.Auction{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	a, err := s.remote.UpdateAuction(ctx, id, api.AuctionUpdate{Status: &status})
	if err != nil {
		return model.Auction{}, err
	}
	s.cache.SetAuctionStatus(id, a.Status)
	return a, nil
}

// DeleteAuction deletes remotely, cascades the removal through the cache and
// then discards the photos of every item that belonged to the auction.
func (s *Service) DeleteAuction(ctx context.Context, id string) error {
	var images []model.ItemImage
	for _, it := range s.cache.ItemsForAuction(id) {
		images = append(images, s.cache.ImagesForItem(it.ID)...)
	}
	if err := s.remote.DeleteAuction(ctx, id); err != nil {
		return err
	}
	s.cache.DeleteAuction(id)
	for _, img := range images {
		s.discardObject(ctx, img.URL)
	}
	s.logger.Info("auction deleted", "auction_id", id, "photos", len(images))
	return nil
}

func (s *Service) UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (model.Item, error) {
	if patch.IsEmpty() {
		return model.Item{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	it, err := s.remote.UpdateItem(ctx, id, patch)
	if err != nil {
		return model.Item{}, err
	}
	s.cache.UpdateItem(id, model.PatchOf(it))
	return it, nil
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	images := s.cache.ImagesForItem(id)
	if err := s.remote.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.cache.DeleteItem(id)
	for _, img := range images {
		s.discardObject(ctx, img.URL)
	}
	return nil
}

// ReplaceItemImage uploads a new photo and points an existing image record at
// it. imageID 0 selects the item's primary image.
func (s *Service) ReplaceItemImage(ctx context.Context, itemID string, imageID int64, up Upload) (model.ItemImage, error) {
	if s.images == nil {
		return model.ItemImage{}, storage.ErrNotConfigured
	}
	target, ok := s.findImage(itemID, imageID)
	if !ok {
		return model.ItemImage{}, fmt.Errorf("find image for item %s: %w", itemID, ErrNotFound)
	}

	obj, err := s.images.Upload(ctx, itemID, up.Filename, up.ContentType, up.Reader(), int64(len(up.Data)))
	if err != nil {
		return model.ItemImage{}, err
	}
	if _, err := s.remote.UpdateItemImage(ctx, itemID, target.ID, obj.URL); err != nil {
		s.discardObject(ctx, obj.URL)
		return model.ItemImage{}, err
	}
	s.cache.SetImageURL(target.ID, obj.URL)
	s.discardObject(ctx, target.URL)

	target.URL = obj.URL
	return target, nil
}

func (s *Service) findImage(itemID string, imageID int64) (model.ItemImage, bool) {
	if imageID == 0 {
		return s.cache.PrimaryImage(itemID)
	}
	for _, img := range s.cache.ImagesForItem(itemID) {
		if img.ID == imageID {
			return img, true
		}
	}
	return model.ItemImage{}, false
}

// RemoveItemImage deletes one image record. If it was primary, the cache
// promotes the next image.
func (s *Service) RemoveItemImage(ctx context.Context, itemID string, imageID int64) error {
	img, ok := s.findImage(itemID, imageID)
	if !ok || imageID == 0 {
		return fmt.Errorf("find image %d: %w", imageID, ErrNotFound)
	}
	if err := s.remote.DeleteItemImage(ctx, itemID, imageID); err != nil {
		return err
	}
	s.cache.DeleteItemImage(imageID)
	s.discardObject(ctx, img.URL)
	return nil
}

// discardObject removes an uploaded photo that is no longer referenced. Failure
// only leaves an orphaned object behind.
func (s *Service) discardObject(ctx context.Context, url string) {
	if s.images == nil {
		return
	}
	key, ok := s.images.KeyFromURL(url)
	if !ok {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("delete image object", "key", key, "error", err)
	}
}
