// Package cache holds the client-side mirror of auctions, items, item images
// and comps. The remote API is authoritative: callers apply an action only
// after the matching remote call succeeded.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/auctiondesk/internal/model"
)

// loadConcurrency bounds the per-item comp fetches issued by Load.
const loadConcurrency = 4

// Source fetches the data Load needs from the remote API.
type Source interface {
	ListAuctions(ctx context.Context, profileID string) ([]model.Auction, error)
	ListItems(ctx context.Context, profileID string) ([]model.Item, error)
	SavedComps(ctx context.Context, itemID string) ([]model.Comp, error)
}

// Store is the single source of truth for every view. It is only mutated
// through its action methods.
type Store struct {
	mu      sync.RWMutex
	state   State
	localID int64

	src    Source
	logger *slog.Logger

	lmu       sync.RWMutex
	listeners []func(Change)
}

// New creates an empty store. src may be nil when Load is never called.
func New(src Source, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		state: State{
			Auctions: []model.Auction{},
			Items:    []model.Item{},
			Images:   []model.ItemImage{},
			Comps:    []model.Comp{},
		},
		src:    src,
		logger: logger,
	}
}

// Subscribe registers fn to be called after every applied action.
func (s *Store) Subscribe(fn func(Change)) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

func (s *Store) notify(c Change) {
	s.lmu.RLock()
	listeners := s.listeners
	s.lmu.RUnlock()
	for _, fn := range listeners {
		fn(c)
	}
}

func (s *Store) dispatch(c Change, fn func(State) State) {
	s.mu.Lock()
	s.state = fn(s.state)
	s.mu.Unlock()
	s.notify(c)
}

// Load fetches auctions, items (with nested images) and saved comps for
// profileID and replaces the whole cache. On failure the previous contents are
// kept and the error is recorded for the banner. A comp fetch failure for one
// item only drops that item's comps.
func (s *Store) Load(ctx context.Context, profileID string) error {
	if s.src == nil {
		return fmt.Errorf("load: no source configured")
	}
	s.dispatch(Change{Entity: EntityCache, Action: ActionUpdated}, func(st State) State {
		return setLoading(st, true)
	})

	snap, err := s.fetch(ctx, profileID)
	if err != nil {
		s.logger.Error("load cache", "profile_id", profileID, "error", err)
		s.SetError("Failed to load data. Please refresh the page.")
		return err
	}

	s.Replace(snap)
	s.logger.Info("cache loaded",
		"auctions", len(snap.Auctions),
		"items", len(snap.Items),
		"comps", len(snap.Comps),
	)
	return nil
}

func (s *Store) fetch(ctx context.Context, profileID string) (Snapshot, error) {
	auctions, err := s.src.ListAuctions(ctx, profileID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list auctions: %w", err)
	}
	items, err := s.src.ListItems(ctx, profileID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list items: %w", err)
	}

	perItem := make([][]model.Comp, len(items))
	var g errgroup.Group
	g.SetLimit(loadConcurrency)
	for i, it := range items {
		g.Go(func() error {
			comps, err := s.src.SavedComps(ctx, it.ID)
			if err != nil {
				s.logger.Warn("fetch saved comps", "item_id", it.ID, "error", err)
				return nil
			}
			for j := range comps {
				comps[j].ItemID = it.ID
			}
			perItem[i] = comps
			return nil
		})
	}
	g.Wait()

	var comps []model.Comp
	for _, c := range perItem {
		comps = append(comps, c...)
	}

	var images []model.ItemImage
	for _, it := range items {
		for _, img := range it.Images {
			img.ItemID = it.ID
			images = append(images, img)
		}
	}

	return Snapshot{
		Auctions: auctions,
		Items:    items,
		Images:   images,
		Comps:    comps,
	}, nil
}

// Replace swaps in snap wholesale and clears loading and error.
func (s *Store) Replace(snap Snapshot) {
	s.dispatch(Change{Entity: EntityCache, Action: ActionLoaded}, func(st State) State {
		return replaceState(st, snap)
	})
}

// SetError records a load failure without touching cached contents.
func (s *Store) SetError(msg string) {
	s.dispatch(Change{Entity: EntityCache, Action: ActionError}, func(st State) State {
		return setError(st, msg)
	})
}

// CreateAuction appends an auction the server has already created.
func (s *Store) CreateAuction(a model.Auction) {
	if a.Status == "" {
		a.Status = model.AuctionStatusOpen
	}
	s.dispatch(Change{Entity: EntityAuction, Action: ActionCreated, ID: a.ID}, func(st State) State {
		return createAuction(st, a)
	})
}

func (s *Store) RenameAuction(id, name string) {
	s.dispatch(Change{Entity: EntityAuction, Action: ActionUpdated, ID: id}, func(st State) State {
		return updateAuction(st, id, func(a model.Auction) model.Auction {
			a.Name = name
			return a
		})
	})
}

// SetAuctionStatus records a status the server reported for the auction.
func (s *Store) SetAuctionStatus(id, status string) {
	s.dispatch(Change{Entity: EntityAuction, Action: ActionUpdated, ID: id}, func(st State) State {
		return updateAuction(st, id, func(a model.Auction) model.Auction {
			a.Status = status
			return a
		})
	})
}

// DeleteAuction removes the auction together with its items and their images
// and comps.
func (s *Store) DeleteAuction(id string) {
	s.dispatch(Change{Entity: EntityAuction, Action: ActionDeleted, ID: id}, func(st State) State {
		return deleteAuction(st, id)
	})
}

// AddItem appends an item, deriving its title from brand, model and year when
// none was supplied. It returns the stored record.
func (s *Store) AddItem(it model.Item) model.Item {
	if it.Title == "" {
		it.Title = model.DisplayTitle(it.Brand, it.Model, it.Year)
	}
	it.Images = nil
	s.dispatch(Change{Entity: EntityItem, Action: ActionCreated, ID: it.ID}, func(st State) State {
		return addItem(st, it)
	})
	return it
}

// UpdateItem merges patch into the item. Unknown ids are ignored.
func (s *Store) UpdateItem(id string, patch model.ItemPatch) {
	s.dispatch(Change{Entity: EntityItem, Action: ActionUpdated, ID: id}, func(st State) State {
		return updateItem(st, id, patch)
	})
}

func (s *Store) DeleteItem(id string) {
	s.dispatch(Change{Entity: EntityItem, Action: ActionDeleted, ID: id}, func(st State) State {
		return deleteItem(st, id)
	})
}

// AddItemImage appends an image. Images without a server id get a local
// negative id. Marking the image primary demotes the item's other images.
func (s *Store) AddItemImage(img model.ItemImage) model.ItemImage {
	if img.ID == 0 {
		img.ID = s.nextLocalID()
	}
	s.dispatch(Change{Entity: EntityImage, Action: ActionCreated, ID: strconv.FormatInt(img.ID, 10)}, func(st State) State {
		return addItemImage(st, img)
	})
	return img
}

func (s *Store) SetImageURL(id int64, url string) {
	s.dispatch(Change{Entity: EntityImage, Action: ActionUpdated, ID: strconv.FormatInt(id, 10)}, func(st State) State {
		return setImageURL(st, id, url)
	})
}

// DeleteItemImage removes one image. If it was primary, the next image by
// position is promoted.
func (s *Store) DeleteItemImage(id int64) {
	s.dispatch(Change{Entity: EntityImage, Action: ActionDeleted, ID: strconv.FormatInt(id, 10)}, func(st State) State {
		return deleteItemImage(st, id)
	})
}

// AddComp appends a comp. Comps without a server id get a local negative id,
// which never collides with server-assigned ids.
func (s *Store) AddComp(c model.Comp) model.Comp {
	if c.ID == 0 {
		c.ID = s.nextLocalID()
	}
	s.dispatch(Change{Entity: EntityComp, Action: ActionCreated, ID: strconv.FormatInt(c.ID, 10)}, func(st State) State {
		return addComp(st, c)
	})
	return c
}

func (s *Store) nextLocalID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localID--
	return s.localID
}
