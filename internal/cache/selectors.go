package cache

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/auctiondesk/internal/model"
)

// Selectors recompute on every call and return copies; the cache holds tens to
// low hundreds of records.

// State returns a copy of the full cache state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Auctions = slices.Clone(st.Auctions)
	st.Items = slices.Clone(st.Items)
	st.Images = slices.Clone(st.Images)
	st.Comps = slices.Clone(st.Comps)
	return st
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{Loading: s.state.Loading, Error: s.state.Error}
}

func (s *Store) Auctions() []model.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Auctions)
}

func (s *Store) Auction(id string) (model.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.state.Auctions {
		if a.ID == id {
			return a, true
		}
	}
	return model.Auction{}, false
}

// RecentAuctions returns up to n auctions, most recently added first.
func (s *Store) RecentAuctions(n int) []model.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Auction, 0, n)
	for i := len(s.state.Auctions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.state.Auctions[i])
	}
	return out
}

func (s *Store) Items() []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Items)
}

func (s *Store) Item(id string) (model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.state.Items {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}

func (s *Store) ItemsForAuction(auctionID string) []model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Item{}
	for _, it := range s.state.Items {
		if it.AuctionID == auctionID {
			out = append(out, it)
		}
	}
	return out
}

// ImagesForItem returns the item's images ordered by position.
func (s *Store) ImagesForItem(itemID string) []model.ItemImage {
	s.mu.RLock()
	out := []model.ItemImage{}
	for _, img := range s.state.Images {
		if img.ItemID == itemID {
			out = append(out, img)
		}
	}
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b model.ItemImage) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return out
}

// PrimaryImage returns the item's primary image, falling back to the first by
// position.
func (s *Store) PrimaryImage(itemID string) (model.ItemImage, bool) {
	images := s.ImagesForItem(itemID)
	if len(images) == 0 {
		return model.ItemImage{}, false
	}
	for _, img := range images {
		if img.IsPrimary {
			return img, true
		}
	}
	return images[0], true
}

// Image looks up one image by id.
func (s *Store) Image(id int64) (model.ItemImage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, img := range s.state.Images {
		if img.ID == id {
			return img, true
		}
	}
	return model.ItemImage{}, false
}

// CompsForItem returns the item's comps in cache order.
func (s *Store) CompsForItem(itemID string) []model.Comp {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Comp{}
	for _, c := range s.state.Comps {
		if c.ItemID == itemID {
			out = append(out, c)
		}
	}
	return out
}

// TopComps returns the first n comps for the item by array order.
func (s *Store) TopComps(itemID string, n int) []model.Comp {
	comps := s.CompsForItem(itemID)
	if n >= 0 && len(comps) > n {
		comps = comps[:n]
	}
	return comps
}

func (s *Store) StatsSummary() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalAuctions: len(s.state.Auctions),
		TotalItems:    len(s.state.Items),
		TotalImages:   len(s.state.Images),
		TotalComps:    len(s.state.Comps),
	}
}

// AuctionItemCount is one bar of the items-per-auction chart.
type AuctionItemCount struct {
	AuctionID string `json:"auction_id"`
	Name      string `json:"name"`
	Items     int    `json:"items"`
}

func (s *Store) ItemsPerAuction() []AuctionItemCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.state.Auctions))
	for _, it := range s.state.Items {
		counts[it.AuctionID]++
	}
	out := make([]AuctionItemCount, 0, len(s.state.Auctions))
	for _, a := range s.state.Auctions {
		out = append(out, AuctionItemCount{AuctionID: a.ID, Name: a.Name, Items: counts[a.ID]})
	}
	return out
}

// SourceCount is one slice of the comps-by-source chart.
type SourceCount struct {
	Source string `json:"name"`
	Count  int    `json:"value"`
}

// CompsBySource counts comps per source in first-seen order.
func (s *Store) CompsBySource() []SourceCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SourceCount
	index := make(map[string]int)
	for _, c := range s.state.Comps {
		i, ok := index[c.Source]
		if !ok {
			i = len(out)
			index[c.Source] = i
			out = append(out, SourceCount{Source: c.Source})
		}
		out[i].Count++
	}
	return out
}

// DayCount is one point of the items-created-over-time series.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ItemsCreatedByDay groups items by UTC creation date, oldest first.
func (s *Store) ItemsCreatedByDay() []DayCount {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, it := range s.state.Items {
		counts[it.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	s.mu.RUnlock()

	out := make([]DayCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DayCount{Date: d, Count: n})
	}
	slices.SortFunc(out, func(a, b DayCount) int { return strings.Compare(a.Date, b.Date) })
	return out
}

// SearchItems matches query case-insensitively against item title and brand.
// An empty query returns every item.
func (s *Store) SearchItems(query string) []model.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.Items()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Item{}
	for _, it := range s.state.Items {
		if strings.Contains(strings.ToLower(it.Title), q) || strings.Contains(strings.ToLower(it.Brand), q) {
			out = append(out, it)
		}
	}
	return out
}
