package cache

import (
	"slices"

	"github.com/dukerupert/auctiondesk/internal/model"
)

// The functions in this file are the reducer: each derives the next State from
// the previous one and a payload. None of them mutate their input slices or
// perform I/O.

func replaceState(s State, snap Snapshot) State {
	items := make([]model.Item, 0, len(snap.Items))
	images := slices.Clone(snap.Images)
	for _, it := range snap.Items {
		if len(snap.Images) == 0 {
			for _, img := range it.Images {
				if img.ItemID == "" {
					img.ItemID = it.ID
				}
				images = append(images, img)
			}
		}
		it.Images = nil
		items = append(items, it)
	}

	s.Auctions = nonNil(slices.Clone(snap.Auctions))
	s.Items = items
	s.Images = nonNil(normalizeAllPrimary(images))
	s.Comps = nonNil(slices.Clone(snap.Comps))
	s.Loading = false
	s.Error = ""
	return s
}

func setLoading(s State, loading bool) State {
	s.Loading = loading
	return s
}

func setError(s State, msg string) State {
	s.Error = msg
	s.Loading = false
	return s
}

func createAuction(s State, a model.Auction) State {
	s.Auctions = append(slices.Clip(s.Auctions), a)
	return s
}

func updateAuction(s State, id string, fn func(model.Auction) model.Auction) State {
	i := slices.IndexFunc(s.Auctions, func(a model.Auction) bool { return a.ID == id })
	if i < 0 {
		return s
	}
	auctions := slices.Clone(s.Auctions)
	auctions[i] = fn(auctions[i])
	s.Auctions = auctions
	return s
}

// deleteAuction removes the auction, its items, and everything owned by those
// items. The owned-item set is computed from the pre-mutation item list.
func deleteAuction(s State, id string) State {
	doomed := make(map[string]struct{})
	for _, it := range s.Items {
		if it.AuctionID == id {
			doomed[it.ID] = struct{}{}
		}
	}

	s.Auctions = slices.DeleteFunc(slices.Clone(s.Auctions), func(a model.Auction) bool { return a.ID == id })
	s.Items = slices.DeleteFunc(slices.Clone(s.Items), func(it model.Item) bool {
		_, ok := doomed[it.ID]
		return ok
	})
	s.Images = slices.DeleteFunc(slices.Clone(s.Images), func(img model.ItemImage) bool {
		_, ok := doomed[img.ItemID]
		return ok
	})
	s.Comps = slices.DeleteFunc(slices.Clone(s.Comps), func(c model.Comp) bool {
		_, ok := doomed[c.ItemID]
		return ok
	})
	return s
}

func addItem(s State, it model.Item) State {
	if it.Title == "" {
		it.Title = model.DisplayTitle(it.Brand, it.Model, it.Year)
	}
	it.Images = nil
	s.Items = append(slices.Clip(s.Items), it)
	return s
}

func updateItem(s State, id string, patch model.ItemPatch) State {
	i := slices.IndexFunc(s.Items, func(it model.Item) bool { return it.ID == id })
	if i < 0 {
		return s
	}
	items := slices.Clone(s.Items)
	items[i] = patch.Apply(items[i])
	s.Items = items
	return s
}

func deleteItem(s State, id string) State {
	s.Items = slices.DeleteFunc(slices.Clone(s.Items), func(it model.Item) bool { return it.ID == id })
	s.Images = slices.DeleteFunc(slices.Clone(s.Images), func(img model.ItemImage) bool { return img.ItemID == id })
	s.Comps = slices.DeleteFunc(slices.Clone(s.Comps), func(c model.Comp) bool { return c.ItemID == id })
	return s
}

func addItemImage(s State, img model.ItemImage) State {
	images := slices.Clone(s.Images)
	if img.IsPrimary {
		for i := range images {
			if images[i].ItemID == img.ItemID {
				images[i].IsPrimary = false
			}
		}
	}
	images = append(images, img)
	s.Images = ensurePrimary(images, img.ItemID)
	return s
}

func setImageURL(s State, id int64, url string) State {
	i := slices.IndexFunc(s.Images, func(img model.ItemImage) bool { return img.ID == id })
	if i < 0 {
		return s
	}
	images := slices.Clone(s.Images)
	images[i].URL = url
	s.Images = images
	return s
}

func deleteItemImage(s State, id int64) State {
	i := slices.IndexFunc(s.Images, func(img model.ItemImage) bool { return img.ID == id })
	if i < 0 {
		return s
	}
	itemID := s.Images[i].ItemID
	images := slices.Delete(slices.Clone(s.Images), i, i+1)
	s.Images = ensurePrimary(images, itemID)
	return s
}

func addComp(s State, c model.Comp) State {
	s.Comps = append(slices.Clip(s.Comps), c)
	return s
}

// ensurePrimary leaves exactly one primary image for itemID. An existing primary
// wins (lowest position if several); otherwise the lowest position is promoted.
// images must already be owned by the caller.
func ensurePrimary(images []model.ItemImage, itemID string) []model.ItemImage {
	winner := -1
	winnerPrimary := false
	for i, img := range images {
		if img.ItemID != itemID {
			continue
		}
		switch {
		case winner < 0:
			winner, winnerPrimary = i, img.IsPrimary
		case img.IsPrimary && !winnerPrimary:
			winner, winnerPrimary = i, true
		case img.IsPrimary == winnerPrimary && img.Position < images[winner].Position:
			winner = i
		}
	}
	if winner < 0 {
		return images
	}
	for i := range images {
		if images[i].ItemID == itemID {
			images[i].IsPrimary = i == winner
		}
	}
	return images
}

func normalizeAllPrimary(images []model.ItemImage) []model.ItemImage {
	seen := make(map[string]struct{})
	for _, img := range images {
		if _, ok := seen[img.ItemID]; ok {
			continue
		}
		seen[img.ItemID] = struct{}{}
		images = ensurePrimary(images, img.ItemID)
	}
	return images
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
