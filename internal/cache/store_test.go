package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/auctiondesk/internal/model"
)

type fakeSource struct {
	mu        sync.Mutex
	auctions  []model.Auction
	items     []model.Item
	comps     map[string][]model.Comp
	failComps map[string]bool
	failList  error
	compCalls int
}

func (f *fakeSource) ListAuctions(ctx context.Context, profileID string) ([]model.Auction, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	return f.auctions, nil
}

func (f *fakeSource) ListItems(ctx context.Context, profileID string) ([]model.Item, error) {
	return f.items, nil
}

func (f *fakeSource) SavedComps(ctx context.Context, itemID string) ([]model.Comp, error) {
	f.mu.Lock()
	f.compCalls++
	f.mu.Unlock()
	if f.failComps[itemID] {
		return nil, fmt.Errorf("comps for %s: boom", itemID)
	}
	out := make([]model.Comp, len(f.comps[itemID]))
	copy(out, f.comps[itemID])
	return out, nil
}

// seedStore builds two auctions with two items each; every item has two images
// and one comp.
func seedStore(t *testing.T) *Store {
	t.Helper()
	s := New(nil, nil)
	var snap Snapshot
	var imgID, compID int64
	for a := 1; a <= 2; a++ {
		aid := fmt.Sprintf("a%d", a)
		snap.Auctions = append(snap.Auctions, model.Auction{ID: aid, Name: "Auction " + aid, Status: model.AuctionStatusOpen})
		for i := 1; i <= 2; i++ {
			iid := fmt.Sprintf("%s-i%d", aid, i)
			snap.Items = append(snap.Items, model.Item{ID: iid, AuctionID: aid, Title: "Item " + iid})
			for p := 1; p <= 2; p++ {
				imgID++
				snap.Images = append(snap.Images, model.ItemImage{ID: imgID, ItemID: iid, URL: fmt.Sprintf("https://img/%d", imgID), Position: p})
			}
			compID++
			snap.Comps = append(snap.Comps, model.Comp{ID: compID, ItemID: iid, Source: "eBay", SoldPrice: float64(compID * 100)})
		}
	}
	s.Replace(snap)
	return s
}

func TestDeleteAuctionCascade(t *testing.T) {
	s := seedStore(t)
	before := s.State()

	s.DeleteAuction("a1")
	after := s.State()

	for _, a := range after.Auctions {
		if a.ID == "a1" {
			t.Fatal("auction a1 still cached")
		}
	}
	for _, it := range after.Items {
		if it.AuctionID == "a1" {
			t.Errorf("item %s of deleted auction still cached", it.ID)
		}
	}
	for _, img := range after.Images {
		if img.ItemID == "a1-i1" || img.ItemID == "a1-i2" {
			t.Errorf("image %d of deleted item still cached", img.ID)
		}
	}
	for _, c := range after.Comps {
		if c.ItemID == "a1-i1" || c.ItemID == "a1-i2" {
			t.Errorf("comp %d of deleted item still cached", c.ID)
		}
	}

	// Everything belonging to a2 must be untouched.
	var wantImages []model.ItemImage
	for _, img := range before.Images {
		if img.ItemID == "a2-i1" || img.ItemID == "a2-i2" {
			wantImages = append(wantImages, img)
		}
	}
	if !reflect.DeepEqual(after.Images, wantImages) {
		t.Errorf("images = %+v, want %+v", after.Images, wantImages)
	}
	if !reflect.DeepEqual(after.Auctions, before.Auctions[1:]) {
		t.Errorf("auctions = %+v, want %+v", after.Auctions, before.Auctions[1:])
	}
	if !reflect.DeepEqual(after.Items, before.Items[2:]) {
		t.Errorf("items = %+v, want %+v", after.Items, before.Items[2:])
	}
	if !reflect.DeepEqual(after.Comps, before.Comps[2:]) {
		t.Errorf("comps = %+v, want %+v", after.Comps, before.Comps[2:])
	}
}

func TestDeleteAuctionDoesNotMutatePreviousState(t *testing.T) {
	s := seedStore(t)
	s.mu.RLock()
	prevItems := s.state.Items
	prevCopy := append([]model.Item(nil), prevItems...)
	s.mu.RUnlock()

	s.DeleteAuction("a1")

	if !reflect.DeepEqual(prevItems, prevCopy) {
		t.Error("delete mutated the previous item slice in place")
	}
}

func TestReplaceIsIdempotent(t *testing.T) {
	snap := Snapshot{
		Auctions: []model.Auction{{ID: "a1", Name: "Spring"}},
		Items:    []model.Item{{ID: "i1", AuctionID: "a1", Title: "Lamp"}},
		Images:   []model.ItemImage{{ID: 1, ItemID: "i1", URL: "u", Position: 1}},
		Comps:    []model.Comp{{ID: 1, ItemID: "i1", SoldPrice: 10}},
	}
	s := New(nil, nil)
	s.Replace(snap)
	first := s.State()
	s.Replace(snap)
	second := s.State()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("second replace changed state:\nfirst  %+v\nsecond %+v", first, second)
	}
	if len(second.Items) != 1 || len(second.Images) != 1 || len(second.Comps) != 1 {
		t.Errorf("state accumulated: %d items, %d images, %d comps", len(second.Items), len(second.Images), len(second.Comps))
	}
}

func TestDeleteItemCascade(t *testing.T) {
	s := seedStore(t)
	before := s.State()

	s.DeleteItem("a1-i2")
	s.DeleteItem("a2-i1")
	after := s.State()

	for _, img := range after.Images {
		if img.ItemID == "a1-i2" || img.ItemID == "a2-i1" {
			t.Errorf("image %d of deleted item remains", img.ID)
		}
	}
	var wantComps []model.Comp
	for _, c := range before.Comps {
		if c.ItemID != "a1-i2" && c.ItemID != "a2-i1" {
			wantComps = append(wantComps, c)
		}
	}
	if !reflect.DeepEqual(after.Comps, wantComps) {
		t.Errorf("comps = %+v, want %+v", after.Comps, wantComps)
	}
	if len(after.Images) != 4 {
		t.Errorf("images = %d, want 4", len(after.Images))
	}

	// Reversed order yields the same result.
	s2 := seedStore(t)
	s2.DeleteItem("a2-i1")
	s2.DeleteItem("a1-i2")
	if !reflect.DeepEqual(s2.State(), after) {
		t.Error("delete order changed the result")
	}
}

func TestEndToEndScenario(t *testing.T) {
	s := New(nil, nil)

	s.CreateAuction(model.Auction{ID: "srv-1", Name: "Spring Sale", CreatedAt: time.Now()})
	item := s.AddItem(model.Item{ID: "srv-item-1", AuctionID: "srv-1", Brand: "Rolex", Model: "Submariner", Year: 2020})

	stats := s.StatsSummary()
	if stats.TotalAuctions != 1 || stats.TotalItems != 1 {
		t.Fatalf("stats = %+v, want 1 auction and 1 item", stats)
	}
	if item.Title != "Rolex Submariner 2020" {
		t.Errorf("title = %q, want %q", item.Title, "Rolex Submariner 2020")
	}
	got, ok := s.Item("srv-item-1")
	if !ok || got.Title != "Rolex Submariner 2020" {
		t.Errorf("cached title = %q, want %q", got.Title, "Rolex Submariner 2020")
	}
	a, _ := s.Auction("srv-1")
	if a.Status != model.AuctionStatusOpen {
		t.Errorf("status = %q, want %q", a.Status, model.AuctionStatusOpen)
	}

	s.DeleteAuction("srv-1")
	stats = s.StatsSummary()
	if stats.TotalAuctions != 0 || stats.TotalItems != 0 {
		t.Errorf("stats after delete = %+v, want empty", stats)
	}
}

func TestAddItemKeepsSuppliedTitle(t *testing.T) {
	s := New(nil, nil)
	it := s.AddItem(model.Item{ID: "i1", Title: "Custom", Brand: "Omega", Model: "Speedmaster"})
	if it.Title != "Custom" {
		t.Errorf("title = %q, want %q", it.Title, "Custom")
	}
}

func TestUpdateItem(t *testing.T) {
	s := seedStore(t)
	title := "Renamed"
	year := 1999
	s.UpdateItem("a1-i1", model.ItemPatch{Title: &title, Year: &year})

	it, _ := s.Item("a1-i1")
	if it.Title != "Renamed" || it.Year != 1999 {
		t.Errorf("item = %+v, want title Renamed year 1999", it)
	}
	if it.AuctionID != "a1" {
		t.Errorf("auction_id = %q, want a1 (unpatched fields kept)", it.AuctionID)
	}

	before := s.State()
	s.UpdateItem("missing", model.ItemPatch{Title: &title})
	if !reflect.DeepEqual(before, s.State()) {
		t.Error("update of unknown id changed state")
	}
}

func TestSinglePrimaryImage(t *testing.T) {
	s := New(nil, nil)
	s.AddItem(model.Item{ID: "i1"})

	first := s.AddItemImage(model.ItemImage{ItemID: "i1", URL: "a", Position: 2})
	if first.ID >= 0 {
		t.Errorf("local image id = %d, want negative", first.ID)
	}
	s.AddItemImage(model.ItemImage{ItemID: "i1", URL: "b", Position: 1})

	primary, ok := s.PrimaryImage("i1")
	if !ok || primary.URL != "a" {
		t.Errorf("primary = %+v, want existing primary kept", primary)
	}
	assertOnePrimary(t, s, "i1")

	third := s.AddItemImage(model.ItemImage{ItemID: "i1", URL: "c", Position: 3, IsPrimary: true})
	primary, _ = s.PrimaryImage("i1")
	if primary.ID != third.ID {
		t.Errorf("primary = %+v, want newly added primary", primary)
	}
	assertOnePrimary(t, s, "i1")

	s.DeleteItemImage(third.ID)
	primary, _ = s.PrimaryImage("i1")
	if primary.URL != "b" {
		t.Errorf("primary after delete = %q, want lowest position %q", primary.URL, "b")
	}
	assertOnePrimary(t, s, "i1")

	images := s.ImagesForItem("i1")
	if len(images) != 2 || images[0].Position != 1 || images[1].Position != 2 {
		t.Errorf("images not ordered by position: %+v", images)
	}
}

func TestReplaceNormalizesPrimary(t *testing.T) {
	s := New(nil, nil)
	s.Replace(Snapshot{
		Items: []model.Item{{ID: "i1", Images: []model.ItemImage{
			{ID: 10, URL: "x", Position: 3},
			{ID: 11, URL: "y", Position: 1},
		}}},
	})
	primary, ok := s.PrimaryImage("i1")
	if !ok || primary.ID != 11 {
		t.Errorf("primary = %+v, want image 11", primary)
	}
	assertOnePrimary(t, s, "i1")
	if it, _ := s.Item("i1"); it.Images != nil {
		t.Error("item kept nested images")
	}
}

func assertOnePrimary(t *testing.T, s *Store, itemID string) {
	t.Helper()
	n := 0
	for _, img := range s.ImagesForItem(itemID) {
		if img.IsPrimary {
			n++
		}
	}
	if n != 1 {
		t.Errorf("item %s has %d primary images, want 1", itemID, n)
	}
}

func TestAddCompLocalIDs(t *testing.T) {
	s := New(nil, nil)
	c1 := s.AddComp(model.Comp{ItemID: "i1", Source: "eBay"})
	c2 := s.AddComp(model.Comp{ItemID: "i1", Source: "eBay"})
	c3 := s.AddComp(model.Comp{ID: 42, ItemID: "i1"})

	if c1.ID >= 0 || c2.ID >= 0 {
		t.Errorf("local ids = %d, %d, want negative", c1.ID, c2.ID)
	}
	if c1.ID == c2.ID {
		t.Error("local ids collide")
	}
	if c3.ID != 42 {
		t.Errorf("server id = %d, want 42", c3.ID)
	}
	if got := s.TopComps("i1", 2); len(got) != 2 || got[0].ID != c1.ID {
		t.Errorf("top comps = %+v, want first two in insertion order", got)
	}
}

func TestLoadToleratesPartialCompFailure(t *testing.T) {
	src := &fakeSource{
		auctions:  []model.Auction{{ID: "a1"}},
		comps:     map[string][]model.Comp{},
		failComps: map[string]bool{"i3": true},
	}
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("i%d", i)
		src.items = append(src.items, model.Item{ID: id, AuctionID: "a1"})
		src.comps[id] = []model.Comp{{ID: int64(i), Source: "eBay", SoldPrice: float64(i)}}
	}

	s := New(src, nil)
	if err := s.Load(context.Background(), "p1"); err != nil {
		t.Fatalf("load: %v", err)
	}

	st := s.State()
	if st.Error != "" || st.Loading {
		t.Errorf("status = loading %v error %q, want clean", st.Loading, st.Error)
	}
	have := map[string]bool{}
	for _, c := range st.Comps {
		have[c.ItemID] = true
	}
	for _, id := range []string{"i1", "i2", "i4", "i5"} {
		if !have[id] {
			t.Errorf("missing comps for %s", id)
		}
	}
	if have["i3"] {
		t.Error("comps for failed item i3 present")
	}
	if src.compCalls != 5 {
		t.Errorf("comp fetches = %d, want 5", src.compCalls)
	}
	// Comps keep item order regardless of fetch completion order.
	if st.Comps[0].ItemID != "i1" || st.Comps[3].ItemID != "i5" {
		t.Errorf("comps out of item order: %+v", st.Comps)
	}
}

func TestLoadFailureKeepsPreviousContents(t *testing.T) {
	src := &fakeSource{
		auctions: []model.Auction{{ID: "a1"}},
		items:    []model.Item{{ID: "i1", AuctionID: "a1"}},
	}
	s := New(src, nil)
	if err := s.Load(context.Background(), "p1"); err != nil {
		t.Fatalf("first load: %v", err)
	}

	src.failList = errors.New("network down")
	err := s.Load(context.Background(), "p1")
	if err == nil {
		t.Fatal("expected load error")
	}

	status := s.Status()
	if status.Error == "" {
		t.Error("expected error to be recorded")
	}
	if status.Loading {
		t.Error("expected loading=false after failure")
	}
	if got := s.StatsSummary(); got.TotalAuctions != 1 || got.TotalItems != 1 {
		t.Errorf("stats = %+v, want previous contents kept", got)
	}

	src.failList = nil
	if err := s.Load(context.Background(), "p1"); err != nil {
		t.Fatalf("retry load: %v", err)
	}
	if s.Status().Error != "" {
		t.Error("expected error cleared after successful reload")
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	s := New(nil, nil)
	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })

	s.CreateAuction(model.Auction{ID: "a1"})
	s.DeleteAuction("a1")

	want := []Change{
		{Entity: EntityAuction, Action: ActionCreated, ID: "a1"},
		{Entity: EntityAuction, Action: ActionDeleted, ID: "a1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("changes = %+v, want %+v", got, want)
	}
}

func TestSelectors(t *testing.T) {
	s := seedStore(t)
	s.AddItem(model.Item{ID: "x", AuctionID: "a2", Brand: "Rolex", Model: "Datejust"})

	if got := s.ItemsForAuction("a2"); len(got) != 3 {
		t.Errorf("items for a2 = %d, want 3", len(got))
	}
	if got := s.SearchItems("rolex"); len(got) != 1 || got[0].ID != "x" {
		t.Errorf("search = %+v, want item x", got)
	}
	if got := s.SearchItems("  "); len(got) != 5 {
		t.Errorf("empty search = %d items, want 5", len(got))
	}
	per := s.ItemsPerAuction()
	if len(per) != 2 || per[0].Items != 2 || per[1].Items != 3 {
		t.Errorf("items per auction = %+v", per)
	}
	if got := s.CompsBySource(); len(got) != 1 || got[0].Count != 4 {
		t.Errorf("comps by source = %+v, want eBay=4", got)
	}
	recent := s.RecentAuctions(1)
	if len(recent) != 1 || recent[0].ID != "a2" {
		t.Errorf("recent = %+v, want a2", recent)
	}
}
