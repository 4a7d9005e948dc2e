package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/auctiondesk/internal/database"
	"github.com/dukerupert/auctiondesk/internal/model"
)

type testStores struct {
	users    *UserStore
	sessions *SessionStore
	auctions *AuctionStore
	items    *ItemStore
	comps    *CompStore
	bids     *BidStore
}

func setupTestDB(t *testing.T) (*sql.DB, testStores) {
	t.Helper()
	return openTestDB(t, ":memory:")
}

func openTestDB(t *testing.T, path string) (*sql.DB, testStores) {
	t.Helper()
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, testStores{
		users:    NewUserStore(db),
		sessions: NewSessionStore(db),
		auctions: NewAuctionStore(db),
		items:    NewItemStore(db),
		comps:    NewCompStore(db),
		bids:     NewBidStore(db),
	}
}

func seedAuction(t *testing.T, s testStores) (*model.User, *model.Auction) {
	t.Helper()
	u, err := s.users.Create("Staff@Example.com", "hash", "staff")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	a, err := s.auctions.Create(u.ID, "Spring Sale")
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return u, a
}

func TestUserStore(t *testing.T) {
	_, s := setupTestDB(t)

	u, err := s.users.Create("  Staff@Example.com ", "hash", "staff")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "staff@example.com" {
		t.Errorf("email = %q, want lower-cased", u.Email)
	}

	got, err := s.users.GetByEmail("STAFF@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("get by email = %+v", got)
	}

	missing, err := s.users.GetByID("nope")
	if err != nil || missing != nil {
		t.Errorf("missing = %+v, %v", missing, err)
	}

	n, _ := s.users.Count()
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestSessionStore(t *testing.T) {
	_, s := setupTestDB(t)
	u, _ := s.users.Create("a@b.c", "hash", "staff")

	sess, err := s.sessions.Create(u.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	got, err := s.sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.UserID != u.ID {
		t.Fatalf("session = %+v", got)
	}

	expired, _ := s.sessions.Create(u.ID, -time.Minute)
	got, err = s.sessions.GetByToken(expired.Token)
	if err != nil || got != nil {
		t.Errorf("expired session = %+v, %v; want nil", got, err)
	}

	if err := s.sessions.Delete(sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.sessions.GetByToken(sess.Token)
	if got != nil {
		t.Error("expected session gone after delete")
	}
}

func TestAuctionCRUD(t *testing.T) {
	_, s := setupTestDB(t)
	u, a := seedAuction(t, s)

	if a.Status != model.AuctionStatusOpen || a.OwnerID != u.ID {
		t.Errorf("created = %+v", a)
	}

	second, _ := s.auctions.Create(u.ID, "Fall Sale")
	list, err := s.auctions.ListByProfile(u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != second.ID {
		t.Errorf("list = %+v", list)
	}

	closed := model.AuctionStatusClosed
	updated, err := s.auctions.Update(a.ID, nil, &closed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Spring Sale" || updated.Status != closed {
		t.Errorf("updated = %+v", updated)
	}

	bad := "pending"
	if _, err := s.auctions.Update(a.ID, nil, &bad); err == nil {
		t.Error("expected check constraint error for unknown status")
	}

	name := "x"
	if _, err := s.auctions.Update("nope", &name, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}

	if err := s.auctions.Delete(a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.auctions.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	empty, _ := s.auctions.ListByProfile("someone-else")
	if empty == nil || len(empty) != 0 {
		t.Errorf("other profile = %#v, want empty slice", empty)
	}
}

func TestItemCreateWithImages(t *testing.T) {
	_, s := setupTestDB(t)
	u, a := seedAuction(t, s)

	it, images, err := s.items.Create(NewItem{
		AuctionID:   a.ID,
		Title:       "Omega Seamaster 1968",
		Brand:       "Omega",
		Model:       "Seamaster",
		Year:        1968,
		StartingBid: 100,
		Images: []NewImage{
			{URL: "https://img/1", Position: 1},
			{URL: "https://img/2", Position: 2},
		},
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if it.Year != 1968 || it.Status != "active" {
		t.Errorf("item = %+v", it)
	}
	if len(images) != 2 {
		t.Fatalf("images = %d, want 2", len(images))
	}
	if !images[0].IsPrimary || images[1].IsPrimary {
		t.Errorf("first image should default to primary: %+v", images)
	}

	noYear, _, err := s.items.Create(NewItem{AuctionID: a.ID, Title: "Mystery"})
	if err != nil {
		t.Fatalf("create item without year: %v", err)
	}
	if noYear.Year != 0 {
		t.Errorf("year = %d, want 0", noYear.Year)
	}

	list, err := s.items.List(u.ID, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != it.ID || len(list[0].Images) != 2 || len(list[1].Images) != 0 {
		t.Errorf("list = %+v", list)
	}

	owner, _ := s.items.OwnerID(it.ID)
	if owner != u.ID {
		t.Errorf("owner = %q, want %q", owner, u.ID)
	}

	other, _ := s.auctions.Create(u.ID, "Other")
	scoped, _ := s.items.List(u.ID, other.ID)
	if len(scoped) != 0 {
		t.Errorf("scoped list = %+v, want empty", scoped)
	}
}

func TestItemUpdateAndDelete(t *testing.T) {
	_, s := setupTestDB(t)
	_, a := seedAuction(t, s)
	it, _, _ := s.items.Create(NewItem{AuctionID: a.ID, Title: "Old", Brand: "Rolex"})

	title := "New"
	bid := 250.0
	updated, err := s.items.Update(it.ID, model.ItemPatch{Title: &title, StartingBid: &bid})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "New" || updated.StartingBid != 250 || updated.Brand != "Rolex" {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := s.items.Update("nope", model.ItemPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}
	if _, err := s.items.Update("nope", model.ItemPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty patch on missing err = %v", err)
	}

	if err := s.items.Delete(it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.items.GetByID(it.ID); got != nil {
		t.Error("expected item gone")
	}
}

func TestItemImages(t *testing.T) {
	_, s := setupTestDB(t)
	_, a := seedAuction(t, s)
	it, images, _ := s.items.Create(NewItem{
		AuctionID: a.ID,
		Title:     "Watch",
		Images: []NewImage{
			{URL: "placeholder-1", Position: 1, IsPrimary: true},
			{URL: "placeholder-2", Position: 2},
		},
	})

	img, err := s.items.UpdateImageURL(it.ID, images[0].ID, "https://cdn/real.jpg")
	if err != nil {
		t.Fatalf("update url: %v", err)
	}
	if img.URL != "https://cdn/real.jpg" || !img.IsPrimary {
		t.Errorf("image = %+v", img)
	}
	if _, err := s.items.UpdateImageURL("other-item", images[0].ID, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update on wrong item err = %v", err)
	}

	if err := s.items.DeleteImage(it.ID, images[0].ID); err != nil {
		t.Fatalf("delete image: %v", err)
	}
	remaining, _ := s.items.Images(it.ID)
	if len(remaining) != 1 || !remaining[0].IsPrimary {
		t.Errorf("remaining = %+v, want promoted primary", remaining)
	}
	if err := s.items.DeleteImage(it.ID, images[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestCompStore(t *testing.T) {
	_, s := setupTestDB(t)
	_, a := seedAuction(t, s)
	it, _, _ := s.items.Create(NewItem{AuctionID: a.ID, Title: "Watch"})

	saved, err := s.comps.SaveListings(it.ID, []model.CompListing{
		{Title: "first", Link: "https://ebay/1", SalePrice: 100, Currency: "USD", Source: "eBay"},
		{Title: "second", BestOfferPrice: 90},
		{Title: "third", CurrentPrice: 80},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved) != 3 || saved[0].ID == 0 || saved[0].ItemID != it.ID {
		t.Errorf("saved = %+v", saved)
	}

	comps, err := s.comps.ListByItem(it.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(comps) != 3 {
		t.Fatalf("comps = %d, want 3", len(comps))
	}
	prices := []float64{comps[0].SoldPrice, comps[1].SoldPrice, comps[2].SoldPrice}
	if prices[0] != 100 || prices[1] != 90 || prices[2] != 80 {
		t.Errorf("prices = %v, want save order with fallback", prices)
	}
	if comps[0].SourceURL != "https://ebay/1" || comps[0].Notes != "first" {
		t.Errorf("comp = %+v", comps[0])
	}
}

func TestBidFeed(t *testing.T) {
	_, s := setupTestDB(t)
	_, a := seedAuction(t, s)
	first, _, _ := s.items.Create(NewItem{AuctionID: a.ID, Title: "Watch", StartingBid: 100})
	second, _, _ := s.items.Create(NewItem{AuctionID: a.ID, Title: "Clock"})

	for _, amount := range []float64{150, 300, 200} {
		if _, err := s.bids.Create(first.ID, "Ann", "ann@example.com", amount); err != nil {
			t.Fatalf("create bid: %v", err)
		}
	}
	if err := s.items.MarkSold(second.ID); err != nil {
		t.Fatalf("mark sold: %v", err)
	}

	highest, _ := s.bids.Highest(first.ID)
	if highest != 300 {
		t.Errorf("highest = %v, want 300", highest)
	}
	none, _ := s.bids.Highest(second.ID)
	if none != 0 {
		t.Errorf("highest without bids = %v", none)
	}

	feed, err := s.bids.AuctionFeed(a.ID)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if feed.Auction.ID != a.ID || len(feed.ItemsWithBids) != 2 {
		t.Fatalf("feed = %+v", feed)
	}
	w := feed.ItemsWithBids[0]
	if w.ItemID != first.ID || w.BidCount != 3 || w.HighestBid != 300 || w.StartingBid != 100 {
		t.Errorf("first entry = %+v", w)
	}
	if w.Bids[0].Amount != 300 || w.Bids[1].Amount != 200 || w.Bids[2].Amount != 150 {
		t.Errorf("bids not ranked highest first: %+v", w.Bids)
	}
	c := feed.ItemsWithBids[1]
	if !c.IsSold || !c.Listed() || len(c.Bids) != 0 || c.Bids == nil {
		t.Errorf("second entry = %+v", c)
	}

	missing, err := s.bids.AuctionFeed("nope")
	if err != nil || missing != nil {
		t.Errorf("missing feed = %+v, %v", missing, err)
	}
}

func TestPlaceBid(t *testing.T) {
	_, s := setupTestDB(t)
	_, a := seedAuction(t, s)
	ctx := context.Background()
	it, _, err := s.items.Create(NewItem{AuctionID: a.ID, Title: "Watch", StartingBid: 100, MinIncrement: 10, BuyNowPrice: 500})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	var tooLow *BidTooLowError
	if _, _, err := s.bids.Place(ctx, it.ID, "Ann", "ann@example.com", 90); !errors.As(err, &tooLow) || tooLow.Minimum != 100 {
		t.Errorf("under starting bid err = %v, want minimum 100", err)
	}
	if _, sold, err := s.bids.Place(ctx, it.ID, "Ann", "ann@example.com", 100); err != nil || sold {
		t.Fatalf("first bid = sold %v, err %v", sold, err)
	}
	if _, _, err := s.bids.Place(ctx, it.ID, "Bob", "bob@example.com", 105); !errors.As(err, &tooLow) || tooLow.Minimum != 110 {
		t.Errorf("under increment err = %v, want minimum 110", err)
	}
	b, sold, err := s.bids.Place(ctx, it.ID, "Bob", "bob@example.com", 500)
	if err != nil || !sold {
		t.Fatalf("buy now bid = sold %v, err %v", sold, err)
	}
	if b.Amount != 500 || b.BidderName != "Bob" {
		t.Errorf("bid = %+v", b)
	}
	if _, _, err := s.bids.Place(ctx, it.ID, "Cy", "cy@example.com", 600); !errors.Is(err, ErrItemSold) {
		t.Errorf("bid on sold item err = %v, want ErrItemSold", err)
	}
	if _, _, err := s.bids.Place(ctx, "missing", "Cy", "cy@example.com", 600); !errors.Is(err, ErrNotFound) {
		t.Errorf("bid on missing item err = %v, want ErrNotFound", err)
	}

	other, _, _ := s.items.Create(NewItem{AuctionID: a.ID, Title: "Clock"})
	closed := model.AuctionStatusClosed
	if _, err := s.auctions.Update(a.ID, nil, &closed); err != nil {
		t.Fatalf("close auction: %v", err)
	}
	if _, _, err := s.bids.Place(ctx, other.ID, "Cy", "cy@example.com", 10); !errors.Is(err, ErrAuctionClosed) {
		t.Errorf("bid on closed auction err = %v, want ErrAuctionClosed", err)
	}
}

func TestPlaceBidConcurrent(t *testing.T) {
	_, s := openTestDB(t, filepath.Join(t.TempDir(), "bids.db"))
	_, a := seedAuction(t, s)
	it, _, err := s.items.Create(NewItem{AuctionID: a.ID, Title: "Watch", StartingBid: 100, MinIncrement: 10})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	const bidders = 8
	var wg sync.WaitGroup
	errs := make(chan error, bidders)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.bids.Place(context.Background(), it.ID, "Ann", "ann@example.com", 100)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted, rejected := 0, 0
	for err := range errs {
		var tooLow *BidTooLowError
		switch {
		case err == nil:
			accepted++
		case errors.As(err, &tooLow):
			rejected++
		default:
			t.Errorf("unexpected err: %v", err)
		}
	}
	if accepted != 1 || rejected != bidders-1 {
		t.Errorf("accepted = %d, rejected = %d, want 1 and %d", accepted, rejected, bidders-1)
	}
}

func TestDeleteAuctionCascades(t *testing.T) {
	db, s := setupTestDB(t)
	_, a := seedAuction(t, s)
	it, _, _ := s.items.Create(NewItem{AuctionID: a.ID, Title: "Watch", Images: []NewImage{{URL: "u", Position: 1}}})
	s.comps.SaveListings(it.ID, []model.CompListing{{Title: "c", SalePrice: 1}})
	s.bids.Create(it.ID, "", "", 5)

	if err := s.auctions.Delete(a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, table := range []string{"items", "item_images", "comps", "bids"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("%s rows = %d, want 0 after cascade", table, n)
		}
	}
}
