package comps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/auctiondesk/internal/model"
)

const salesFragment = `<table>
<tr id="dRow" data-price="1,250.00" data-currency="USD">
  <td id="imgCol"><img src="https://img.example.com/t1.jpg" onclick="getImage(&quot;https://img.example.com/l1.jpg&quot;, '123')"></td>
  <td>
    <span id="titleText"><a href="https://www.ebay.com/itm/123">Omega Seamaster 1968 Automatic</a></span>
    <span id="auctionLabel">Best Offer Accepted</span>
    <span id="dateText">Date: Mon 10 Nov 2025   17:52:42 EST</span>
    <span id="shipString">Shipping Price: 12.00 USD</span>
    <div id="ebayOuter">eBay</div>
    <span class="props-data">Sale Price: 1250 - Best Offer Price: 1,100 - Current Price: 1399.99 - Bids: 0 - Sale Type: bestoffer - SalePriceFull: 1250.00 USD</span>
  </td>
</tr>
<tr id="dRow" data-price="">
  <td id="imgCol"><span onclick="getImage('https://img.example.com/l2.jpg', '456')"><img src="https://img.example.com/t2.jpg"></span></td>
  <td>
    <span id="titleText"><a href="https://example.com/456">Omega Seamaster</a></span>
    <span id="auctionLabel">Auction</span>
    <span class="props-data">Current Price: 800 - Bids: 14 - SalePriceFull: 800.00 gbp</span>
  </td>
</tr>
</table>`

func TestParseListings(t *testing.T) {
	listings, err := ParseListings(strings.NewReader(salesFragment))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("listings = %d, want 2", len(listings))
	}

	first := listings[0]
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"title", first.Title, "Omega Seamaster 1968 Automatic"},
		{"link", first.Link, "https://www.ebay.com/itm/123"},
		{"sale price", first.SalePrice, 1250.0},
		{"currency", first.Currency, "USD"},
		{"best offer", first.BestOfferPrice, 1100.0},
		{"current", first.CurrentPrice, 1399.99},
		{"sale type", first.SaleType, "Best Offer Accepted"},
		{"date", first.DateText, "Mon 10 Nov 2025 17:52:42 EST"},
		{"shipping", first.Shipping, "12.00 USD"},
		{"source", first.Source, "eBay"},
		{"thumb", first.ImageThumb, "https://img.example.com/t1.jpg"},
		{"large", first.ImageLarge, "https://img.example.com/l1.jpg"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	second := listings[1]
	if second.SalePrice != 0 || second.CurrentPrice != 800 || second.Bids != 14 {
		t.Errorf("second prices = %+v", second)
	}
	if second.Currency != "GBP" {
		t.Errorf("currency = %q, want GBP from SalePriceFull", second.Currency)
	}
	if second.ImageLarge != "https://img.example.com/l2.jpg" {
		t.Errorf("large image = %q", second.ImageLarge)
	}
	if second.Source != "" {
		t.Errorf("source = %q, want empty", second.Source)
	}
	if second.SoldPrice() != 800 {
		t.Errorf("sold price = %v, want current price fallback", second.SoldPrice())
	}
}

func TestParseListingsEmpty(t *testing.T) {
	listings, err := ParseListings(strings.NewReader("<p>No results</p>"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if listings == nil || len(listings) != 0 {
		t.Errorf("listings = %#v, want empty", listings)
	}
}

func TestScraperSearch(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		r.ParseForm()
		if got := r.PostForm.Get("query"); got != "Omega Seamaster 1968" {
			t.Errorf("query = %q", got)
		}
		if got := r.PostForm.Get("tab_id"); got != "7" {
			t.Errorf("tab_id = %q", got)
		}
		w.Write([]byte(salesFragment))
	}))
	defer server.Close()

	s := NewScraper(ScraperConfig{SalesURL: server.URL, RetryDelay: time.Millisecond}, nil)
	listings, err := s.Search(context.Background(), "Omega Seamaster 1968", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(listings) != 1 {
		t.Errorf("listings = %d, want limit 1", len(listings))
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestScraperGivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewScraper(ScraperConfig{SalesURL: server.URL, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
	if _, err := s.Search(context.Background(), "x", 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunnerCompletesWithPartialFailure(t *testing.T) {
	lookup := func(ctx context.Context, itemID string) ([]model.CompListing, error) {
		if itemID == "bad" {
			return nil, errors.New("no query for item")
		}
		return []model.CompListing{{Title: itemID + " comp", SalePrice: 10}}, nil
	}
	r := NewRunner(lookup, 2, nil)

	b, err := r.Submit(context.Background(), []string{"i1", "bad", "i2"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if b.Status != model.BatchStatusPending || b.Total != 3 {
		t.Errorf("submitted = %+v", b)
	}
	r.Wait()

	status, err := r.Status(b.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != model.BatchStatusDone || status.Completed != 3 {
		t.Errorf("status = %+v, want done 3/3", status)
	}

	results, err := r.Results(b.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].ItemID != "i1" || results[1].ItemID != "bad" || results[2].ItemID != "i2" {
		t.Errorf("results out of submission order: %+v", results)
	}
	if results[1].Error == "" || len(results[1].Comps) != 0 {
		t.Errorf("failed result = %+v", results[1])
	}
}

func TestRunnerCancel(t *testing.T) {
	started := make(chan struct{}, 1)
	lookup := func(ctx context.Context, itemID string) ([]model.CompListing, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r := NewRunner(lookup, 1, nil)

	b, err := r.Submit(context.Background(), []string{"i1", "i2"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started
	if err := r.Cancel(b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	r.Wait()

	status, _ := r.Status(b.ID)
	if status.Status != model.BatchStatusCancelled {
		t.Errorf("status = %q, want cancelled", status.Status)
	}
	results, _ := r.Results(b.ID)
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}

func TestRunnerUnknownBatch(t *testing.T) {
	r := NewRunner(nil, 1, nil)
	if _, err := r.Status("nope"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("status err = %v", err)
	}
	if err := r.Cancel("nope"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("cancel err = %v", err)
	}
}
