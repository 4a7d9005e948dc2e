// Package comps finds comparable sold listings for items.
package comps

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dukerupert/auctiondesk/internal/model"
)

const defaultSalesURL = "https://back.130point.com/sales/"

// Searcher finds sold listings matching a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.CompListing, error)
}

type ScraperConfig struct {
	SalesURL   string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	TimeZone   string
}

// Scraper queries the 130point sales backend and parses its HTML fragments.
type Scraper struct {
	cfg    ScraperConfig
	client *http.Client
	logger *slog.Logger
}

func NewScraper(cfg ScraperConfig, logger *slog.Logger) *Scraper {
	if cfg.SalesURL == "" {
		cfg.SalesURL = defaultSalesURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 1500 * time.Millisecond
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "America/New_York"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Search posts the query the way the 130point site does and returns at most
// limit listings in the order the site ranked them. limit <= 0 returns all.
func (s *Scraper) Search(ctx context.Context, query string, limit int) ([]model.CompListing, error) {
	form := url.Values{
		"query":  {query},
		"type":   {"2"},
		"subcat": {"-1"},
		"tab_id": {"7"},
		"tz":     {s.cfg.TimeZone},
		"sort":   {"urlEndTimeSoonest"},
	}

	body, err := s.postWithRetry(ctx, form)
	if err != nil {
		return nil, err
	}
	listings, err := ParseListings(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(listings) > limit {
		listings = listings[:limit]
	}
	s.logger.Debug("comp search", "query", query, "found", len(listings))
	return listings, nil
}

// postWithRetry retries transport errors and non-2xx responses with
// exponential backoff.
func (s *Scraper) postWithRetry(ctx context.Context, form url.Values) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := time.Duration(math.Pow(2, float64(attempt-2))) * s.cfg.RetryDelay
			s.logger.Warn("retrying comp search", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := s.post(ctx, form)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("comp search failed after %d attempts: %w", s.cfg.MaxRetries, lastErr)
}

func (s *Scraper) post(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SalesURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Origin", "https://130point.com")
	req.Header.Set("Referer", "https://130point.com/")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sales request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("sales request: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read sales response: %w", err)
	}
	return string(b), nil
}

var (
	moneyRe        = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)`)
	intRe          = regexp.MustCompile(`(\d+)`)
	datePrefixRe   = regexp.MustCompile(`(?i)^Date:\s*`)
	shipPrefixRe   = regexp.MustCompile(`(?i)^Shipping Price:\s*`)
	largeImageRe   = regexp.MustCompile(`getImage\(\s*["'](.*?)["']\s*,`)
	bestOfferRe    = regexp.MustCompile(`(?i)Best Offer Price:\s*([0-9.,]+)`)
	listPriceRe    = regexp.MustCompile(`(?i)List Price:\s*([0-9.,]+)`)
	currentPriceRe = regexp.MustCompile(`(?i)Current Price:\s*([0-9.,]+)`)
	bidsRe         = regexp.MustCompile(`(?i)\bBids:\s*(\d+)`)
	fullCurrencyRe = regexp.MustCompile(`(?i)SalePriceFull:\s*([0-9.,]+)\s*([A-Z]{3})`)
)

func parseMoney(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	m := moneyRe.FindString(s)
	if m == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(m, 64)
	return v
}

func parseInt(s string) int {
	m := intRe.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0
	}
	v, _ := strconv.Atoi(m)
	return v
}

// ParseListings extracts one listing per tr#dRow of a sales HTML fragment.
func ParseListings(r io.Reader) ([]model.CompListing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse sales html: %w", err)
	}

	out := []model.CompListing{}
	doc.Find("tr#dRow").Each(func(_ int, row *goquery.Selection) {
		var l model.CompListing

		price, _ := row.Attr("data-price")
		l.SalePrice = parseMoney(price)
		l.Currency, _ = row.Attr("data-currency")

		if a := row.Find("span#titleText a").First(); a.Length() > 0 {
			l.Title = strings.TrimSpace(a.Text())
			l.Link, _ = a.Attr("href")
		}
		l.SaleType = strings.TrimSpace(row.Find("span#auctionLabel").First().Text())

		if span := row.Find("span#dateText").First(); span.Length() > 0 {
			l.DateText = datePrefixRe.ReplaceAllString(strings.Join(strings.Fields(span.Text()), " "), "")
		}
		if span := row.Find("span#shipString").First(); span.Length() > 0 {
			l.Shipping = shipPrefixRe.ReplaceAllString(strings.Join(strings.Fields(span.Text()), " "), "")
		}

		if row.Find("#ebayOuter").Length() > 0 || strings.Contains(strings.ToLower(row.Text()), "ebay") {
			l.Source = "eBay"
		}

		img := row.Find("td#imgCol img").First()
		if img.Length() > 0 {
			l.ImageThumb, _ = img.Attr("src")
		}
		onclick, ok := img.Attr("onclick")
		if !ok {
			onclick, _ = row.Find("td#imgCol [onclick]").First().Attr("onclick")
		}
		if m := largeImageRe.FindStringSubmatch(onclick); m != nil {
			l.ImageLarge = m[1]
		}

		if props := row.Find(".props-data").First(); props.Length() > 0 {
			text := strings.Join(strings.Fields(props.Text()), " ")
			if m := bestOfferRe.FindStringSubmatch(text); m != nil {
				l.BestOfferPrice = parseMoney(m[1])
			}
			if m := listPriceRe.FindStringSubmatch(text); m != nil {
				l.ListPrice = parseMoney(m[1])
			}
			if m := currentPriceRe.FindStringSubmatch(text); m != nil {
				l.CurrentPrice = parseMoney(m[1])
			}
			if m := bidsRe.FindStringSubmatch(text); m != nil {
				l.Bids = parseInt(m[1])
			}
			if m := fullCurrencyRe.FindStringSubmatch(text); m != nil && l.Currency == "" {
				l.Currency = strings.ToUpper(m[2])
			}
		}

		out = append(out, l)
	})
	return out, nil
}
