// Package bids tracks live bidding for one auction by polling the remote API.
package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/auctiondesk/internal/model"
)

const (
	DefaultInterval = 5 * time.Second
	MinInterval     = 5 * time.Second
	MaxInterval     = 30 * time.Second
)

var (
	ErrNotStarted = errors.New("poller not started")
	ErrStopped    = errors.New("poller stopped")
)

// State is the lifecycle of a poller: idle → polling → stopped.
type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
	StateStopped State = "stopped"
)

// Fetcher loads the current bid feed for an auction.
type Fetcher interface {
	AuctionBids(ctx context.Context, auctionID string) (*model.AuctionBids, error)
}

type Options struct {
	Interval time.Duration
	Enabled  bool
}

// DefaultOptions polls every five seconds.
func DefaultOptions() Options {
	return Options{Interval: DefaultInterval, Enabled: true}
}

// Update is delivered to OnUpdate callbacks after each tick.
type Update struct {
	AuctionID string    `json:"auction_id"`
	Stats     Stats     `json:"stats"`
	Winners   []Winner  `json:"winners"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// UpdateCallback is called after every applied fetch or failed tick.
type UpdateCallback func(Update)

// Poller keeps an item → bids view for one auction fresh. Each instance is
// private to one view; pollers never share state.
type Poller struct {
	mu        sync.RWMutex
	fetcher   Fetcher
	logger    *slog.Logger
	callback  UpdateCallback
	state     State
	auctionID string
	opts      Options

	// generation changes on every Start and Stop; seq orders fetches within a
	// generation. A result is applied only if both are still current.
	generation uint64
	seq        uint64
	appliedSeq uint64

	feed        *model.AuctionBids
	byItem      map[string][]model.Bid
	lastErr     error
	lastFetched time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates an idle poller.
func NewPoller(fetcher Fetcher, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher: fetcher,
		logger:  logger,
		state:   StateIdle,
		byItem:  make(map[string][]model.Bid),
	}
}

// OnUpdate registers the callback for tick results. Call before Start.
func (p *Poller) OnUpdate(cb UpdateCallback) {
	p.mu.Lock()
	p.callback = cb
	p.mu.Unlock()
}

func clampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	}
	return d
}

// Start fetches immediately and then once per interval while enabled. A
// poller can only be started once.
func (p *Poller) Start(ctx context.Context, auctionID string, opts Options) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("start poller: already %s", p.state)
	}
	opts.Interval = clampInterval(opts.Interval)
	p.auctionID = auctionID
	p.opts = opts
	p.state = StatePolling
	p.generation++
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	gen := p.generation
	interval := opts.Interval
	p.mu.Unlock()

	p.tick(ctx, gen)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Fetches may overlap; the sequence guard drops late responses.
				go p.tick(ctx, gen)
			}
		}
	}()
	return nil
}

// Stop halts scheduling. Responses still in flight are discarded when they
// arrive. Stop is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != StatePolling {
		if p.state == StateIdle {
			p.state = StateStopped
		}
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	p.generation++
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// SetEnabled pauses or resumes fetching without stopping the poller.
func (p *Poller) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.opts.Enabled = enabled
	p.mu.Unlock()
}

// Refresh fetches immediately and applies the result, returning the fetch error.
func (p *Poller) Refresh(ctx context.Context) error {
	p.mu.RLock()
	state := p.state
	gen := p.generation
	p.mu.RUnlock()

	switch state {
	case StateIdle:
		return ErrNotStarted
	case StateStopped:
		return ErrStopped
	}
	return p.fetch(ctx, gen)
}

func (p *Poller) tick(ctx context.Context, gen uint64) {
	p.mu.RLock()
	enabled := p.opts.Enabled
	p.mu.RUnlock()
	if !enabled {
		return
	}
	if err := p.fetch(ctx, gen); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("poll bids", "auction_id", p.auctionID, "error", err)
	}
}

func (p *Poller) fetch(ctx context.Context, gen uint64) error {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	auctionID := p.auctionID
	p.mu.Unlock()

	feed, err := p.fetcher.AuctionBids(ctx, auctionID)

	p.mu.Lock()
	if gen != p.generation || p.state != StatePolling || seq < p.appliedSeq {
		p.mu.Unlock()
		return nil
	}
	if err != nil {
		// Keep the last good view; stale-but-present beats empty.
		p.lastErr = err
		update := p.updateLocked()
		cb := p.callback
		p.mu.Unlock()
		if cb != nil {
			cb(update)
		}
		return fmt.Errorf("fetch auction bids: %w", err)
	}
	byItem := make(map[string][]model.Bid, len(feed.ItemsWithBids))
	for _, ib := range feed.ItemsWithBids {
		if ib.Bids == nil {
			ib.Bids = []model.Bid{}
		}
		byItem[ib.ItemID] = ib.Bids
	}
	p.feed = feed
	p.byItem = byItem
	p.appliedSeq = seq
	p.lastErr = nil
	p.lastFetched = time.Now()
	update := p.updateLocked()
	cb := p.callback
	p.mu.Unlock()

	if cb != nil {
		cb(update)
	}
	return nil
}

func (p *Poller) updateLocked() Update {
	u := Update{
		AuctionID: p.auctionID,
		Stats:     statsFor(p.feed),
		Winners:   winnersFor(p.feed, modeForFeed(p.feed)),
		FetchedAt: p.lastFetched,
	}
	if p.lastErr != nil {
		u.Error = p.lastErr.Error()
	}
	return u
}

func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// LastError returns the error of the most recent tick, or nil after a success.
func (p *Poller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *Poller) LastFetched() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastFetched
}

// BidsForItem returns the item's bids highest first, or an empty slice if none
// were observed yet.
func (p *Poller) BidsForItem(itemID string) []model.Bid {
	p.mu.RLock()
	defer p.mu.RUnlock()
	bids := p.byItem[itemID]
	out := make([]model.Bid, len(bids))
	copy(out, bids)
	return out
}

// Snapshot returns the current view in the same shape OnUpdate delivers.
func (p *Poller) Snapshot() Update {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updateLocked()
}

// Feed returns the latest applied feed, or nil before the first success.
func (p *Poller) Feed() *model.AuctionBids {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.feed
}

// Winners derives the winner list for mode from the latest feed.
func (p *Poller) Winners(mode Mode) []Winner {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return winnersFor(p.feed, mode)
}

// Stats recomputes the aggregate bid statistics from the latest feed.
func (p *Poller) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return statsFor(p.feed)
}
