package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dukerupert/auctiondesk/internal/bids"
	"github.com/dukerupert/auctiondesk/internal/cache"
)

// BidHandler serves bid tracking. Every request or connection gets its own
// poller; pollers are never shared between views.
type BidHandler struct {
	fetcher        bids.Fetcher
	cache          *cache.Store
	interval       time.Duration
	originPatterns []string
	logger         *slog.Logger
}

func NewBidHandler(fetcher bids.Fetcher, c *cache.Store, interval time.Duration, originPatterns []string, logger *slog.Logger) *BidHandler {
	return &BidHandler{
		fetcher:        fetcher,
		cache:          c,
		interval:       interval,
		originPatterns: originPatterns,
		logger:         logger,
	}
}

type bidSnapshot struct {
	bids.Update
	Mode  bids.Mode  `json:"mode"`
	State bids.State `json:"state"`
}

// Snapshot performs one fetch and returns winners and stats.
func (h *BidHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p := bids.NewPoller(h.fetcher, h.logger)
	if err := p.Start(r.Context(), id, bids.Options{Interval: bids.MaxInterval, Enabled: true}); err != nil {
		writeFailure(w, h.logger, "poll bids", err)
		return
	}
	p.Stop()

	if err := p.LastError(); err != nil && p.Feed() == nil {
		writeFailure(w, h.logger, "poll bids", err)
		return
	}
	u := p.Snapshot()
	writeJSON(w, http.StatusOK, bidSnapshot{Update: u, Mode: h.mode(p), State: p.State()})
}

func (h *BidHandler) mode(p *bids.Poller) bids.Mode {
	if feed := p.Feed(); feed != nil {
		return bids.ModeFor(feed.Auction.Status)
	}
	return bids.ModeOpen
}

// streamCommand is sent by the browser to control its poller.
type streamCommand struct {
	Enabled *bool `json:"enabled,omitempty"`
	Refresh bool  `json:"refresh,omitempty"`
}

// Stream upgrades to a WebSocket and pushes an update after every poll. The
// poller stops when the connection closes.
func (h *BidHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Only the newest update matters; an unsent older one is replaced.
	updates := make(chan bids.Update, 1)
	p := bids.NewPoller(h.fetcher, h.logger.With("auction_id", id))
	p.OnUpdate(func(u bids.Update) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- u:
		default:
		}
	})

	if err := p.Start(ctx, id, bids.Options{Interval: h.interval, Enabled: true}); err != nil {
		conn.Close(ws.StatusInternalError, "start poller")
		return
	}
	defer p.Stop()

	go h.readCommands(ctx, cancel, conn, p)

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case u := <-updates:
			msg := bidSnapshot{Update: u, Mode: h.mode(p), State: p.State()}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func (h *BidHandler) readCommands(ctx context.Context, cancel context.CancelFunc, conn *ws.Conn, p *bids.Poller) {
	defer cancel()
	for {
		var cmd streamCommand
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			return
		}
		if cmd.Enabled != nil {
			p.SetEnabled(*cmd.Enabled)
		}
		if cmd.Refresh {
			if err := p.Refresh(ctx); err != nil {
				h.logger.Warn("refresh bids", "error", err)
			}
		}
	}
}
