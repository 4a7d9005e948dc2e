// Package server wires the console's HTTP surface: JSON API, the cache change
// feed and per-view bid streams.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/auctiondesk/internal/bids"
	"github.com/dukerupert/auctiondesk/internal/cache"
	"github.com/dukerupert/auctiondesk/internal/desk"
	"github.com/dukerupert/auctiondesk/internal/handler"
	"github.com/dukerupert/auctiondesk/internal/middleware"
	ws "github.com/dukerupert/auctiondesk/internal/websocket"
)

type Config struct {
	// BidInterval is the poll interval of bid streams. Clamped by the poller.
	BidInterval time.Duration
	// BatchPoll is how often a started comp batch is checked.
	BatchPoll time.Duration
	// OriginPatterns lists hosts allowed to open WebSockets cross-origin.
	OriginPatterns []string
}

type Server struct {
	desk       *desk.Service
	cache      *cache.Store
	hub        *ws.Hub
	cfg        Config
	auctionH   *handler.AuctionHandler
	itemH      *handler.ItemHandler
	batchH     *handler.CompBatchHandler
	dashboardH *handler.DashboardHandler
	bidH       *handler.BidHandler
	logger     *slog.Logger
}

// New builds the server. ctx bounds background work started by requests, such
// as comp batch watchers.
func New(ctx context.Context, d *desk.Service, store *cache.Store, fetcher bids.Fetcher, cfg Config, logger *slog.Logger) *Server {
	if cfg.BatchPoll <= 0 {
		cfg.BatchPoll = 2 * time.Second
	}
	hub := ws.NewHub(logger.With("component", "websocket"))

	store.Subscribe(func(c cache.Change) {
		hub.Broadcast(ws.NewMessage(c.Entity, c.Action, c.ID, nil))
	})

	return &Server{
		desk:       d,
		cache:      store,
		hub:        hub,
		cfg:        cfg,
		auctionH:   handler.NewAuctionHandler(d, store, logger.With("component", "auction")),
		itemH:      handler.NewItemHandler(d, store, logger.With("component", "item")),
		batchH:     handler.NewCompBatchHandler(ctx, d, hub, cfg.BatchPoll, logger.With("component", "comp_batch")),
		dashboardH: handler.NewDashboardHandler(d, store, logger.With("component", "dashboard")),
		bidH:       handler.NewBidHandler(fetcher, store, cfg.BidInterval, cfg.OriginPatterns, logger.With("component", "bids")),
		logger:     logger,
	}
}

// Hub returns the change feed hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("GET /api/state", s.dashboardH.State)
	mux.HandleFunc("POST /api/reload", s.dashboardH.Reload)
	mux.HandleFunc("GET /api/dashboard", s.dashboardH.Dashboard)
	mux.HandleFunc("GET /api/search", s.dashboardH.Search)

	// Auctions
	mux.HandleFunc("GET /api/auctions", s.auctionH.List)
	mux.HandleFunc("POST /api/auctions", s.auctionH.Create)
	mux.HandleFunc("PUT /api/auctions/{id}", s.auctionH.Update)
	mux.HandleFunc("DELETE /api/auctions/{id}", s.auctionH.Delete)
	mux.HandleFunc("GET /api/auctions/{id}/items", s.auctionH.Items)
	mux.HandleFunc("POST /api/auctions/{id}/items", s.auctionH.AddItems)
	mux.HandleFunc("GET /api/auctions/{id}/bids", s.bidH.Snapshot)

	// Items, images and comps
	mux.HandleFunc("PUT /api/items/{id}", s.itemH.Update)
	mux.HandleFunc("DELETE /api/items/{id}", s.itemH.Delete)
	mux.HandleFunc("GET /api/items/{id}/images", s.itemH.Images)
	mux.HandleFunc("POST /api/items/{id}/images", s.itemH.UploadImage)
	mux.HandleFunc("DELETE /api/images/{id}", s.itemH.DeleteImage)
	mux.HandleFunc("GET /api/items/{id}/comps", s.itemH.Comps)
	mux.HandleFunc("POST /api/items/{id}/comps", s.itemH.SearchComps)

	// Comp batches
	mux.HandleFunc("POST /api/comps/batches", s.batchH.Start)
	mux.HandleFunc("GET /api/comps/batches/{id}", s.batchH.Get)
	mux.HandleFunc("DELETE /api/comps/batches/{id}", s.batchH.Cancel)

	// Live feeds
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.cfg.OriginPatterns, s.logger.With("component", "websocket")))
	mux.HandleFunc("GET /ws/auctions/{id}/bids", s.bidH.Stream)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.cache.Status()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"loading": status.Loading,
		"error":   status.Error,
		"clients": s.hub.ClientCount(),
	})
}

// StartReloader reloads the cache on the given cron schedule (for example
// "@every 15m") until the returned stop function is called. An empty schedule
// disables reloading.
func (s *Server) StartReloader(ctx context.Context, schedule string) (stop func(), err error) {
	if schedule == "" {
		return func() {}, nil
	}
	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		if err := s.desk.Reload(ctx); err != nil {
			s.logger.Warn("scheduled reload", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse reload schedule %q: %w", schedule, err)
	}
	c.Start()
	s.logger.Info("cache reload scheduled", "schedule", schedule)
	return func() { <-c.Stop().Done() }, nil
}
