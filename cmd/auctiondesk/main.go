package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/auctiondesk/internal/api"
	"github.com/dukerupert/auctiondesk/internal/cache"
	"github.com/dukerupert/auctiondesk/internal/config"
	"github.com/dukerupert/auctiondesk/internal/desk"
	"github.com/dukerupert/auctiondesk/internal/logging"
	"github.com/dukerupert/auctiondesk/internal/server"
	"github.com/dukerupert/auctiondesk/internal/storage"
)

func main() {
	configPath := flag.String("config", "auctiondesk.yaml", "path to the YAML config file")
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout(),
	}, logger.With("component", "api"))

	profileID := cfg.ProfileID
	if cfg.API.Token == "" {
		res, err := client.Login(ctx, cfg.API.Email, cfg.API.Password)
		if err != nil {
			slog.Error("failed to log in", "error", err)
			os.Exit(1)
		}
		if profileID == "" {
			profileID = res.ProfileID
		}
		logger.Info("logged in", "profile_id", profileID)
	}

	store := cache.New(client, logger.With("component", "cache"))
	var images desk.ImageStore
	if bucket := storage.New(cfg.Storage, logger.With("component", "storage")); bucket.Configured() {
		images = bucket
	} else {
		logger.Warn("image storage not configured; photos keep placeholder URLs")
	}
	d := desk.New(client, images, store, profileID, logger.With("component", "desk"))

	if err := d.Reload(ctx); err != nil {
		// The console still starts; views show the load error until a reload succeeds.
		logger.Error("initial cache load failed", "error", err)
	}

	srv := server.New(ctx, d, store, client, server.Config{
		BidInterval:    cfg.Bids.Interval(),
		BatchPoll:      cfg.Comps.BatchPoll(),
		OriginPatterns: cfg.OriginPatterns,
	}, logger)

	stopReloader, err := srv.StartReloader(ctx, cfg.ReloadSchedule)
	if err != nil {
		slog.Error("failed to schedule reloads", "error", err)
		os.Exit(1)
	}
	defer stopReloader()

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("auctiondesk listening", "addr", cfg.Listen, "api", cfg.API.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
