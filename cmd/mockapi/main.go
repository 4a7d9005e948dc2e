package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/auctiondesk/internal/auth"
	"github.com/dukerupert/auctiondesk/internal/comps"
	"github.com/dukerupert/auctiondesk/internal/database"
	"github.com/dukerupert/auctiondesk/internal/logging"
	"github.com/dukerupert/auctiondesk/internal/mockapi"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("MOCKAPI_ADDR", ":8000"), "listen address")
	dbPath := flag.String("db", envOr("MOCKAPI_DB_PATH", "mockapi.db"), "SQLite database path")
	flag.Parse()

	logger := logging.Setup(os.Getenv("MOCKAPI_LOG_LEVEL"), os.Getenv("MOCKAPI_LOG_FORMAT"))

	db, err := database.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	scraper := comps.NewScraper(comps.ScraperConfig{
		SalesURL: os.Getenv("MOCKAPI_COMPS_URL"),
	}, logger.With("component", "scraper"))

	a := mockapi.New(db, scraper, mockapi.Config{}, logger)
	defer a.Close()

	if email := os.Getenv("MOCKAPI_ADMIN_EMAIL"); email != "" {
		password := os.Getenv("MOCKAPI_ADMIN_PASSWORD")
		if password == "" {
			slog.Error("MOCKAPI_ADMIN_PASSWORD is required with MOCKAPI_ADMIN_EMAIL")
			os.Exit(1)
		}
		if _, err := a.EnsureUser(email, password, auth.RoleAdmin); err != nil {
			slog.Error("failed to seed admin", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.RateLimiter().Run(ctx)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("mock API listening", "addr", *addr, "db", *dbPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
