// Package mockapi is a SQLite-backed implementation of the remote auction API
// used for local development and integration tests.
package mockapi

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/auctiondesk/internal/auth"
	"github.com/dukerupert/auctiondesk/internal/comps"
	"github.com/dukerupert/auctiondesk/internal/database"
	"github.com/dukerupert/auctiondesk/internal/middleware"
	"github.com/dukerupert/auctiondesk/internal/store"
)

type Config struct {
	// SessionTTL is how long a login token stays valid.
	SessionTTL time.Duration
	// CompLimit is the number of comps a search returns when no limit is given.
	CompLimit int
	// BatchConcurrency bounds the items a comp batch looks up at once.
	BatchConcurrency int
	// LoginLimit is the number of login attempts allowed per client per minute.
	LoginLimit int
}

func (c Config) withDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.CompLimit <= 0 {
		c.CompLimit = 10
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 2
	}
	if c.LoginLimit <= 0 {
		c.LoginLimit = 10
	}
	return c
}

type API struct {
	cfg      Config
	db       *sql.DB
	users    *store.UserStore
	sessions *store.SessionStore
	auctions *store.AuctionStore
	items    *store.ItemStore
	comps    *store.CompStore
	bids     *store.BidStore
	searcher comps.Searcher
	runner   *comps.Runner
	limiter  *middleware.RateLimiter
	logger   *slog.Logger
}

// New creates the fixture API over db. searcher backs the comp endpoints.
func New(db *sql.DB, searcher comps.Searcher, cfg Config, logger *slog.Logger) *API {
	cfg = cfg.withDefaults()
	a := &API{
		cfg:      cfg,
		db:       db,
		users:    store.NewUserStore(db),
		sessions: store.NewSessionStore(db),
		auctions: store.NewAuctionStore(db),
		items:    store.NewItemStore(db),
		comps:    store.NewCompStore(db),
		bids:     store.NewBidStore(db),
		searcher: searcher,
		limiter:  middleware.NewRateLimiter(cfg.LoginLimit, time.Minute),
		logger:   logger,
	}
	a.runner = comps.NewRunner(a.lookupAndSave, cfg.BatchConcurrency, logger.With("component", "comp_batch"))
	return a
}

// RateLimiter returns the login limiter so the caller can run its cleanup loop.
func (a *API) RateLimiter() *middleware.RateLimiter {
	return a.limiter
}

// Close waits for running comp batches to finish.
func (a *API) Close() {
	a.runner.Wait()
}

// EnsureUser creates the user unless one with that email exists.
func (a *API) EnsureUser(email, password, role string) (string, error) {
	u, err := a.users.GetByEmail(email)
	if err != nil {
		return "", err
	}
	if u != nil {
		return u.ID, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	u, err = a.users.Create(email, hash, role)
	if err != nil {
		return "", fmt.Errorf("seed user: %w", err)
	}
	a.logger.Info("user created", "email", u.Email, "role", role, "profile_id", u.ID)
	return u.ID, nil
}

func (a *API) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", a.health)
	outerMux.Handle("POST /auth/login", middleware.RateLimit(a.limiter, middleware.RealIP)(http.HandlerFunc(a.login)))
	outerMux.HandleFunc("POST /items/{id}/bids", a.placeBid)

	protectedMux := http.NewServeMux()

	protectedMux.HandleFunc("GET /auctions", a.listAuctions)
	protectedMux.HandleFunc("POST /auctions", a.createAuction)
	protectedMux.HandleFunc("GET /auctions/{id}", a.getAuction)
	protectedMux.HandleFunc("PUT /auctions/{id}", a.updateAuction)
	protectedMux.HandleFunc("DELETE /auctions/{id}", a.deleteAuction)
	protectedMux.HandleFunc("GET /auctions/{id}/bids", a.auctionBids)

	protectedMux.HandleFunc("GET /items", a.listItems)
	protectedMux.HandleFunc("POST /items", a.createItem)
	protectedMux.HandleFunc("POST /items/generate-description", a.generateDescription)
	protectedMux.HandleFunc("PUT /items/{id}", a.updateItem)
	protectedMux.HandleFunc("DELETE /items/{id}", a.deleteItem)
	protectedMux.HandleFunc("PUT /items/{id}/images/{image_id}", a.updateItemImage)
	protectedMux.HandleFunc("DELETE /items/{id}/images/{image_id}", a.deleteItemImage)

	protectedMux.HandleFunc("GET /items/{id}/comps", a.searchComps)
	protectedMux.HandleFunc("GET /items/{id}/comps/saved", a.savedComps)
	protectedMux.HandleFunc("POST /comps", a.startBatch)
	protectedMux.HandleFunc("GET /comps/batch/{id}", a.getBatch)
	protectedMux.HandleFunc("GET /comps/batch/{id}/results", a.batchResults)
	protectedMux.HandleFunc("DELETE /comps/batch/{id}", a.cancelBatch)

	protectedMux.Handle("POST /admin/users", middleware.RequireAdmin(http.HandlerFunc(a.createUser)))

	outerMux.Handle("/", middleware.RequireToken(a.sessions, a.users)(protectedMux))

	return middleware.RequestLogger(a.logger.With("component", "http"))(outerMux)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	version, err := database.SchemaVersion(r.Context(), a.db)
	if err != nil {
		a.logger.Error("health check", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "schema_version": version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes the API's error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (a *API) internalError(w http.ResponseWriter, action string, err error) {
	a.logger.Error(action, "error", err)
	writeDetail(w, http.StatusInternalServerError, "failed to "+action)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}
