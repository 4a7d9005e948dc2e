package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/auctiondesk/internal/api"
	"github.com/dukerupert/auctiondesk/internal/desk"
	"github.com/dukerupert/auctiondesk/internal/storage"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("%w: name required", desk.ErrInvalidInput), http.StatusBadRequest},
		{"invalid draft", desk.ErrInvalidDraft, http.StatusBadRequest},
		{"desk not found", fmt.Errorf("find image: %w", desk.ErrNotFound), http.StatusNotFound},
		{"api not found", fmt.Errorf("get auction: %w", &api.Error{Status: 404}), http.StatusNotFound},
		{"api bad request", &api.Error{Status: 400, Detail: "bad"}, http.StatusBadRequest},
		{"api conflict", &api.Error{Status: 409}, http.StatusBadGateway},
		{"storage", storage.ErrNotConfigured, http.StatusServiceUnavailable},
		{"network", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteFailureUsesDetail(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	writeFailure(rec, logger, "create auction", fmt.Errorf("create auction: %w", &api.Error{Status: 400, Detail: "auction_name is required"}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "create auction: auction_name is required" {
		t.Errorf("error = %q", body["error"])
	}
}
