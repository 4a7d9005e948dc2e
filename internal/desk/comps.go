package desk

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/auctiondesk/internal/model"
)

// FetchComps runs a live comp search for the item and caches what it returns.
func (s *Service) FetchComps(ctx context.Context, itemID string, limit int) ([]model.Comp, error) {
	res, err := s.remote.SearchComps(ctx, itemID, limit)
	if err != nil {
		return nil, err
	}
	if len(res.Comps) == 0 {
		s.logger.Info("no comps found", "item_id", itemID, "query", res.SearchQuery)
	}
	return s.cacheListings(itemID, res.Comps), nil
}

func (s *Service) cacheListings(itemID string, listings []model.CompListing) []model.Comp {
	out := make([]model.Comp, 0, len(listings))
	for _, l := range listings {
		out = append(out, s.cache.AddComp(l.Comp(itemID)))
	}
	return out
}

// StartCompBatch queues comp lookups for several items.
func (s *Service) StartCompBatch(ctx context.Context, itemIDs []string) (model.CompBatch, error) {
	if len(itemIDs) == 0 {
		return model.CompBatch{}, fmt.Errorf("%w: no items selected", ErrInvalidInput)
	}
	b, err := s.remote.StartCompBatch(ctx, itemIDs)
	if err != nil {
		return model.CompBatch{}, err
	}
	s.logger.Info("comp batch started", "batch_id", b.ID, "items", len(itemIDs))
	return b, nil
}

func (s *Service) CompBatch(ctx context.Context, id string) (model.CompBatch, error) {
	return s.remote.CompBatch(ctx, id)
}

func (s *Service) CancelCompBatch(ctx context.Context, id string) error {
	if err := s.remote.CancelCompBatch(ctx, id); err != nil {
		return err
	}
	s.logger.Info("comp batch cancelled", "batch_id", id)
	return nil
}

// BatchSummary is the outcome of collecting a comp batch.
type BatchSummary struct {
	Batch      model.CompBatch   `json:"batch"`
	CompsAdded int               `json:"comps_added"`
	Failed     map[string]string `json:"failed,omitempty"`
}

// CollectCompBatch caches the comps of every item the batch finished. Items the
// batch failed on are reported in Failed; the others are still applied.
func (s *Service) CollectCompBatch(ctx context.Context, id string) (BatchSummary, error) {
	results, err := s.remote.CompBatchResults(ctx, id)
	if err != nil {
		return BatchSummary{}, err
	}
	summary := BatchSummary{Failed: make(map[string]string)}
	for _, r := range results {
		if r.Error != "" {
			summary.Failed[r.ItemID] = r.Error
			continue
		}
		summary.CompsAdded += len(s.cacheListings(r.ItemID, r.Comps))
	}
	return summary, nil
}

// WatchCompBatch polls the batch every interval until it finishes, then
// collects its results. A cancelled or failed batch still has whatever it
// completed collected.
func (s *Service) WatchCompBatch(ctx context.Context, id string, interval time.Duration) (BatchSummary, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		b, err := s.remote.CompBatch(ctx, id)
		if err != nil {
			return BatchSummary{}, err
		}
		if b.Finished() {
			summary, err := s.CollectCompBatch(ctx, id)
			if err != nil {
				return BatchSummary{}, err
			}
			summary.Batch = b
			s.logger.Info("comp batch collected",
				"batch_id", id,
				"status", b.Status,
				"comps", summary.CompsAdded,
				"failed", len(summary.Failed),
			)
			return summary, nil
		}

		select {
		case <-ctx.Done():
			return BatchSummary{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
