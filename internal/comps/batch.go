package comps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/auctiondesk/internal/model"
)

var ErrBatchNotFound = errors.New("comp batch not found")

// LookupFunc finds and saves comps for one item.
type LookupFunc func(ctx context.Context, itemID string) ([]model.CompListing, error)

type batch struct {
	info    model.CompBatch
	results map[string]model.CompBatchResult
	order   []string
	cancel  context.CancelFunc
}

// Runner executes comp batches in the background, a few items at a time.
type Runner struct {
	mu          sync.RWMutex
	batches     map[string]*batch
	lookup      LookupFunc
	concurrency int
	logger      *slog.Logger

	wg sync.WaitGroup
}

func NewRunner(lookup LookupFunc, concurrency int, logger *slog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		batches:     make(map[string]*batch),
		lookup:      lookup,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Submit starts a batch over itemIDs and returns its pending record.
func (r *Runner) Submit(ctx context.Context, itemIDs []string) (model.CompBatch, error) {
	if len(itemIDs) == 0 {
		return model.CompBatch{}, fmt.Errorf("submit comp batch: no items")
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b := &batch{
		info: model.CompBatch{
			ID:        uuid.NewString(),
			Status:    model.BatchStatusPending,
			Total:     len(itemIDs),
			CreatedAt: time.Now().UTC(),
		},
		results: make(map[string]model.CompBatchResult, len(itemIDs)),
		order:   append([]string(nil), itemIDs...),
		cancel:  cancel,
	}

	r.mu.Lock()
	r.batches[b.info.ID] = b
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(ctx, b)
	}()

	return b.info, nil
}

func (r *Runner) run(ctx context.Context, b *batch) {
	r.setStatus(b, model.BatchStatusRunning)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, itemID := range b.order {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			listings, err := r.lookup(ctx, itemID)
			res := model.CompBatchResult{ItemID: itemID, Comps: listings}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Warn("comp batch item failed", "batch_id", b.info.ID, "item_id", itemID, "error", err)
				res = model.CompBatchResult{ItemID: itemID, Comps: []model.CompListing{}, Error: err.Error()}
			}

			r.mu.Lock()
			b.results[itemID] = res
			b.info.Completed++
			r.mu.Unlock()
			return nil
		})
	}
	g.Wait()

	r.mu.Lock()
	if b.info.Status != model.BatchStatusCancelled {
		b.info.Status = model.BatchStatusDone
	}
	info := b.info
	r.mu.Unlock()

	r.logger.Info("comp batch finished", "batch_id", info.ID, "status", info.Status, "completed", info.Completed, "total", info.Total)
}

func (r *Runner) setStatus(b *batch, status string) {
	r.mu.Lock()
	if !b.info.Finished() {
		b.info.Status = status
	}
	r.mu.Unlock()
}

// Status returns a batch's progress.
func (r *Runner) Status(id string) (model.CompBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return model.CompBatch{}, ErrBatchNotFound
	}
	return b.info, nil
}

// Results returns the finished items' results in submission order.
func (r *Runner) Results(id string) ([]model.CompBatchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	out := make([]model.CompBatchResult, 0, len(b.results))
	for _, itemID := range b.order {
		if res, ok := b.results[itemID]; ok {
			out = append(out, res)
		}
	}
	return out, nil
}

// Cancel stops a batch. Items already looked up keep their results.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()
	b, ok := r.batches[id]
	if !ok {
		r.mu.Unlock()
		return ErrBatchNotFound
	}
	if !b.info.Finished() {
		b.info.Status = model.BatchStatusCancelled
	}
	cancel := b.cancel
	r.mu.Unlock()

	cancel()
	return nil
}

// Wait blocks until every submitted batch has stopped running.
func (r *Runner) Wait() {
	r.wg.Wait()
}
