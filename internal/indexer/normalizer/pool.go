package normalizer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Pool normalizes large inputs by splitting them into fixed-size batches
// and running NormalizeBatch for each batch on an ants worker pool. Results
// are written into the slot of their batch, never in completion order.
type Pool struct {
	normalizer *Normalizer
	workers    *ants.Pool
	batchSize  int
	logger     *slog.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool) error

// WithWorkers sets the number of concurrent batches. Default is
// runtime.NumCPU().
func WithWorkers(n int) PoolOption {
	return func(p *Pool) error {
		if n < 1 {
			n = 1
		}
		workers, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		if p.workers != nil {
			p.workers.Release()
		}
		p.workers = workers
		return nil
	}
}

// WithBatchSize sets how many items make up one batch. Default 1000.
func WithBatchSize(n int) PoolOption {
	return func(p *Pool) error {
		if n < 1 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		p.batchSize = n
		return nil
	}
}

func NewPool(n *Normalizer, opts ...PoolOption) (*Pool, error) {
	size := runtime.NumCPU()
	workers, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	p := &Pool{
		normalizer: n,
		workers:    workers,
		batchSize:  1000,
		logger:     slog.Default().With("component", "normalizer-pool"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}
	return p, nil
}

// Normalize returns the space-joined normalized text of every item, in input
// order. The output is identical for any batch size or worker count.
func (p *Pool) Normalize(ctx context.Context, items []string) ([]string, error) {
	out := make([]string, len(items))
	batches := (len(items) + p.batchSize - 1) / p.batchSize
	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		lo := b * p.batchSize
		hi := min(lo+p.batchSize, len(items))
		wg.Add(1)
		err := p.workers.Submit(func() {
			defer wg.Done()
			copy(out[lo:hi], JoinBatch(p.normalizer.NormalizeBatch(items[lo:hi])))
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting batch %d: %w", b, err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.logger.Debug("normalized", "items", len(items), "batches", batches, "batch_size", p.batchSize)
	return out, nil
}

// Release stops the worker goroutines.
func (p *Pool) Release() {
	if p.workers != nil {
		p.workers.Release()
	}
}
