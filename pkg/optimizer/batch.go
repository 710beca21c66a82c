package optimizer

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/engine"
	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

// BatchConfig holds batch optimization configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel optimizations.
	// Image decoding is memory heavy, keep this modest.
	MaxConcurrency int
	// Timeout per single optimization.
	Timeout time.Duration
}

// DefaultBatchConfig returns safe defaults for document preparation,
// where a typical order or invoice embeds a handful of product images.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// BatchItem is one image to optimize.
type BatchItem struct {
	Identity    string
	ContentType policy.ContentType
}

// BatchResult pairs an item with its resolved result. Result is never nil;
// failures surface through Result.Error like single calls.
type BatchResult struct {
	Item   BatchItem
	Result *engine.Result
}

// BatchOptimizer optimizes a set of images in parallel using a worker pool.
// It is intended for preparing all images of a document in one pass before
// PDF assembly.
type BatchOptimizer struct {
	optimizer *Optimizer
	config    BatchConfig
}

// NewBatchOptimizer creates a batch optimizer around an Optimizer.
func NewBatchOptimizer(opt *Optimizer, cfg BatchConfig) *BatchOptimizer {
	if opt == nil {
		panic("optimizer cannot be nil")
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &BatchOptimizer{
		optimizer: opt,
		config:    cfg,
	}
}

// OptimizeAll resolves every item and returns results in input order.
// Individual failures do not stop the batch; a cancelled context stops
// dispatching and resolves remaining items as failures.
func (b *BatchOptimizer) OptimizeAll(ctx context.Context, items []BatchItem) []BatchResult {
	start := time.Now()
	results := make([]BatchResult, len(items))

	b.optimizer.logger.Info().
		Int("items", len(items)).
		Int("workers", b.config.MaxConcurrency).
		Msg("Starting batch optimization")

	queue := make(chan int, len(items))
	for i := range items {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for w := 0; w < b.config.MaxConcurrency; w++ {
		wg.Add(1)
		go b.worker(ctx, items, results, queue, &wg)
	}
	wg.Wait()

	b.optimizer.logger.Info().
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Batch optimization complete")

	return results
}

// worker processes item indexes from the queue.
func (b *BatchOptimizer) worker(ctx context.Context, items []BatchItem, results []BatchResult, queue <-chan int, wg *sync.WaitGroup) {
	defer wg.Done()

	for i := range queue {
		item := items[i]

		select {
		case <-ctx.Done():
			results[i] = BatchResult{
				Item: item,
				Result: &engine.Result{
					Metadata: engine.Metadata{ContentType: item.ContentType},
					Error:    "batch cancelled: " + ctx.Err().Error(),
				},
			}
			continue
		default:
		}

		itemCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
		res := b.optimizer.OptimizeImageForPDF(itemCtx, item.Identity, item.ContentType)
		cancel()

		results[i] = BatchResult{Item: item, Result: res}
	}
}
