package action

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Batches splits keys into consecutive slices of at most size keys, preserving order.
func Batches(keys []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := make([][]string, 0, (len(keys)+size-1)/size)
	for i := 0; i < len(keys); i += size {
		end := i + size
		if end > len(keys) {
			end = len(keys)
		}
		batches = append(batches, keys[i:end])
	}
	return batches
}

// pacer lets the first batch through immediately and spaces the rest by interval.
type pacer struct {
	limiter *rate.Limiter
}

func newPacer(interval time.Duration) *pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &pacer{limiter: rate.NewLimiter(limit, 1)}
}

func (p *pacer) wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
