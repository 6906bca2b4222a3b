// Package action applies a bulk DELETE or RENAME to a set of discovered keys.
//
// Keys are processed in fixed-size batches with a pause between batches. A
// dry run computes and records the same output without calling the store.
// Individual store failures are counted and logged; they never stop the run,
// and the audit file records only what actually happened.
package action

import (
	"context"
	"errors"
	"log/slog"

	"s3keyfinder/internal/audit"
	"s3keyfinder/internal/models"
)

// Store is the mutating part of the store capability.
type Store interface {
	BulkDelete(ctx context.Context, bucket string, keys []string) (*models.BulkDeleteResult, error)
	CopyObject(ctx context.Context, bucket, srcKey, destBucket, destKey string) (*models.CopyResult, error)
}

type Pipeline struct {
	store  Store
	writer *audit.Writer
	bucket string
	logger *slog.Logger
}

// NewPipeline returns a pipeline acting on bucket. store may be nil for dry runs.
func NewPipeline(store Store, writer *audit.Writer, bucket string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:  store,
		writer: writer,
		bucket: bucket,
		logger: logger,
	}
}

func (p *Pipeline) Invoke(ctx context.Context, keys []string, cfg Config) (*models.ActionResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name, _ := ParseName(string(cfg.Name))
	cfg.Name = name

	if !cfg.DryRun && p.store == nil {
		return nil, errors.New("a store client is required unless running in dry-run mode")
	}

	p.logger.Info("Invoking action", "action", name, "dry_run", cfg.DryRun, "keys", len(keys))

	switch name {
	case Delete:
		return p.delete(ctx, keys, cfg)
	default:
		return p.rename(ctx, keys, cfg)
	}
}
