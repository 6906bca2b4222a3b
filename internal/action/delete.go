package action

import (
	"context"
	"fmt"

	"s3keyfinder/internal/audit"
	"s3keyfinder/internal/models"
)

func (p *Pipeline) delete(ctx context.Context, keys []string, cfg Config) (*models.ActionResult, error) {
	result := &models.ActionResult{Action: string(Delete), DryRun: cfg.DryRun, Requested: len(keys)}
	var deleted []string
	pace := newPacer(cfg.BatchDelay)

	var runErr error
	for i, batch := range Batches(keys, cfg.batchSize()) {
		if err := pace.wait(ctx); err != nil {
			runErr = err
			break
		}

		batchNumber := i + 1
		p.logger.Info("Deleting batch", "batch", batchNumber, "keys", len(batch))

		if cfg.DryRun {
			deleted = append(deleted, batch...)
		} else {
			resp, err := p.store.BulkDelete(ctx, p.bucket, batch)
			if err != nil {
				p.logger.Error("Failed to delete batch", "batch", batchNumber, "error", err)
				result.Failed += len(batch)
				continue
			}
			if len(resp.Errors) > 0 {
				p.logger.Error("Failed to delete objects", "batch", batchNumber, "count", len(resp.Errors))
				result.Failed += len(resp.Errors)
			}
			deleted = append(deleted, resp.DeletedKeys...)
		}

		p.logger.Info("Batch deleted", "batch", batchNumber)
	}

	result.Succeeded = len(deleted)

	p.logger.Info("Writing deletes to CSV", "keys", len(deleted))
	rows := make([][]string, 0, len(deleted))
	for _, key := range deleted {
		rows = append(rows, []string{key})
	}
	path, err := p.writer.WriteRows(audit.KindDelete, nil, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to write delete results: %w", err)
	}
	result.AuditFile = path

	return result, runErr
}
