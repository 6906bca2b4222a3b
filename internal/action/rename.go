package action

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"golang.org/x/sync/errgroup"

	"s3keyfinder/internal/audit"
	"s3keyfinder/internal/models"
)

// Renamer derives a new key by regular-expression replacement.
type Renamer struct {
	find    *regexp.Regexp
	replace string
}

func NewRenamer(settings map[string]string) (*Renamer, error) {
	find, ok := settings[SettingFind]
	if !ok || find == "" {
		return nil, fmt.Errorf("RENAME requires a %q setting", SettingFind)
	}
	replace, ok := settings[SettingReplace]
	if !ok {
		return nil, fmt.Errorf("RENAME requires a %q setting", SettingReplace)
	}

	re, err := regexp.Compile(find)
	if err != nil {
		return nil, fmt.Errorf("invalid %s pattern %q: %w", SettingFind, find, err)
	}

	return &Renamer{find: re, replace: replace}, nil
}

// Target returns key unchanged when the pattern does not match.
func (r *Renamer) Target(key string) string {
	return r.find.ReplaceAllString(key, r.replace)
}

// mappingSet keeps mappings in insertion order, unique by source key.
type mappingSet struct {
	seen     map[string]bool
	mappings []models.RenameMapping
}

func newMappingSet() *mappingSet {
	return &mappingSet{seen: make(map[string]bool)}
}

func (s *mappingSet) add(m models.RenameMapping) {
	if s.seen[m.Source] {
		return
	}
	s.seen[m.Source] = true
	s.mappings = append(s.mappings, m)
}

func (s *mappingSet) rows() [][]string {
	rows := make([][]string, 0, len(s.mappings))
	for _, m := range s.mappings {
		rows = append(rows, []string{m.Source, m.Target})
	}
	return rows
}

// copiedSources lists the sources that now have a copy under a different key.
func (s *mappingSet) copiedSources() []string {
	keys := make([]string, 0, len(s.mappings))
	for _, m := range s.mappings {
		if !m.IsIdentity() {
			keys = append(keys, m.Source)
		}
	}
	return keys
}

type copyOutcome struct {
	mapping models.RenameMapping
	ok      bool
}

func (p *Pipeline) rename(ctx context.Context, keys []string, cfg Config) (*models.ActionResult, error) {
	renamer, err := NewRenamer(cfg.Settings)
	if err != nil {
		return nil, err
	}
	limit, err := cfg.MaxConcurrency()
	if err != nil {
		return nil, err
	}

	result := &models.ActionResult{Action: string(Rename), DryRun: cfg.DryRun, Requested: len(keys)}
	copies := newMappingSet()
	pace := newPacer(cfg.BatchDelay)

	var runErr error
	for i, batch := range Batches(keys, cfg.batchSize()) {
		if err := pace.wait(ctx); err != nil {
			runErr = err
			break
		}

		batchNumber := i + 1
		p.logger.Info("Renaming batch", "batch", batchNumber, "keys", len(batch))

		if cfg.DryRun {
			for _, key := range batch {
				copies.add(models.RenameMapping{Source: key, Target: renamer.Target(key)})
			}
		} else {
			for _, outcome := range p.copyBatch(ctx, batch, renamer, limit) {
				if outcome.ok {
					copies.add(outcome.mapping)
				} else {
					result.Failed++
				}
			}
		}

		p.logger.Info("Batch renamed", "batch", batchNumber)
	}

	result.Succeeded = len(copies.mappings)
	if result.Failed > 0 {
		p.logger.Error("Failed to copy objects", "count", result.Failed)
	}

	p.logger.Info("Writing renames to CSV", "mappings", len(copies.mappings))
	path, err := p.writer.WriteRows(audit.KindRename, audit.RenameHeader, copies.rows())
	if err != nil {
		return nil, fmt.Errorf("failed to write rename results: %w", err)
	}
	result.AuditFile = path

	if runErr != nil {
		return result, runErr
	}

	deleteSource, err := cfg.DeleteSource()
	if err != nil {
		return result, err
	}
	if deleteSource {
		sources := copies.copiedSources()
		p.logger.Info("Deleting renamed source objects", "count", len(sources))

		chained, err := p.delete(ctx, sources, cfg)
		result.Chained = chained
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// copyBatch issues the copies for one batch concurrently. Identity renames are
// reported as successful without a store call.
func (p *Pipeline) copyBatch(ctx context.Context, batch []string, renamer *Renamer, limit int) []copyOutcome {
	outcomes := make([]copyOutcome, len(batch))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, key := range batch {
		i := i
		mapping := models.RenameMapping{Source: key, Target: renamer.Target(key)}
		outcomes[i].mapping = mapping

		if mapping.IsIdentity() {
			outcomes[i].ok = true
			continue
		}

		g.Go(func() error {
			resp, err := p.store.CopyObject(ctx, p.bucket, mapping.Source, p.bucket, mapping.Target)
			if err != nil {
				p.logger.Debug("Copy failed", "key", mapping.Source, "target", mapping.Target, "error", err)
				return nil
			}
			outcomes[i].ok = resp != nil &&
				(resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}
