// Package finder discovers the objects an action will operate on, either by
// paging through a bucket listing or by reading a previously written match list.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"s3keyfinder/internal/audit"
	"s3keyfinder/internal/models"
	"s3keyfinder/pkg/utils"
)

const (
	SourceS3   = "s3"
	SourceFile = "file"
)

// Lister is the part of the store the finder needs.
type Lister interface {
	ListPage(ctx context.Context, bucket, continuationToken string) (*models.ObjectPage, error)
}

type Options struct {
	Bucket     string
	MinSize    int64
	MaxSize    int64
	KeyPattern string
	SourceFile string

	// MaxRetries is the retry budget for failed page requests, shared by the whole listing.
	MaxRetries int
	RetryDelay time.Duration
	Workers    int
}

func (o *Options) applyDefaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
}

type Result struct {
	Matches *MatchSet
	// FilePath is the find audit file; empty when matches came from a source file.
	FilePath string
	Source   string
}

type Finder struct {
	lister Lister
	writer *audit.Writer
	filter *Filter
	opts   Options
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// New validates opts and returns a Finder. lister may be nil when opts.SourceFile is set.
func New(lister Lister, writer *audit.Writer, opts Options, logger *slog.Logger) (*Finder, error) {
	opts.applyDefaults()

	filter, err := NewFilter(opts.MinSize, opts.MaxSize, opts.KeyPattern)
	if err != nil {
		return nil, err
	}

	if opts.SourceFile == "" {
		if lister == nil {
			return nil, errors.New("a store client is required when no source file is configured")
		}
		if opts.Bucket == "" {
			return nil, errors.New("bucket name is required")
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Finder{
		lister: lister,
		writer: writer,
		filter: filter,
		opts:   opts,
		logger: logger,
		sleep:  sleepContext,
	}, nil
}

func (f *Finder) Find(ctx context.Context) (*Result, error) {
	if f.opts.SourceFile != "" {
		f.logger.Info("Reading keys from source file", "path", f.opts.SourceFile)

		matches, err := readSourceFile(f.opts.SourceFile)
		if err != nil {
			return nil, err
		}

		f.logger.Info("Loaded keys from source file", "count", matches.Len())
		return &Result{Matches: matches, Source: SourceFile}, nil
	}

	matches, err := f.FindInBucket(ctx)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Writing results to CSV", "matches", matches.Len())
	path, err := f.writer.WriteRows(audit.KindFind, audit.FindHeader, recordRows(matches.Records()))
	if err != nil {
		return nil, fmt.Errorf("failed to write find results: %w", err)
	}

	return &Result{Matches: matches, FilePath: path, Source: SourceS3}, nil
}

// FindInBucket pages through the bucket and collects matching objects.
// Page failures are retried on a fixed schedule; once the retry budget is spent
// the listing stops and whatever was collected is returned without error.
func (f *Finder) FindInBucket(ctx context.Context) (*MatchSet, error) {
	f.logger.Info("File key filter criteria",
		"min_size", utils.FormatBound(f.filter.MinSize),
		"max_size", utils.FormatBound(f.filter.MaxSize),
		"key_pattern", f.filter.Pattern(),
	)

	matches := NewMatchSet()
	retries := newRetryPolicy(f.opts.MaxRetries, f.opts.RetryDelay)
	token := ""

	for {
		f.logger.Info("Fetching object list")
		if token != "" {
			f.logger.Debug("Continuing listing", "continuation_token", token)
		}

		page, err := f.lister.ListPage(ctx, f.opts.Bucket, token)
		if err != nil {
			remaining := retries.left()
			delay, ok := retries.next()
			if !ok {
				f.logger.Error("0 retry attempts remaining, aborting listing",
					"error", err, "matches", matches.Len())
				return matches, nil
			}

			f.logger.Error("Error occurred while fetching object list",
				"error", err, "code", errorCode(err), "retries_remaining", remaining)
			f.logger.Warn("Delaying before next attempt", "delay", delay)

			if err := f.sleep(ctx, delay); err != nil {
				return matches, err
			}
			continue
		}

		f.logger.Info("Found objects", "count", len(page.Objects))

		found, err := f.collect(page.Objects, matches)
		if err != nil {
			return matches, err
		}
		f.logger.Info("Found objects matching filter criteria", "count", found)

		if !page.HasMore || page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	return matches, nil
}

// collect evaluates one page concurrently and merges the hits into matches.
func (f *Finder) collect(objects []models.ObjectSummary, matches *MatchSet) (int, error) {
	hits := make([]bool, len(objects))

	var g errgroup.Group
	g.SetLimit(f.opts.Workers)
	for i, obj := range objects {
		i, obj := i, obj
		g.Go(func() error {
			if f.filter.IsMatch(obj) {
				hits[i] = true
				matches.Put(obj.Key, obj.Size)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	found := 0
	for _, hit := range hits {
		if hit {
			found++
		}
	}
	return found, nil
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
