// Package testutil provides an in-memory store for tests.
package testutil

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"s3keyfinder/internal/models"
)

// MockStore implements the store capability. Each operation can be overridden
// through its Func field; every call is recorded.
type MockStore struct {
	ListPageFunc   func(ctx context.Context, bucket, token string) (*models.ObjectPage, error)
	BulkDeleteFunc func(ctx context.Context, bucket string, keys []string) (*models.BulkDeleteResult, error)
	CopyObjectFunc func(ctx context.Context, bucket, srcKey, destBucket, destKey string) (*models.CopyResult, error)

	mu          sync.Mutex
	ListTokens  []string
	DeleteCalls [][]string
	CopyCalls   []models.RenameMapping
}

func (m *MockStore) ListPage(ctx context.Context, bucket, token string) (*models.ObjectPage, error) {
	m.mu.Lock()
	m.ListTokens = append(m.ListTokens, token)
	m.mu.Unlock()

	if m.ListPageFunc != nil {
		return m.ListPageFunc(ctx, bucket, token)
	}
	return &models.ObjectPage{}, nil
}

// BulkDelete confirms every key unless BulkDeleteFunc is set.
func (m *MockStore) BulkDelete(ctx context.Context, bucket string, keys []string) (*models.BulkDeleteResult, error) {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, append([]string(nil), keys...))
	m.mu.Unlock()

	if m.BulkDeleteFunc != nil {
		return m.BulkDeleteFunc(ctx, bucket, keys)
	}
	return &models.BulkDeleteResult{DeletedKeys: append([]string(nil), keys...)}, nil
}

// CopyObject answers 200 OK unless CopyObjectFunc is set.
func (m *MockStore) CopyObject(ctx context.Context, bucket, srcKey, destBucket, destKey string) (*models.CopyResult, error) {
	m.mu.Lock()
	m.CopyCalls = append(m.CopyCalls, models.RenameMapping{Source: srcKey, Target: destKey})
	m.mu.Unlock()

	if m.CopyObjectFunc != nil {
		return m.CopyObjectFunc(ctx, bucket, srcKey, destBucket, destKey)
	}
	return &models.CopyResult{StatusCode: http.StatusOK}, nil
}

func (m *MockStore) MutatingCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.DeleteCalls) + len(m.CopyCalls)
}

// PagedListing serves pages in order, using the page index as the continuation token.
func PagedListing(pages ...[]models.ObjectSummary) func(context.Context, string, string) (*models.ObjectPage, error) {
	return func(_ context.Context, _ string, token string) (*models.ObjectPage, error) {
		idx := 0
		if token != "" {
			for i := range pages {
				if pageToken(i) == token {
					idx = i
					break
				}
			}
		}

		page := &models.ObjectPage{}
		if idx < len(pages) {
			page.Objects = pages[idx]
		}
		if idx+1 < len(pages) {
			page.HasMore = true
			page.NextToken = pageToken(idx + 1)
		}
		return page, nil
	}
}

func pageToken(i int) string {
	return "page-" + strconv.Itoa(i)
}
