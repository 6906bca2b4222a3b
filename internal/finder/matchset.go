package finder

import (
	"slices"
	"strconv"
	"sync"

	"s3keyfinder/internal/models"
)

// MatchSet maps object keys to sizes. Inserts are safe from multiple goroutines.
type MatchSet struct {
	mu    sync.Mutex
	sizes map[string]int64
}

func NewMatchSet() *MatchSet {
	return &MatchSet{sizes: make(map[string]int64)}
}

// Put records key with size, replacing any earlier entry for key.
func (m *MatchSet) Put(key string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes[key] = size
}

func (m *MatchSet) Get(key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	size, ok := m.sizes[key]
	return size, ok
}

func (m *MatchSet) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sizes)
}

// Keys returns the keys in ascending order.
func (m *MatchSet) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.sizes))
	for key := range m.sizes {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Records returns the entries ordered by key.
func (m *MatchSet) Records() []models.KeyRecord {
	keys := m.Keys()

	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]models.KeyRecord, 0, len(keys))
	for _, key := range keys {
		records = append(records, models.KeyRecord{Key: key, Size: m.sizes[key]})
	}
	return records
}

// TotalSize sums the known sizes; unknown sizes are skipped.
func (m *MatchSet) TotalSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, size := range m.sizes {
		if size > 0 {
			total += size
		}
	}
	return total
}

func recordRows(records []models.KeyRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Key, strconv.FormatInt(r.Size, 10)})
	}
	return rows
}
