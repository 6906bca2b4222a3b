package finder

import (
	"fmt"
	"regexp"

	"s3keyfinder/internal/models"
)

// IsMatch reports whether obj falls within [minSize, maxSize] and its key
// contains a match for pattern. Negative bounds and a nil pattern are ignored.
func IsMatch(obj models.ObjectSummary, minSize, maxSize int64, pattern *regexp.Regexp) bool {
	if minSize >= 0 && obj.Size < minSize {
		return false
	}
	if maxSize >= 0 && obj.Size > maxSize {
		return false
	}
	if pattern != nil && !pattern.MatchString(obj.Key) {
		return false
	}
	return true
}

// Filter holds compiled match criteria. It is safe for concurrent use.
type Filter struct {
	MinSize int64
	MaxSize int64
	pattern *regexp.Regexp
}

func NewFilter(minSize, maxSize int64, keyPattern string) (*Filter, error) {
	f := &Filter{
		MinSize: minSize,
		MaxSize: maxSize,
	}

	if keyPattern != "" {
		re, err := regexp.Compile(keyPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid key pattern %q: %w", keyPattern, err)
		}
		f.pattern = re
	}

	return f, nil
}

func (f *Filter) IsMatch(obj models.ObjectSummary) bool {
	return IsMatch(obj, f.MinSize, f.MaxSize, f.pattern)
}

func (f *Filter) Pattern() string {
	if f.pattern == nil {
		return ""
	}
	return f.pattern.String()
}
