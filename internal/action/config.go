package action

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Name string

const (
	Delete Name = "DELETE"
	Rename Name = "RENAME"
)

const (
	DefaultBatchSize  = 100
	DefaultBatchDelay = time.Second
)

// Settings keys understood by the RENAME action.
const (
	SettingFind           = "find"
	SettingReplace        = "replace"
	SettingDeleteSource   = "deleteSource"
	SettingMaxConcurrency = "maxConcurrency"
)

// ParseName accepts action names case-insensitively.
func ParseName(s string) (Name, error) {
	switch Name(strings.ToUpper(strings.TrimSpace(s))) {
	case Delete:
		return Delete, nil
	case Rename:
		return Rename, nil
	default:
		return "", fmt.Errorf("action not supported: %q", s)
	}
}

type Config struct {
	Name      Name
	DryRun    bool
	BatchSize int
	Settings  map[string]string

	// BatchDelay is the pause between consecutive batches. Zero disables pacing.
	BatchDelay time.Duration
}

func (c Config) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

func (c Config) setting(key string) (string, bool) {
	v, ok := c.Settings[key]
	return v, ok
}

// DeleteSource reports whether a RENAME should be followed by deleting the source keys.
func (c Config) DeleteSource() (bool, error) {
	v, ok := c.setting(SettingDeleteSource)
	if !ok || strings.TrimSpace(v) == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid %s setting %q: %w", SettingDeleteSource, v, err)
	}
	return b, nil
}

// MaxConcurrency bounds concurrent copies within a batch; 0 means one per key.
func (c Config) MaxConcurrency() (int, error) {
	v, ok := c.setting(SettingMaxConcurrency)
	if !ok || strings.TrimSpace(v) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s setting %q", SettingMaxConcurrency, v)
	}
	return n, nil
}

// Validate checks everything that can be checked before touching the store.
func (c Config) Validate() error {
	name, err := ParseName(string(c.Name))
	if err != nil {
		return err
	}

	if name != Rename {
		return nil
	}

	if _, err := NewRenamer(c.Settings); err != nil {
		return err
	}
	if _, err := c.DeleteSource(); err != nil {
		return err
	}
	if _, err := c.MaxConcurrency(); err != nil {
		return err
	}
	return nil
}
