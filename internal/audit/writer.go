// Package audit writes the per-run CSV files that record what a run found or changed.
//
// Files are named <runID>_<kind>.csv and are always created fresh: an existing
// file with the same name is an error, never overwritten.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	KindFind   = "find"
	KindDelete = "delete"
	KindRename = "rename"
)

var (
	FindHeader   = []string{"key", "size"}
	RenameHeader = []string{"old", "new"}
)

// NewRunID returns an identifier unique to this process invocation.
func NewRunID() string {
	return uuid.NewString()
}

type Writer struct {
	dir   string
	runID string
}

func NewWriter(dir, runID string) *Writer {
	if dir == "" {
		dir = "."
	}
	return &Writer{
		dir:   dir,
		runID: runID,
	}
}

func (w *Writer) RunID() string {
	return w.runID
}

func (w *Writer) Path(kind string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.csv", w.runID, kind))
}

// WriteRows writes the audit file for kind and returns its path.
func (w *Writer) WriteRows(kind string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", w.dir, err)
	}

	path := w.Path(kind)
	if err := WriteRows(path, header, rows); err != nil {
		return "", err
	}
	return path, nil
}

// WriteRows creates path, which must not exist, and writes an optional header
// followed by rows. A failed write leaves no file behind.
func WriteRows(path string, header []string, rows [][]string) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit file %s: %w", path, err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close audit file %s: %w", path, closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	writer := csv.NewWriter(file)
	if len(header) > 0 {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows to %s: %w", path, err)
	}

	return nil
}
