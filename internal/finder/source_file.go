package finder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"s3keyfinder/internal/models"
)

// readSourceFile loads a pre-computed match list of (key, optional size) rows.
// The find audit file is a valid input, header included.
func readSourceFile(path string) (*MatchSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer file.Close()

	return readRecords(file)
}

func readRecords(r io.Reader) (*MatchSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	matches := NewMatchSet()
	first := true

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read source file: %w", err)
		}

		if first {
			first = false
			if isHeader(row) {
				continue
			}
		}

		record, ok := parseKeyRecord(row)
		if !ok {
			continue
		}
		matches.Put(record.Key, record.Size)
	}

	return matches, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "key")
}

// parseKeyRecord tolerates a missing or malformed size by recording it as unknown.
func parseKeyRecord(row []string) (models.KeyRecord, bool) {
	if len(row) == 0 || row[0] == "" {
		return models.KeyRecord{}, false
	}

	record := models.KeyRecord{Key: row[0], Size: models.UnknownSize}
	if len(row) > 1 {
		if size, err := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 64); err == nil {
			record.Size = size
		}
	}
	return record, true
}
