package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/catalogit/core"
)

// DefaultMaxConsecutiveMalformed bounds how many malformed lines in a row
// are tolerated before the file is considered unreadable.
const DefaultMaxConsecutiveMalformed = 1000

// ReadResult is the outcome of reading a catalog table.
type ReadResult struct {
	Header []string
	Rows   []core.RawRow
	// Malformed counts records the parser rejected or that carried more
	// fields than the header. They are skipped.
	Malformed int
	// Truncated is set when reading stopped at the record cap.
	Truncated bool
}

// ReadCSV reads a header row and up to maxRecords data rows from r.
// maxRecords <= 0 means no cap. Records the parser rejects, and records with
// more fields than the header, are counted as malformed and skipped; any
// other read error is returned. A row's Index is its position among all data
// records, malformed ones included, so a skipped record never shifts the
// index of the rows after it.
func ReadCSV(ctx context.Context, r io.Reader, maxRecords, maxConsecutiveMalformed int) (*ReadResult, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrRead, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	result := &ReadResult{Header: header}
	consecutive := 0
	for {
		if len(result.Rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if maxRecords > 0 && len(result.Rows) >= maxRecords {
			result.Truncated = true
			break
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		index := len(result.Rows) + result.Malformed

		var parseErr *csv.ParseError
		if err == nil && len(record) > len(header) {
			line, _ := reader.FieldPos(0)
			parseErr = &csv.ParseError{StartLine: line, Line: line, Err: csv.ErrFieldCount}
			err = parseErr
		}
		if errors.As(err, &parseErr) {
			result.Malformed++
			consecutive++
			if maxConsecutiveMalformed > 0 && consecutive > maxConsecutiveMalformed {
				return nil, fmt.Errorf("%w: line %d: %w", ErrTooManyMalformed, parseErr.Line, err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRead, err)
		}
		consecutive = 0

		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				fields[col] = record[i]
			}
		}
		result.Rows = append(result.Rows, core.RawRow{Index: index, Fields: fields})
	}

	return result, nil
}
