// Package mirror maintains the flat-file copy of the ticket store. The
// CSV files are both a fallback read path when the record store is down
// and an audit artifact operators pull directly, so the on-disk format is
// a contract: a fixed header row, every value wrapped in double quotes,
// embedded quotes doubled.
package mirror

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row is one parsed CSV record keyed by header column name.
type Row map[string]string

// quoteField wraps a value in double quotes, doubling embedded quotes.
// encoding/csv only quotes on demand, which would break the file contract.
func quoteField(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func formatLine(values []string) string {
	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = quoteField(value)
	}
	return strings.Join(quoted, ",") + "\n"
}

// appendLine appends one record, creating the file with its header first
// when absent.
func appendLine(path string, header []string, values []string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte(formatLine(header)), 0o644); err != nil {
			return fmt.Errorf("create mirror file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("stat mirror file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open mirror file: %w", err)
	}
	defer f.Close() //nolint:errcheck
	if _, err := f.WriteString(formatLine(values)); err != nil {
		return fmt.Errorf("append mirror row: %w", err)
	}
	return nil
}

// readRows parses the whole file. The first line is the header. Malformed
// records are skipped and short records null-filled so one bad row never
// aborts the read.
func readRows(path string) ([]string, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open mirror file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read mirror header: %w", err)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return header, rows, fmt.Errorf("read mirror row: %w", err)
		}
		row := make(Row, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			} else {
				row[column] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// writeRows rewrites the whole file for the given header order. This is a
// plain read-modify-write; a crash mid-write can corrupt the file, which
// is a known limitation of the mirror.
func writeRows(path string, header []string, rows []Row) error {
	buf := &bytes.Buffer{}
	buf.WriteString(formatLine(header))
	values := make([]string, len(header))
	for _, row := range rows {
		for i, column := range header {
			values[i] = row[column]
		}
		buf.WriteString(formatLine(values))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("rewrite mirror file: %w", err)
	}
	return nil
}
