// Package sheet turns uploaded spreadsheets into core.Row sequences.
//
// CSV is streamed record by record. XLSX workbooks are read from the first
// sheet. In both formats the header row is located by searching the first
// MaxHeaderSearchRows rows for a BIN column, so title rows above the table
// are tolerated.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"github.com/bridgetrack/bridgetrack/internal/core"
)

// MaxHeaderSearchRows is the maximum number of rows scanned for the header.
var MaxHeaderSearchRows = 20

var (
	// ErrUnsupportedFormat is returned for file extensions other than CSV or XLSX.
	ErrUnsupportedFormat = errors.New("unsupported file type")
	// ErrNoHeader is returned when no row in the search window has a BIN column.
	ErrNoHeader = errors.New("read spreadsheet: no BIN header row found")
)

// Source is an opened spreadsheet positioned after its header row.
type Source struct {
	header []string
	next   func() ([]string, error)
	close  func() error
}

// Open picks a reader by the extension of name. The header row is located
// before Open returns, so a malformed file fails here rather than partway
// through an import.
func Open(name string, r io.Reader) (*Source, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return OpenCSV(r)
	case ".xlsx", ".xlsm":
		return OpenXLSX(r)
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, filepath.Ext(name))
}

// newSource consumes next up to and including the header row.
func newSource(next func() ([]string, error), closeFn func() error) (src *Source, err error) {
	defer func() {
		if err != nil && closeFn != nil {
			_ = closeFn()
		}
	}()

	for i := 0; i < MaxHeaderSearchRows; i++ {
		rec, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read spreadsheet: %w", err)
		}
		if hasBINColumn(rec) {
			return &Source{
				header: rec,
				next:   next,
				close:  closeFn,
			}, nil
		}
	}
	return nil, ErrNoHeader
}

func hasBINColumn(rec []string) bool {
	for _, cell := range rec {
		if key, ok := core.LookupColumn(cell); ok && key == "bin" {
			return true
		}
	}
	return false
}

// Header returns the detected header row.
func (s *Source) Header() []string {
	return s.header
}

// Rows yields one Row per data record. Records with no non-blank cell are
// skipped. Read errors are yielded once and end the sequence.
func (s *Source) Rows() iter.Seq2[core.Row, error] {
	return func(yield func(core.Row, error) bool) {
		for {
			rec, err := s.next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if isEmptyRecord(rec) {
				continue
			}
			if !yield(s.row(rec), nil) {
				return
			}
		}
	}
}

func (s *Source) row(rec []string) core.Row {
	row := make(core.Row, len(s.header))
	for i, label := range s.header {
		label = strings.TrimSpace(label)
		if label == "" || i >= len(rec) {
			continue
		}
		if _, dup := row[label]; dup {
			continue
		}
		row[label] = rec[i]
	}
	return row
}

// Close releases the underlying reader.
func (s *Source) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
