package sheet

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewTextReader decodes spreadsheet text exports to clean UTF-8. A UTF-8
// or UTF-16 byte order mark selects the encoding and is dropped; without
// one the input is read as UTF-8. Invalid bytes become U+FFFD.
func NewTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// OpenCSV streams comma-separated records from r.
func OpenCSV(r io.Reader) (*Source, error) {
	cr := csv.NewReader(NewTextReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	return newSource(cr.Read, nil)
}
