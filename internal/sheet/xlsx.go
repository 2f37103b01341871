package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/bridgetrack/bridgetrack/internal/core"
)

// OpenXLSX reads the first worksheet of an Excel workbook.
//
// Cells are taken as displayed, except coordinate columns, which use the
// raw stored number so a display format like "0.00" cannot truncate them.
func OpenXLSX(r io.Reader) (*Source, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("read spreadsheet: workbook has no sheets")
	}
	name := sheets[0]

	display, err := f.GetRows(name)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read spreadsheet %s: %w", name, err)
	}
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read spreadsheet %s: %w", name, err)
	}

	var (
		i      int
		coords map[int]bool
	)
	next := func() ([]string, error) {
		if i >= len(display) {
			return nil, io.EOF
		}
		rec := display[i]
		if coords != nil && i < len(raw) {
			rec = withRawCoords(rec, raw[i], coords)
		}
		i++
		return rec, nil
	}

	src, err := newSource(next, f.Close)
	if err != nil {
		return nil, err
	}
	coords = coordColumns(src.Header())
	return src, nil
}

// coordColumns returns the indexes of latitude and longitude columns.
func coordColumns(header []string) map[int]bool {
	cols := make(map[int]bool)
	for i, label := range header {
		if key, ok := core.LookupColumn(label); ok && (key == "lat" || key == "lon") {
			cols[i] = true
		}
	}
	return cols
}

func withRawCoords(display, raw []string, coords map[int]bool) []string {
	out := make([]string, len(display))
	copy(out, display)
	for i := range coords {
		if i < len(out) && i < len(raw) {
			out[i] = raw[i]
		}
	}
	return out
}
