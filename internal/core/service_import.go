package core

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/bridgetrack/bridgetrack/internal/logging"
)

// Row is one spreadsheet row: column label to raw cell value. Cells may be
// strings, numbers, bools, time.Time or nil.
type Row map[string]any

// ImportOptions controls a bulk import.
type ImportOptions struct {
	// ClearExisting empties the store before the first row.
	ClearExisting bool
	// DryRun classifies rows without writing anything or emitting events.
	DryRun bool
	// Source names the input in logs, typically the file name.
	Source string
}

// ImportResult reports the outcome of a bulk import. It is also the
// payload of the bulk_imported event.
type ImportResult struct {
	ImportID   string `json:"importId"`
	Success    bool   `json:"success"`
	Imported   int    `json:"imported"`
	Updated    int    `json:"updated"`
	Errors     int    `json:"errors"`
	Rows       int    `json:"rows"`
	Cleared    int64  `json:"cleared"`
	DryRun     bool   `json:"dryRun,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// Import upserts every row of rows into the store.
//
// Rows without a BIN are counted as errors and skipped. Blank cells leave
// stored values untouched and unparsable coordinates become 0.0. A store
// failure, a read error from rows, or cancellation of ctx aborts the run:
// the returned result has Success false and the error is returned too.
//
// One bulk_imported event is emitted after a completed run, and after an
// aborted run that had already changed the store.
func (s *Service) Import(ctx context.Context, rows iter.Seq2[Row, error], opts ImportOptions) (ImportResult, error) {
	res := ImportResult{ImportID: uuid.NewString(), DryRun: opts.DryRun}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			res.Error = MapError(err).Message
			return res, err
		}
		defer s.limiter.Release()
	}

	ctx, cancel := context.WithTimeout(ctx, ImportTimeout)
	defer cancel()

	logger := logging.WithFields(ctx, "import_id", res.ImportID, "source", opts.Source)
	logger.Info("import started", "clear_existing", opts.ClearExisting, "dry_run", opts.DryRun)

	start := time.Now()
	changed := false

	abort := func(err error) (ImportResult, error) {
		res.DurationMs = time.Since(start).Milliseconds()
		res.Success = false
		res.Error = MapError(err).Message
		if changed {
			s.mu.Lock()
			s.notify(EventBulkImported, res)
			s.mu.Unlock()
		}
		logger.Error("import aborted",
			"error", err,
			"rows", res.Rows,
			"imported", res.Imported,
			"updated", res.Updated,
		)
		return res, err
	}

	if opts.ClearExisting {
		n, err := s.clear(ctx, opts.DryRun)
		if err != nil {
			return abort(err)
		}
		res.Cleared = n
		changed = n > 0 && !opts.DryRun
	}

	resolver := newColumnResolver()
	// BINs already seen during a dry run, so repeats count as updates.
	var seen map[string]bool
	if opts.DryRun {
		seen = make(map[string]bool)
	}

	for row, err := range rows {
		if err != nil {
			return abort(fmt.Errorf("read spreadsheet: %w", err))
		}
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		res.Rows++

		bin, u := resolver.mapRow(row)
		if bin == "" {
			res.Errors++
			continue
		}

		if opts.DryRun {
			created, err := s.wouldCreate(ctx, bin, seen, opts.ClearExisting)
			if err != nil {
				return abort(err)
			}
			if created {
				res.Imported++
			} else {
				res.Updated++
			}
			continue
		}

		s.mu.Lock()
		_, created, err := s.store.Upsert(ctx, bin, u)
		s.mu.Unlock()
		if err != nil {
			err = classify("import", bin, err)
			if errors.Is(err, ErrStoreUnavailable) {
				return abort(err)
			}
			logger.Warn("import row rejected", "bin", bin, "row", res.Rows, "error", err)
			res.Errors++
			continue
		}

		changed = true
		if created {
			res.Imported++
		} else {
			res.Updated++
		}
	}

	res.Success = true
	res.DurationMs = time.Since(start).Milliseconds()

	if !opts.DryRun {
		s.mu.Lock()
		s.notify(EventBulkImported, res)
		s.mu.Unlock()
	}

	logger.Info("import completed",
		"rows", res.Rows,
		"imported", res.Imported,
		"updated", res.Updated,
		"errors", res.Errors,
		"duration_ms", res.DurationMs,
	)
	return res, nil
}

// clear empties the store under the mutation lock. A dry run only counts.
func (s *Service) clear(ctx context.Context, dryRun bool) (int64, error) {
	if dryRun {
		n, err := s.store.Count(ctx)
		return n, classify("clear", "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.store.Clear(ctx)
	return n, classify("clear", "", err)
}

func (s *Service) wouldCreate(ctx context.Context, bin string, seen map[string]bool, cleared bool) (bool, error) {
	if seen[bin] {
		return false, nil
	}
	seen[bin] = true
	if cleared {
		return true, nil
	}
	_, err := s.store.Get(ctx, bin)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrNotFound):
		return true, nil
	default:
		return false, classify("import", bin, err)
	}
}

// columnIndex maps folded column labels to field keys.
var columnIndex = func() map[string]string {
	fold := cases.Fold()
	m := map[string]string{
		foldLabel(fold, "bin"):        "bin",
		foldLabel(fold, "BIN Number"): "bin",
	}
	for _, f := range Fields {
		m[foldLabel(fold, f.Key)] = f.Key
		m[foldLabel(fold, f.Label)] = f.Key
		for _, a := range f.Alias {
			m[foldLabel(fold, a)] = f.Key
		}
	}
	return m
}()

func foldLabel(c cases.Caser, label string) string {
	return c.String(strings.Join(strings.Fields(label), " "))
}

// LookupColumn resolves a spreadsheet column label to a field key ("bin"
// for the key column). Case and extra whitespace are ignored.
func LookupColumn(label string) (string, bool) {
	key, ok := columnIndex[foldLabel(cases.Fold(), label)]
	return key, ok
}

// columnResolver caches label lookups for one import. A Caser is not safe
// for concurrent use, so each import owns one.
type columnResolver struct {
	fold  cases.Caser
	cache map[string]string
}

func newColumnResolver() *columnResolver {
	return &columnResolver{fold: cases.Fold(), cache: make(map[string]string)}
}

func (r *columnResolver) lookup(label string) string {
	if key, ok := r.cache[label]; ok {
		return key
	}
	key := columnIndex[foldLabel(r.fold, label)]
	r.cache[label] = key
	return key
}

// mapRow extracts the BIN and the non-blank known fields of row. Labels
// are visited in sorted order so duplicate columns resolve the same way
// on every run.
func (r *columnResolver) mapRow(row Row) (string, Update) {
	var (
		bin string
		u   Update
	)
	for _, label := range slices.Sorted(maps.Keys(row)) {
		key := r.lookup(label)
		if key == "" {
			continue
		}
		text := cellText(row[label])
		if text == "" {
			continue
		}
		switch key {
		case "bin":
			bin = text
		case "lat":
			v := tolerantCoord(text)
			u.Lat = &v
		case "lon":
			v := tolerantCoord(text)
			u.Lon = &v
		default:
			u.SetText(key, text)
		}
	}
	return bin, u
}

// cellText renders a raw cell as trimmed text.
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format(time.DateOnly)
	}
	if s, ok := scalarText(v); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// tolerantCoord parses a coordinate cell, falling back to 0.0.
func tolerantCoord(text string) float64 {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
