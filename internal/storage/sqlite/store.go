// Package sqlite implements core.Store on a single-file SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/bridgetrack/bridgetrack/internal/core"
)

// Store is a core.Store backed by database/sql and modernc.org/sqlite.
type Store struct {
	db *sql.DB

	selectCols string
	insertSQL  string
	updateSQL  string
}

// Open opens (creating if needed) the database file at path and ensures
// the schema exists. WAL mode lets readers run while an import writes.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return newStore(db), nil
}

func schema() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS bridges (\n")
	b.WriteString("  id  INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	b.WriteString("  bin TEXT NOT NULL UNIQUE,\n")
	b.WriteString("  lat REAL NOT NULL DEFAULT 0,\n")
	b.WriteString("  lon REAL NOT NULL DEFAULT 0")
	for _, k := range core.TextKeys() {
		fmt.Fprintf(&b, ",\n  %s TEXT NOT NULL DEFAULT ''", k)
	}
	b.WriteString("\n)")
	return b.String()
}

func columns() []string {
	return append([]string{"bin", "lat", "lon"}, core.TextKeys()...)
}

func newStore(db *sql.DB) *Store {
	cols := columns()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, c+" = ?")
	}

	return &Store{
		db:         db,
		selectCols: strings.Join(cols, ", "),
		insertSQL: "INSERT INTO bridges (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders +
			") ON CONFLICT(bin) DO NOTHING",
		updateSQL: "UPDATE bridges SET " + strings.Join(sets, ", ") + " WHERE bin = ?",
	}
}

// scanDest returns scan targets in column order.
func scanDest(b *core.Bridge) []any {
	dest := []any{&b.BIN, &b.Lat, &b.Lon}
	for _, k := range core.TextKeys() {
		dest = append(dest, b.Text(k))
	}
	return dest
}

// values returns insert arguments in column order.
func values(b *core.Bridge) []any {
	vals := []any{b.BIN, b.Lat, b.Lon}
	for _, k := range core.TextKeys() {
		vals = append(vals, *b.Text(k))
	}
	return vals
}

// updateArgs returns the SET arguments followed by the WHERE bin.
func updateArgs(b *core.Bridge) []any {
	vals := values(b)
	return append(vals[1:], b.BIN)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) List(ctx context.Context) ([]core.Bridge, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+s.selectCols+" FROM bridges ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Bridge
	for rows.Next() {
		var b core.Bridge
		if err := rows.Scan(scanDest(&b)...); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) get(ctx context.Context, q querier, bin string) (core.Bridge, error) {
	var b core.Bridge
	err := q.QueryRowContext(ctx, "SELECT "+s.selectCols+" FROM bridges WHERE bin = ?", bin).Scan(scanDest(&b)...)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bridge{}, core.ErrNotFound
	}
	return b, err
}

func (s *Store) Get(ctx context.Context, bin string) (core.Bridge, error) {
	return s.get(ctx, s.db, bin)
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bridges").Scan(&n)
	return n, err
}

func (s *Store) Insert(ctx context.Context, b core.Bridge) error {
	res, err := s.db.ExecContext(ctx, s.insertSQL, values(&b)...)
	if err != nil {
		return err
	}
	return expectOne(res, core.ErrConflict)
}

func (s *Store) Update(ctx context.Context, b core.Bridge) error {
	res, err := s.db.ExecContext(ctx, s.updateSQL, updateArgs(&b)...)
	if err != nil {
		return err
	}
	return expectOne(res, core.ErrNotFound)
}

func (s *Store) Delete(ctx context.Context, bin string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bridges WHERE bin = ?", bin)
	if err != nil {
		return err
	}
	return expectOne(res, core.ErrNotFound)
}

// Upsert reads, merges and writes one row inside a transaction.
func (s *Store) Upsert(ctx context.Context, bin string, u core.Update) (b core.Bridge, created bool, err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return core.Bridge{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err = s.get(ctx, tx, bin)
	switch {
	case errors.Is(err, core.ErrNotFound):
		b = core.Bridge{BIN: bin}
		u.Apply(&b)
		created = true
		_, err = tx.ExecContext(ctx, s.insertSQL, values(&b)...)
	case err == nil:
		u.Apply(&b)
		_, err = tx.ExecContext(ctx, s.updateSQL, updateArgs(&b)...)
	}
	if err != nil {
		return core.Bridge{}, false, err
	}

	if err = tx.Commit(); err != nil {
		return core.Bridge{}, false, err
	}
	return b, created, nil
}

func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bridges")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// expectOne maps zero affected rows to errNone.
func expectOne(res sql.Result, errNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNone
	}
	return nil
}
