// Package postgres implements core.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bridgetrack/bridgetrack/internal/config"
	"github.com/bridgetrack/bridgetrack/internal/core"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool

	selectCols string
	insertSQL  string
	updateSQL  string
}

// Open connects a pool using cfg and ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	if _, err := pool.Exec(ctx, schema()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func schema() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS bridges (\n")
	b.WriteString("  id  BIGSERIAL PRIMARY KEY,\n")
	b.WriteString("  bin TEXT NOT NULL UNIQUE,\n")
	b.WriteString("  lat DOUBLE PRECISION NOT NULL DEFAULT 0,\n")
	b.WriteString("  lon DOUBLE PRECISION NOT NULL DEFAULT 0")
	for _, k := range core.TextKeys() {
		fmt.Fprintf(&b, ",\n  %s TEXT NOT NULL DEFAULT ''", k)
	}
	b.WriteString("\n)")
	return b.String()
}

// New wraps an existing pool. The schema is assumed to exist.
func New(pool *pgxpool.Pool) *Store {
	cols := append([]string{"bin", "lat", "lon"}, core.TextKeys()...)

	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	sets := make([]string, 0, len(cols)-1)
	for i, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+2))
	}

	return &Store{
		pool:       pool,
		selectCols: strings.Join(cols, ", "),
		insertSQL:  "INSERT INTO bridges (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(params, ", ") + ")",
		updateSQL:  "UPDATE bridges SET " + strings.Join(sets, ", ") + " WHERE bin = $1",
	}
}

func scanDest(b *core.Bridge) []any {
	dest := []any{&b.BIN, &b.Lat, &b.Lon}
	for _, k := range core.TextKeys() {
		dest = append(dest, b.Text(k))
	}
	return dest
}

// args returns values in column order; both statements bind bin as $1.
func args(b *core.Bridge) []any {
	vals := []any{b.BIN, b.Lat, b.Lon}
	for _, k := range core.TextKeys() {
		vals = append(vals, *b.Text(k))
	}
	return vals
}

func (s *Store) List(ctx context.Context) ([]core.Bridge, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+s.selectCols+" FROM bridges ORDER BY id")
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

func (s *Store) get(ctx context.Context, q DBTX, bin, suffix string) (core.Bridge, error) {
	var b core.Bridge
	err := q.QueryRow(ctx, "SELECT "+s.selectCols+" FROM bridges WHERE bin = $1"+suffix, bin).Scan(scanDest(&b)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Bridge{}, core.ErrNotFound
	}
	return b, err
}

func (s *Store) Get(ctx context.Context, bin string) (core.Bridge, error) {
	return s.get(ctx, s.pool, bin, "")
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM bridges").Scan(&n)
	return n, err
}

func (s *Store) Insert(ctx context.Context, b core.Bridge) error {
	_, err := s.pool.Exec(ctx, s.insertSQL, args(&b)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert %s: %w", b.BIN, core.ErrConflict)
	}
	return err
}

func (s *Store) Update(ctx context.Context, b core.Bridge) error {
	tag, err := s.pool.Exec(ctx, s.updateSQL, args(&b)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, bin string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM bridges WHERE bin = $1", bin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Upsert locks the existing row, if any, and merges u into it.
func (s *Store) Upsert(ctx context.Context, bin string, u core.Update) (core.Bridge, bool, error) {
	var (
		b       core.Bridge
		created bool
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		b, err = s.get(ctx, tx, bin, " FOR UPDATE")
		switch {
		case errors.Is(err, core.ErrNotFound):
			b = core.Bridge{BIN: bin}
			u.Apply(&b)
			created = true
			_, err = tx.Exec(ctx, s.insertSQL, args(&b)...)
		case err == nil:
			u.Apply(&b)
			_, err = tx.Exec(ctx, s.updateSQL, args(&b)...)
		}
		return err
	})
	if err != nil {
		return core.Bridge{}, false, err
	}
	return b, created, nil
}

func (s *Store) Clear(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM bridges")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
