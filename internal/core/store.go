package core

import "context"

// Store persists bridges keyed by BIN.
//
// Implementations must be safe for concurrent use and make every method
// atomic for the record it touches. Get, Update and Delete report a missing
// BIN with an error matching ErrNotFound; Insert reports an existing BIN
// with an error matching ErrConflict. Any other error is treated as the
// store being unavailable.
type Store interface {
	// List returns all bridges in insertion order.
	List(ctx context.Context) ([]Bridge, error)
	Get(ctx context.Context, bin string) (Bridge, error)
	Count(ctx context.Context) (int64, error)
	Insert(ctx context.Context, b Bridge) error
	// Update replaces every field of an existing bridge.
	Update(ctx context.Context, b Bridge) error
	Delete(ctx context.Context, bin string) error
	// Upsert merges u into the bridge with the given BIN, creating it when
	// missing, inside one transaction. created reports which happened.
	Upsert(ctx context.Context, bin string, u Update) (b Bridge, created bool, err error)
	// Clear removes every bridge and returns how many were removed.
	Clear(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
