package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bridgetrack/bridgetrack/internal/config"
	"github.com/bridgetrack/bridgetrack/internal/core"
	"github.com/bridgetrack/bridgetrack/internal/storage/sqlite"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverMemory})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := mem.(*core.MemoryStore); !ok {
		t.Errorf("Open(memory) = %T, want *core.MemoryStore", mem)
	}
	mem.Close()

	file, err := Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "open.db"),
	})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	if _, ok := file.(*sqlite.Store); !ok {
		t.Errorf("Open(sqlite) = %T, want *sqlite.Store", file)
	}
	file.Close()

	if _, err := Open(ctx, config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Error("Open(mysql) expected error")
	}
}
