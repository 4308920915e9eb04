package storage

import (
	"context"
	"path/filepath"
	"testing"

	"confirmtx/internal/config"
	"confirmtx/internal/domain"
)

func TestOpen_SQLite(t *testing.T) {
	store, err := Open(config.Config{DBDriver: config.DriverSQLite, DBDSN: filepath.Join(t.TempDir(), "confirmtx.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.StoreMessage(ctx, domain.PendingMessage{ID: "1", Network: "1"}); err != nil {
		t.Fatalf("store message: %v", err)
	}
	state, err := store.PendingState(ctx)
	if err != nil {
		t.Fatalf("pending state: %v", err)
	}
	if len(state.Messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(state.Messages))
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(config.Config{DBDriver: "postgres"}); err == nil {
		t.Fatal("expected error")
	}
}
