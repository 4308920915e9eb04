package mysql

import (
	"testing"
)

func TestNewRepository_RequiresDSN(t *testing.T) {
	if _, err := NewRepository(""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestNewRepository_UnreachableServer(t *testing.T) {
	repo, err := NewRepository("confirmtx:secret@tcp(127.0.0.1:1)/confirmtx?timeout=100ms")
	if err == nil {
		_ = repo.Close()
		t.Fatal("expected error when the server cannot be reached")
	}
	if repo != nil {
		t.Errorf("expected no repository on failure, got %+v", repo)
	}
}
