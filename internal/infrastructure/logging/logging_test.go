package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriter_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "confirmtx.log")
	writer, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer writer.Close()

	chunk := bytes.Repeat([]byte("x"), 700*1024)
	for i := 0; i < 3; i++ {
		if _, err := writer.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(name)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
		if info.Size() != int64(len(chunk)) {
			t.Errorf("%s: expected %d bytes, got %d", name, len(chunk), info.Size())
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected no third backup, got %v", err)
	}
}

func TestRotatingWriter_NoBackupsTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confirmtx.log")
	writer, err := NewRotatingWriter(path, 1, 0)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	defer writer.Close()

	chunk := bytes.Repeat([]byte("y"), 600*1024)
	_, _ = writer.Write(chunk)
	_, _ = writer.Write(chunk)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("expected truncated file of %d bytes, got %d", len(chunk), info.Size())
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Errorf("expected no backup, got %v", err)
	}
}

func TestRotatingWriter_RequiresPath(t *testing.T) {
	if _, err := NewRotatingWriter("", 1, 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}
