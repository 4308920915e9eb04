package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const defaultMaxSizeMB = 100

// RotatingWriter appends to a log file and shifts it to path.1, path.2, ...
// once it would grow past maxSize. With no backups the file is truncated.
type RotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if path == "" {
		return nil, errors.New("log file path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	writer := &RotatingWriter{
		path:       path,
		maxSize:    int64(maxSizeMB) << 20,
		maxBackups: max(maxBackups, 0),
	}
	if err := writer.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return writer, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.size = 0
	return err
}

func (w *RotatingWriter) open(mode int) error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.file = file
	w.size = info.Size()
	return nil
}

func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if w.maxBackups > 0 {
		for i := w.maxBackups - 1; i >= 1; i-- {
			_ = os.Rename(w.backupName(i), w.backupName(i+1))
		}
		if err := os.Rename(w.path, w.backupName(1)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return w.open(os.O_TRUNC)
}

func (w *RotatingWriter) backupName(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}
