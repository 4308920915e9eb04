package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Service    string
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Init installs the default slog logger writing to stdout and, when a file is
// configured, to a rotating log file. The caller closes the returned writer.
func Init(cfg Config) (*RotatingWriter, error) {
	var (
		out      io.Writer = os.Stdout
		rotating *RotatingWriter
	)
	if strings.TrimSpace(cfg.File) != "" {
		writer, err := NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return nil, err
		}
		rotating = writer
		out = io.MultiWriter(os.Stdout, writer)
	}

	level := ParseLevel(cfg.Level)
	handler := newHandler(out, cfg.Format, level)
	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	slog.SetDefault(logger)

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(logger.Handler(), level).Writer())

	return rotating, nil
}

func newHandler(out io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
