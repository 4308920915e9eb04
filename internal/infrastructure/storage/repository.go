package storage

import (
	"context"
	"fmt"
	"log/slog"

	"confirmtx/internal/application"
	"confirmtx/internal/config"
	"confirmtx/internal/infrastructure/mysql"
	"confirmtx/internal/infrastructure/sqlite"
)

// Store is the pending-approval store used by the binaries.
type Store interface {
	application.ApprovalRepository
	application.PendingStateSource
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*mysql.Repository)(nil)
	_ Store = (*mysql.CachedRepository)(nil)
	_ Store = (*sqlite.Repository)(nil)
)

// Open connects the store selected by DB_DRIVER. MySQL reads go through the
// Redis cache when REDIS_ADDR is set.
func Open(cfg config.Config) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		repo, err := mysql.NewRepository(cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		if cfg.RedisAddr == "" {
			return repo, nil
		}
		cached, err := mysql.NewCachedRepository(repo, mysql.CacheConfig{Addr: cfg.RedisAddr, TTL: cfg.CacheTTL})
		if err != nil {
			slog.Warn("redis cache disabled", "addr", cfg.RedisAddr, "err", err)
			return repo, nil
		}
		return cached, nil
	case config.DriverSQLite, "":
		repo, err := sqlite.NewRepository(cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}
