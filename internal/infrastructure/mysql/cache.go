package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"confirmtx/internal/application"
	"confirmtx/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	stateCacheVersionKey = "confirmtx:pending:version"
	stateCacheKeyPrefix  = "confirmtx:pending:v"
	defaultCacheTTL      = time.Minute
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedRepository serves PendingState from Redis. Every write bumps a version
// counter, so a cached snapshot is never read after the store changes.
type CachedRepository struct {
	*Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(base *Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: client, ttl: cfg.TTL}, nil
}

func (r *CachedRepository) StoreTransaction(ctx context.Context, tx domain.PendingTransaction) error {
	if err := r.Repository.StoreTransaction(ctx, tx); err != nil {
		return err
	}
	return r.invalidate(ctx)
}

func (r *CachedRepository) StoreMessage(ctx context.Context, msg domain.PendingMessage) error {
	if err := r.Repository.StoreMessage(ctx, msg); err != nil {
		return err
	}
	return r.invalidate(ctx)
}

func (r *CachedRepository) DeleteTransaction(ctx context.Context, id string) error {
	if err := r.Repository.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	return r.invalidate(ctx)
}

func (r *CachedRepository) DeleteMessage(ctx context.Context, id string) error {
	if err := r.Repository.DeleteMessage(ctx, id); err != nil {
		return err
	}
	return r.invalidate(ctx)
}

func (r *CachedRepository) SetBalance(ctx context.Context, network domain.NetworkID, address string, balance string) error {
	if err := r.Repository.SetBalance(ctx, network, address, balance); err != nil {
		return err
	}
	return r.invalidate(ctx)
}

func (r *CachedRepository) PendingState(ctx context.Context) (application.PendingState, error) {
	if r.cache == nil {
		return r.Repository.PendingState(ctx)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Repository.PendingState(ctx)
	}
	key := stateCacheKey(version)
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		if state, err := decodeState([]byte(cached)); err == nil {
			return state, nil
		}
	}

	state, err := r.Repository.PendingState(ctx)
	if err != nil {
		return application.PendingState{}, err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return state, nil
	}
	_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
	return state, nil
}

func (r *CachedRepository) Close() error {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	return r.Repository.Close()
}

func (r *CachedRepository) cacheVersion(ctx context.Context) (string, bool) {
	version, err := r.cache.Get(ctx, stateCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

// invalidate bumps the version so the next read misses the cache. A failure
// is returned to the writer, whose batch is then redelivered; the stores
// treat repeated writes as no-ops.
func (r *CachedRepository) invalidate(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.Incr(ctx, stateCacheVersionKey).Err(); err != nil {
		return fmt.Errorf("invalidate pending state cache: %w", err)
	}
	return nil
}

func stateCacheKey(version string) string {
	return stateCacheKeyPrefix + version
}

// decodeState restores nil maps to empty ones so callers can write to them.
func decodeState(payload []byte) (application.PendingState, error) {
	var state application.PendingState
	if err := json.Unmarshal(payload, &state); err != nil {
		return application.PendingState{}, err
	}
	if state.Transactions == nil {
		state.Transactions = make(map[string]domain.PendingTransaction)
	}
	if state.Messages == nil {
		state.Messages = make(map[string]domain.PendingMessage)
	}
	if state.Accounts == nil {
		state.Accounts = make(map[domain.NetworkID]map[string]domain.Account)
	}
	return state, nil
}
