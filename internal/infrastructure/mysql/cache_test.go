package mysql

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"confirmtx/internal/application"
	"confirmtx/internal/domain"

	"github.com/redis/go-redis/v9"
)

func TestStateCacheKey(t *testing.T) {
	if got := stateCacheKey("7"); got != "confirmtx:pending:v7" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestDecodeState_RoundTrip(t *testing.T) {
	state := application.NewPendingState()
	state.Transactions["1"] = domain.PendingTransaction{ID: "1", Network: "1", Seq: 3, MaxCost: "0x10", TxParams: domain.TxParams{From: "0xa"}}
	state.Messages["2"] = domain.PendingMessage{ID: "2", Network: "1", Seq: 4, MsgParams: domain.MsgParams{Data: "0x00"}}
	state.SetAccount(domain.Account{Network: "1", Address: "0xa", Balance: "0x100"})
	state.SetAccount(domain.Account{Network: "5", Address: "0xa", Balance: "0x0"})

	payload, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := decodeState(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Transactions["1"].Seq != 3 || decoded.Messages["2"].MsgParams.Data != "0x00" {
		t.Errorf("unexpected decoded state: %+v", decoded)
	}
	if got := decoded.AccountsFor("1")["0xa"].Balance; got != "0x100" {
		t.Errorf("expected network 1 balance 0x100, got %q", got)
	}
	if got := decoded.AccountsFor("5")["0xa"].Balance; got != "0x0" {
		t.Errorf("expected network 5 balance 0x0, got %q", got)
	}
}

func TestDecodeState_EmptyMaps(t *testing.T) {
	decoded, err := decodeState([]byte(`{}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Transactions == nil || decoded.Messages == nil || decoded.Accounts == nil {
		t.Errorf("expected empty maps, got %+v", decoded)
	}
}

func TestDecodeState_Invalid(t *testing.T) {
	if _, err := decodeState([]byte("{")); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewCachedRepository_WithoutRedis(t *testing.T) {
	if _, err := NewCachedRepository(nil, CacheConfig{}); err == nil {
		t.Fatal("expected error for nil base repository")
	}
	cached, err := NewCachedRepository(&Repository{}, CacheConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached.cache != nil {
		t.Error("expected cache to be disabled without an address")
	}
}

func TestInvalidate_ReportsCacheFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cached := &CachedRepository{Repository: &Repository{}, cache: client, ttl: time.Minute}
	if err := cached.invalidate(context.Background()); err == nil {
		t.Fatal("expected error when the version cannot be bumped")
	}

	disabled := &CachedRepository{Repository: &Repository{}}
	if err := disabled.invalidate(context.Background()); err != nil {
		t.Fatalf("expected no error without a cache, got %v", err)
	}
}
