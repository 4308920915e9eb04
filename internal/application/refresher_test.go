package application

import (
	"context"
	"reflect"
	"testing"

	"confirmtx/internal/domain"
)

type fakeBalances struct {
	network  string
	balances map[string]string
	queried  []string
}

func (f *fakeBalances) Network(ctx context.Context) (string, error) {
	return f.network, nil
}

func (f *fakeBalances) Balance(ctx context.Context, address string) (string, error) {
	f.queried = append(f.queried, address)
	if balance, ok := f.balances[address]; ok {
		return balance, nil
	}
	return "0x0", nil
}

type fakeWriter struct {
	published []domain.Account
}

func (f *fakeWriter) PublishBalances(ctx context.Context, network string, accounts []domain.Account) error {
	f.published = append(f.published, accounts...)
	return nil
}

func TestRefresher_PublishesChangedBalances(t *testing.T) {
	repo := newMockRepo()
	repo.state.Transactions["1"] = domain.PendingTransaction{ID: "1", Network: "1", MaxCost: "0x1", TxParams: domain.TxParams{From: "0xAA"}}
	repo.state.Transactions["2"] = domain.PendingTransaction{ID: "2", Network: "1", MaxCost: "0x1"}
	repo.state.Transactions["3"] = domain.PendingTransaction{ID: "3", Network: "3", MaxCost: "0x1", TxParams: domain.TxParams{From: "0xcc"}}
	repo.state.SetAccount(domain.Account{Network: "1", Address: "0xaa", Balance: "0x10"})
	repo.state.SetAccount(domain.Account{Network: "3", Address: "0xbb", Balance: "0x5"})

	source := &fakeBalances{network: "1", balances: map[string]string{"0xaa": "0x010", "0xbb": "0x5"}}
	writer := &fakeWriter{}
	refresher, err := NewRefresher(source, writer, repo, nil, RefresherConfig{SelectedAddress: "0xbb"})
	if err != nil {
		t.Fatalf("new refresher: %v", err)
	}

	if err := refresher.RefreshOnce(context.Background(), "1"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if want := []string{"0xaa", "0xbb"}; !reflect.DeepEqual(source.queried, want) {
		t.Errorf("expected queries %v, got %v", want, source.queried)
	}
	if len(writer.published) != 1 || writer.published[0].Address != "0xbb" {
		t.Errorf("expected only 0xbb to be published, got %+v", writer.published)
	}
}

func TestNewRefresher_RequiresDependencies(t *testing.T) {
	if _, err := NewRefresher(nil, nil, nil, nil, RefresherConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
