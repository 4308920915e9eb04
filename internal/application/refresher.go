package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"confirmtx/internal/domain"
)

type BalanceSource interface {
	Network(ctx context.Context) (string, error)
	Balance(ctx context.Context, address string) (string, error)
}

type BalanceWriter interface {
	PublishBalances(ctx context.Context, network string, accounts []domain.Account) error
}

type RefresherObserver interface {
	OnRefresh(network string, checked int, changed int)
}

type RefresherConfig struct {
	SelectedAddress string
	PollInterval    time.Duration
}

// Refresher keeps account balances of pending senders current by polling the
// node and publishing balance_updated events for the ones that changed.
type Refresher struct {
	source   BalanceSource
	writer   BalanceWriter
	state    PendingStateSource
	observer RefresherObserver
	cfg      RefresherConfig
}

func NewRefresher(source BalanceSource, writer BalanceWriter, state PendingStateSource, observer RefresherObserver, cfg RefresherConfig) (*Refresher, error) {
	if source == nil || writer == nil || state == nil {
		return nil, errors.New("refresher dependencies must not be nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Refresher{source: source, writer: writer, state: state, observer: observer, cfg: cfg}, nil
}

func (r *Refresher) Run(ctx context.Context) error {
	network, err := r.source.Network(ctx)
	if err != nil {
		return err
	}
	for {
		if err := r.RefreshOnce(ctx, network); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("balance refresh failed", "network", network, "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// RefreshOnce queries the balance of every address paying for a pending
// transaction on network and publishes the ones that differ from the store.
func (r *Refresher) RefreshOnce(ctx context.Context, network string) error {
	state, err := r.state.PendingState(ctx)
	if err != nil {
		return err
	}
	addresses := PayingAddresses(state, domain.NetworkID(network), r.cfg.SelectedAddress)

	changed := make([]domain.Account, 0, len(addresses))
	for _, address := range addresses {
		balance, err := r.source.Balance(ctx, address)
		if err != nil {
			return err
		}
		if known, ok := lookupAccount(state.AccountsFor(domain.NetworkID(network)), address); ok && sameQuantity(known.Balance, balance) {
			continue
		}
		changed = append(changed, domain.Account{Network: domain.NetworkID(network), Address: address, Balance: balance})
	}
	if len(changed) > 0 {
		if err := r.writer.PublishBalances(ctx, network, changed); err != nil {
			return err
		}
	}
	if r.observer != nil {
		r.observer.OnRefresh(network, len(addresses), len(changed))
	}
	return nil
}

// PayingAddresses lists, lower-cased and sorted, the distinct addresses that
// fund pending transactions on network.
func PayingAddresses(state PendingState, network domain.NetworkID, selectedAddress string) []string {
	seen := make(map[string]struct{})
	for _, tx := range state.Transactions {
		if tx.Network != network {
			continue
		}
		address := strings.ToLower(PayingAddress(tx, selectedAddress))
		if address == "" {
			continue
		}
		seen[address] = struct{}{}
	}
	addresses := make([]string, 0, len(seen))
	for address := range seen {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}

func sameQuantity(a, b string) bool {
	left, err := decodeHexQuantity(a)
	if err != nil {
		return false
	}
	right, err := decodeHexQuantity(b)
	if err != nil {
		return false
	}
	return left.Cmp(right) == 0
}
