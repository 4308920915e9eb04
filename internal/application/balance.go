package application

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"confirmtx/internal/domain"
)

var ErrMalformedHex = errors.New("malformed hex quantity")

const zeroBalance = "0x0"

// PayingAddress returns the address expected to fund tx.
func PayingAddress(tx domain.PendingTransaction, selectedAddress string) string {
	if tx.TxParams.From != "" {
		return tx.TxParams.From
	}
	return selectedAddress
}

// IsUnaffordable reports whether the declared maximum cost of tx exceeds the
// balance of its paying address. Unknown accounts are treated as empty. Only a
// malformed maxCost or balance produces an error.
func IsUnaffordable(tx domain.PendingTransaction, accounts map[string]domain.Account, selectedAddress string) (bool, error) {
	cost, balance, err := costAndBalance(tx, accounts, selectedAddress)
	if err != nil {
		return false, err
	}
	return cost.Cmp(balance) > 0, nil
}

// Shortfall returns maxCost minus balance, or zero when tx is affordable.
func Shortfall(tx domain.PendingTransaction, accounts map[string]domain.Account, selectedAddress string) (*big.Int, error) {
	cost, balance, err := costAndBalance(tx, accounts, selectedAddress)
	if err != nil {
		return nil, err
	}
	if cost.Cmp(balance) <= 0 {
		return new(big.Int), nil
	}
	return new(big.Int).Sub(cost, balance), nil
}

func costAndBalance(tx domain.PendingTransaction, accounts map[string]domain.Account, selectedAddress string) (*big.Int, *big.Int, error) {
	cost, err := decodeHexQuantity(tx.MaxCost)
	if err != nil {
		return nil, nil, fmt.Errorf("maxCost of %s: %w", tx.ID, err)
	}
	address := PayingAddress(tx, selectedAddress)
	raw := zeroBalance
	if account, ok := lookupAccount(accounts, address); ok {
		raw = account.Balance
	}
	balance, err := decodeHexQuantity(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("balance of %s: %w", address, err)
	}
	return cost, balance, nil
}

func lookupAccount(accounts map[string]domain.Account, address string) (domain.Account, bool) {
	if address == "" {
		return domain.Account{}, false
	}
	if account, ok := accounts[address]; ok {
		return account, true
	}
	// Keys may differ from the tx sender in checksum casing only.
	for key, account := range accounts {
		if strings.EqualFold(key, address) {
			return account, true
		}
	}
	return domain.Account{}, false
}

func decodeHexQuantity(raw string) (*big.Int, error) {
	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		clean = clean[2:]
	}
	if clean == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHex, raw)
	}
	// SetString would accept a sign; quantities are unsigned.
	if clean[0] == '-' || clean[0] == '+' {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHex, raw)
	}
	value, ok := new(big.Int).SetString(clean, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHex, raw)
	}
	return value, nil
}
