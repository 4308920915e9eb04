package application

import (
	"fmt"
	"math/big"
	"strings"

	"confirmtx/internal/domain"

	"github.com/shopspring/decimal"
)

const userDeniedWarning = "User denied transaction signature"

// PendingState is a consistent snapshot of everything awaiting approval.
// Balances are kept per network since one address holds different funds on
// each chain.
type PendingState struct {
	Transactions map[string]domain.PendingTransaction           `json:"transactions"`
	Messages     map[string]domain.PendingMessage               `json:"messages"`
	Accounts     map[domain.NetworkID]map[string]domain.Account `json:"accounts"`
}

// NewPendingState returns a state with all maps allocated.
func NewPendingState() PendingState {
	return PendingState{
		Transactions: make(map[string]domain.PendingTransaction),
		Messages:     make(map[string]domain.PendingMessage),
		Accounts:     make(map[domain.NetworkID]map[string]domain.Account),
	}
}

// AccountsFor returns the known balances on network. The result may be nil.
func (s PendingState) AccountsFor(network domain.NetworkID) map[string]domain.Account {
	return s.Accounts[network]
}

// SetAccount records account under its network.
func (s *PendingState) SetAccount(account domain.Account) {
	if s.Accounts == nil {
		s.Accounts = make(map[domain.NetworkID]map[string]domain.Account)
	}
	accounts, ok := s.Accounts[account.Network]
	if !ok {
		accounts = make(map[string]domain.Account)
		s.Accounts[account.Network] = accounts
	}
	accounts[account.Address] = account
}

type ViewInput struct {
	Network         domain.NetworkID
	SelectedAddress string
	Index           *int
	Warning         string
}

type Affordability string

const (
	Affordable   Affordability = "affordable"
	Insufficient Affordability = "insufficient"
	Unknown      Affordability = "unknown"
)

// View is what the confirmation screen shows for the current queue position.
type View struct {
	Network          domain.NetworkID           `json:"network"`
	Total            int                        `json:"total"`
	Index            int                        `json:"index"`
	Position         string                     `json:"position"`
	ShowPager        bool                       `json:"showPager"`
	HasPrevious      bool                       `json:"hasPrevious"`
	HasNext          bool                       `json:"hasNext"`
	Kind             domain.ItemKind            `json:"kind"`
	Transaction      *domain.PendingTransaction `json:"transaction,omitempty"`
	Message          *domain.PendingMessage     `json:"message,omitempty"`
	Affordability    Affordability              `json:"affordability"`
	AffordabilityErr string                     `json:"affordabilityError,omitempty"`
	Shortfall        string                     `json:"shortfall,omitempty"`
	BuyAddress       string                     `json:"buyAddress,omitempty"`
	Warning          string                     `json:"warning,omitempty"`
}

// BuildView resolves the queue for input.Network and describes the item at the
// requested index. It returns false when nothing is pending. An item that is
// neither kind surfaces domain.ErrMalformedItem.
func BuildView(state PendingState, input ViewInput) (View, bool, error) {
	queue := BuildQueue(state.Transactions, state.Messages, input.Network)
	if queue.Len() == 0 {
		return View{}, false, nil
	}
	index := ResolveIndex(input.Index, queue.Len())
	item, _ := queue.At(index)

	view := View{
		Network:     input.Network,
		Total:       queue.Len(),
		Index:       index,
		Position:    fmt.Sprintf("%d of %d", index+1, queue.Len()),
		ShowPager:   queue.Len() > 1,
		HasPrevious: index > 0,
		HasNext:     index+1 < queue.Len(),
		Warning:     visibleWarning(input.Warning),
	}

	kind, err := Classify(item)
	if err != nil {
		return View{}, false, err
	}
	view.Kind = kind

	accounts := state.AccountsFor(input.Network)
	switch current := item.(type) {
	case domain.PendingTransaction:
		describeTransaction(&view, current, accounts, input.SelectedAddress)
	case *domain.PendingTransaction:
		describeTransaction(&view, *current, accounts, input.SelectedAddress)
	case domain.PendingMessage:
		view.Message = &current
		view.Affordability = Affordable
		view.BuyAddress = input.SelectedAddress
	case *domain.PendingMessage:
		msg := *current
		view.Message = &msg
		view.Affordability = Affordable
		view.BuyAddress = input.SelectedAddress
	}
	return view, true, nil
}

func describeTransaction(view *View, tx domain.PendingTransaction, accounts map[string]domain.Account, selectedAddress string) {
	view.Transaction = &tx
	view.BuyAddress = PayingAddress(tx, selectedAddress)

	shortfall, err := Shortfall(tx, accounts, selectedAddress)
	if err != nil {
		view.Affordability = Unknown
		view.AffordabilityErr = err.Error()
		return
	}
	if shortfall.Sign() == 0 {
		view.Affordability = Affordable
		return
	}
	view.Affordability = Insufficient
	view.Shortfall = FormatEther(shortfall)
}

// FormatEther renders a wei amount in ether without losing precision.
func FormatEther(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -18).String()
}

func visibleWarning(warning string) string {
	if strings.Contains(warning, userDeniedWarning) {
		return ""
	}
	return warning
}
