package application

import (
	"math/big"
	"strings"
	"testing"

	"confirmtx/internal/domain"
)

func viewState() PendingState {
	state := NewPendingState()
	state.Transactions["1"] = domain.PendingTransaction{ID: "1", Network: "1", Seq: 1, MaxCost: "0x10", TxParams: domain.TxParams{From: "0xA"}}
	state.Messages["2"] = domain.PendingMessage{ID: "2", Network: "1", Seq: 2, MsgParams: domain.MsgParams{Data: "0xbeef"}}
	state.Transactions["3"] = domain.PendingTransaction{ID: "3", Network: "1", Seq: 3, MaxCost: "0xzz"}
	state.SetAccount(domain.Account{Network: "1", Address: "0xA", Balance: "0xF"})
	state.SetAccount(domain.Account{Network: "5", Address: "0xA", Balance: "0x100"})
	return state
}

func TestBuildView_FirstTransaction(t *testing.T) {
	view, ok, err := BuildView(viewState(), ViewInput{Network: "1", SelectedAddress: "0xsel"})
	if err != nil || !ok {
		t.Fatalf("expected a view, got ok=%v err=%v", ok, err)
	}
	if view.Total != 3 || view.Index != 0 || view.Position != "1 of 3" {
		t.Errorf("unexpected paging: %+v", view)
	}
	if !view.ShowPager || view.HasPrevious || !view.HasNext {
		t.Errorf("unexpected navigation flags: %+v", view)
	}
	if view.Kind != domain.ItemKindTransaction || view.Transaction == nil || view.Transaction.ID != "1" {
		t.Fatalf("expected transaction 1, got %+v", view)
	}
	if view.Affordability != Insufficient {
		t.Errorf("expected insufficient, got %s", view.Affordability)
	}
	if view.Shortfall != "0.000000000000000001" {
		t.Errorf("expected one wei shortfall, got %s", view.Shortfall)
	}
	if view.BuyAddress != "0xA" {
		t.Errorf("expected buy address 0xA, got %s", view.BuyAddress)
	}
}

func TestBuildView_Message(t *testing.T) {
	index := 1
	view, ok, err := BuildView(viewState(), ViewInput{Network: "1", SelectedAddress: "0xsel", Index: &index})
	if err != nil || !ok {
		t.Fatalf("expected a view, got ok=%v err=%v", ok, err)
	}
	if view.Kind != domain.ItemKindMessage || view.Message == nil || view.Transaction != nil {
		t.Fatalf("expected message view, got %+v", view)
	}
	if view.Affordability != Affordable {
		t.Errorf("messages are always affordable, got %s", view.Affordability)
	}
	if !view.HasPrevious || !view.HasNext {
		t.Errorf("expected both directions, got %+v", view)
	}
	if view.BuyAddress != "0xsel" {
		t.Errorf("expected selected address, got %s", view.BuyAddress)
	}
}

func TestBuildView_MalformedCostIsUnknown(t *testing.T) {
	index := 2
	view, ok, err := BuildView(viewState(), ViewInput{Network: "1", Index: &index})
	if err != nil || !ok {
		t.Fatalf("malformed cost must not fail the view: ok=%v err=%v", ok, err)
	}
	if view.Affordability != Unknown {
		t.Errorf("expected unknown, got %s", view.Affordability)
	}
	if !strings.Contains(view.AffordabilityErr, ErrMalformedHex.Error()) {
		t.Errorf("expected parse error text, got %q", view.AffordabilityErr)
	}
	if view.HasNext {
		t.Error("last item must not offer next")
	}
}

func TestBuildView_OutOfRangeIndex(t *testing.T) {
	index := 10
	view, _, _ := BuildView(viewState(), ViewInput{Network: "1", Index: &index})
	if view.Index != 0 {
		t.Errorf("expected index 0, got %d", view.Index)
	}
}

func TestBuildView_Empty(t *testing.T) {
	_, ok, err := BuildView(viewState(), ViewInput{Network: "5"})
	if err != nil || ok {
		t.Errorf("expected nothing to display, got ok=%v err=%v", ok, err)
	}
}

func TestBuildView_Warning(t *testing.T) {
	view, _, _ := BuildView(viewState(), ViewInput{Network: "1", Warning: "Error: MetaMask Tx Signature: User denied transaction signature."})
	if view.Warning != "" {
		t.Errorf("expected user rejection to be hidden, got %q", view.Warning)
	}
	view, _, _ = BuildView(viewState(), ViewInput{Network: "1", Warning: "gas too low"})
	if view.Warning != "gas too low" {
		t.Errorf("expected warning to pass through, got %q", view.Warning)
	}
}

func TestBuildView_SingleItemHidesPager(t *testing.T) {
	state := NewPendingState()
	state.Messages["m"] = domain.PendingMessage{ID: "m", Network: "1"}
	view, ok, _ := BuildView(state, ViewInput{Network: "1"})
	if !ok || view.ShowPager {
		t.Errorf("expected single item without pager, got %+v", view)
	}
}

func TestFormatEther(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := FormatEther(wei); got != "1.5" {
		t.Errorf("expected 1.5, got %s", got)
	}
}

