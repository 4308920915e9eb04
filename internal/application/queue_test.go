package application

import (
	"errors"
	"reflect"
	"testing"

	"confirmtx/internal/domain"
)

func sampleState() (map[string]domain.PendingTransaction, map[string]domain.PendingMessage) {
	txs := map[string]domain.PendingTransaction{
		"1": {ID: "1", Network: "1", Seq: 1, MaxCost: "0x10", TxParams: domain.TxParams{From: "0xa"}},
		"2": {ID: "2", Network: "3", Seq: 2, MaxCost: "0x10"},
		"4": {ID: "4", Network: "1", Seq: 4, MaxCost: "0x1"},
	}
	msgs := map[string]domain.PendingMessage{
		"m3": {ID: "m3", Network: "1", Seq: 3, MsgParams: domain.MsgParams{Data: "0xdead"}},
		"m5": {ID: "m5", Network: "3", Seq: 5},
	}
	return txs, msgs
}

func ids(queue Queue) []string {
	out := make([]string, 0, queue.Len())
	for _, item := range queue {
		out = append(out, item.ItemID())
	}
	return out
}

func TestBuildQueue_FiltersByNetwork(t *testing.T) {
	txs, msgs := sampleState()
	queue := BuildQueue(txs, msgs, "1")

	for _, item := range queue {
		if item.ItemNetwork() != "1" {
			t.Errorf("item %s has network %s", item.ItemID(), item.ItemNetwork())
		}
	}
	want := []string{"1", "m3", "4"}
	if got := ids(queue); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuildQueue_Deterministic(t *testing.T) {
	txs, msgs := sampleState()
	// Items without a sequence still order the same way on every call.
	txs["a"] = domain.PendingTransaction{ID: "a", Network: "1"}
	txs["b"] = domain.PendingTransaction{ID: "b", Network: "1"}
	msgs["a"] = domain.PendingMessage{ID: "a", Network: "1"}

	first := ids(BuildQueue(txs, msgs, "1"))
	for i := 0; i < 20; i++ {
		if got := ids(BuildQueue(txs, msgs, "1")); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: expected %v, got %v", i, first, got)
		}
	}
	want := []string{"a", "b", "a", "1", "m3", "4"}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("expected %v, got %v", want, first)
	}
}

func TestBuildQueue_Empty(t *testing.T) {
	if queue := BuildQueue(nil, nil, "1"); queue.Len() != 0 {
		t.Errorf("expected empty queue, got %d items", queue.Len())
	}
	txs, msgs := sampleState()
	if queue := BuildQueue(txs, msgs, "42"); queue.Len() != 0 {
		t.Errorf("expected empty queue for unknown network, got %d items", queue.Len())
	}
}

func TestBuildQueue_DoesNotMutateInputs(t *testing.T) {
	txs, msgs := sampleState()
	before := len(txs) + len(msgs)
	BuildQueue(txs, msgs, "1")
	if len(txs)+len(msgs) != before {
		t.Error("inputs were modified")
	}
}

func TestResolveIndex(t *testing.T) {
	intPtr := func(v int) *int { return &v }
	tests := []struct {
		name      string
		requested *int
		length    int
		want      int
	}{
		{"undefined", nil, 3, 0},
		{"first", intPtr(0), 3, 0},
		{"last", intPtr(2), 3, 2},
		{"past end", intPtr(3), 3, 0},
		{"negative", intPtr(-1), 3, 0},
		{"empty queue", intPtr(0), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveIndex(tt.requested, tt.length); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestNextAndPreviousIndex(t *testing.T) {
	one, two := 1, 2
	if got := NextIndex(&one, 3); got != 2 {
		t.Errorf("next from 1: expected 2, got %d", got)
	}
	if got := NextIndex(&two, 3); got != 2 {
		t.Errorf("next from last: expected 2, got %d", got)
	}
	if got := PreviousIndex(nil, 3); got != 0 {
		t.Errorf("previous from undefined: expected 0, got %d", got)
	}
	if got := PreviousIndex(&two, 3); got != 1 {
		t.Errorf("previous from 2: expected 1, got %d", got)
	}
}

func TestClassify(t *testing.T) {
	if kind, err := Classify(domain.PendingTransaction{ID: "1"}); err != nil || kind != domain.ItemKindTransaction {
		t.Errorf("transaction: got %s, %v", kind, err)
	}
	if kind, err := Classify(&domain.PendingMessage{ID: "1"}); err != nil || kind != domain.ItemKindMessage {
		t.Errorf("message: got %s, %v", kind, err)
	}
	if _, err := Classify(nil); !errors.Is(err, domain.ErrMalformedItem) {
		t.Errorf("nil item: expected ErrMalformedItem, got %v", err)
	}
	if _, err := Classify((*domain.PendingTransaction)(nil)); !errors.Is(err, domain.ErrMalformedItem) {
		t.Errorf("nil transaction pointer: expected ErrMalformedItem, got %v", err)
	}
	if _, err := Classify((*domain.PendingMessage)(nil)); !errors.Is(err, domain.ErrMalformedItem) {
		t.Errorf("nil message pointer: expected ErrMalformedItem, got %v", err)
	}
}

func TestQueueAt(t *testing.T) {
	txs, msgs := sampleState()
	queue := BuildQueue(txs, msgs, "1")
	if _, ok := queue.At(3); ok {
		t.Error("expected no item past the end")
	}
	item, ok := queue.At(1)
	if !ok || item.ItemID() != "m3" {
		t.Errorf("expected m3 at 1, got %v", item)
	}
}
