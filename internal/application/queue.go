package application

import (
	"sort"

	"confirmtx/internal/domain"
)

// Queue is the ordered list of items awaiting approval on one network.
type Queue []domain.Item

// BuildQueue merges pending transactions and messages that belong to network
// into a single queue ordered by insertion sequence. Ties are broken by kind
// (transactions first) and then by id so the result never depends on map
// iteration order. The inputs are not modified.
func BuildQueue(txs map[string]domain.PendingTransaction, msgs map[string]domain.PendingMessage, network domain.NetworkID) Queue {
	queue := make(Queue, 0, len(txs)+len(msgs))
	for _, tx := range txs {
		if tx.Network == network {
			queue = append(queue, tx)
		}
	}
	for _, msg := range msgs {
		if msg.Network == network {
			queue = append(queue, msg)
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		return itemLess(queue[i], queue[j])
	})
	return queue
}

func itemLess(a, b domain.Item) bool {
	if a.Sequence() != b.Sequence() {
		return a.Sequence() < b.Sequence()
	}
	if a.Kind() != b.Kind() {
		return a.Kind() == domain.ItemKindTransaction
	}
	return a.ItemID() < b.ItemID()
}

func (q Queue) Len() int {
	return len(q)
}

// At returns the item at index, or false when index is out of range.
func (q Queue) At(index int) (domain.Item, bool) {
	if index < 0 || index >= len(q) {
		return nil, false
	}
	return q[index], true
}

// ResolveIndex maps a requested position onto a queue of the given length.
// A nil or out-of-range request resolves to 0.
func ResolveIndex(requested *int, length int) int {
	if requested == nil {
		return 0
	}
	if *requested < 0 || *requested >= length {
		return 0
	}
	return *requested
}

// NextIndex steps forward from the resolved index, staying on the last item.
func NextIndex(requested *int, length int) int {
	current := ResolveIndex(requested, length)
	if current+1 < length {
		return current + 1
	}
	return current
}

// PreviousIndex steps back from the resolved index, staying on the first item.
func PreviousIndex(requested *int, length int) int {
	current := ResolveIndex(requested, length)
	if current > 0 {
		return current - 1
	}
	return current
}

// Classify reports whether item is a transaction or a message.
func Classify(item domain.Item) (domain.ItemKind, error) {
	switch v := item.(type) {
	case domain.PendingTransaction:
		return domain.ItemKindTransaction, nil
	case *domain.PendingTransaction:
		if v == nil {
			return "", domain.ErrMalformedItem
		}
		return domain.ItemKindTransaction, nil
	case domain.PendingMessage:
		return domain.ItemKindMessage, nil
	case *domain.PendingMessage:
		if v == nil {
			return "", domain.ErrMalformedItem
		}
		return domain.ItemKindMessage, nil
	default:
		return "", domain.ErrMalformedItem
	}
}
