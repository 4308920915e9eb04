package application

import "confirmtx/internal/domain"

// QueueEntry is the listing form of a queue item.
type QueueEntry struct {
	Position int              `json:"position"`
	ID       string           `json:"id"`
	Kind     domain.ItemKind  `json:"kind"`
	Network  domain.NetworkID `json:"network"`
	From     string           `json:"from,omitempty"`
	Seq      uint64           `json:"seq"`
}

func SummarizeQueue(queue Queue) []QueueEntry {
	entries := make([]QueueEntry, 0, queue.Len())
	for i, item := range queue {
		entry := QueueEntry{
			Position: i,
			ID:       item.ItemID(),
			Kind:     item.Kind(),
			Network:  item.ItemNetwork(),
			Seq:      item.Sequence(),
		}
		switch v := item.(type) {
		case domain.PendingTransaction:
			entry.From = v.TxParams.From
		case domain.PendingMessage:
			entry.From = v.MsgParams.From
		}
		entries = append(entries, entry)
	}
	return entries
}

// FindTransaction looks up a pending transaction by id regardless of network.
func FindTransaction(state PendingState, id string) (domain.PendingTransaction, bool) {
	tx, ok := state.Transactions[id]
	return tx, ok
}
