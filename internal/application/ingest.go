package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"confirmtx/internal/domain"
	"confirmtx/internal/streaming"
)

// ApprovalRepository persists the pending state fed by the event stream.
// Implementations assign Seq on first insert and keep it when an id is
// stored again.
type ApprovalRepository interface {
	StoreTransaction(ctx context.Context, tx domain.PendingTransaction) error
	StoreMessage(ctx context.Context, msg domain.PendingMessage) error
	DeleteTransaction(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, id string) error
	SetBalance(ctx context.Context, network domain.NetworkID, address string, balance string) error
}

// PendingStateSource loads a consistent snapshot of the pending state.
type PendingStateSource interface {
	PendingState(ctx context.Context) (PendingState, error)
}

func ApplyMessage(ctx context.Context, repo ApprovalRepository, msg streaming.Message) error {
	slog.Debug("consume message",
		"type", msg.Type,
		"network", msg.Network,
		"id", msg.ID,
	)

	if repo == nil {
		return errors.New("approval repository is required")
	}

	switch msg.Type {
	case streaming.MessageTypeAdded:
		item, err := MapToItem(msg)
		if err != nil {
			return err
		}
		switch v := item.(type) {
		case domain.PendingTransaction:
			return repo.StoreTransaction(ctx, v)
		case domain.PendingMessage:
			return repo.StoreMessage(ctx, v)
		}
		return domain.ErrMalformedItem
	case streaming.MessageTypeRemoved:
		switch msg.Kind {
		case domain.ItemKindTransaction:
			return repo.DeleteTransaction(ctx, msg.ID)
		case domain.ItemKindMessage:
			return repo.DeleteMessage(ctx, msg.ID)
		default:
			return fmt.Errorf("approval %s: %w", msg.ID, domain.ErrUnknownKind)
		}
	case streaming.MessageTypeBalance:
		if msg.Network == "" {
			return errors.New("balance update without network")
		}
		return repo.SetBalance(ctx, domain.NetworkID(msg.Network), msg.Address, msg.Balance)
	default:
		return errors.New("unknown message type")
	}
}

// MapToItem converts an approval_added message into a queue item. The
// repository assigns the sequence number.
func MapToItem(msg streaming.Message) (domain.Item, error) {
	kind, err := msg.ItemKind()
	if err != nil {
		return nil, err
	}
	if kind == domain.ItemKindTransaction {
		return domain.PendingTransaction{
			ID:       msg.ID,
			Network:  domain.NetworkID(msg.Network),
			Time:     msg.Time,
			MaxCost:  msg.MaxCost,
			TxParams: *msg.TxParams,
		}, nil
	}
	return domain.PendingMessage{
		ID:        msg.ID,
		Network:   domain.NetworkID(msg.Network),
		Time:      msg.Time,
		MsgParams: *msg.MsgParams,
	}, nil
}
