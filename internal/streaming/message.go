package streaming

import (
	"encoding/json"
	"errors"
	"fmt"

	"confirmtx/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

type MessageType string

const (
	MessageTypeAdded   MessageType = "approval_added"
	MessageTypeRemoved MessageType = "approval_removed"
	MessageTypeBalance MessageType = "balance_updated"
)

// Message is the envelope published by the transaction pipeline whenever an
// approval request appears or disappears, or an account balance changes.
type Message struct {
	Type      MessageType       `json:"type"`
	Network   string            `json:"network,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	ID        string            `json:"id,omitempty"`
	Kind      domain.ItemKind   `json:"kind,omitempty"`
	Time      int64             `json:"time,omitempty"`
	MaxCost   string            `json:"maxCost,omitempty"`
	TxParams  *domain.TxParams  `json:"txParams,omitempty"`
	MsgParams *domain.MsgParams `json:"msgParams,omitempty"`
	Address   string            `json:"address,omitempty"`
	Balance   string            `json:"balance,omitempty"`
}

// ItemKind reports which params an approval_added message carries. Exactly one
// of TxParams and MsgParams must be set.
func (m Message) ItemKind() (domain.ItemKind, error) {
	switch {
	case m.TxParams != nil && m.MsgParams == nil:
		return domain.ItemKindTransaction, nil
	case m.MsgParams != nil && m.TxParams == nil:
		return domain.ItemKindMessage, nil
	default:
		return "", domain.ErrMalformedItem
	}
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	switch msg.Type {
	case "":
		return errors.New("message type is required")
	case MessageTypeAdded:
		if msg.ID == "" || msg.Network == "" {
			return errors.New("id and network are required")
		}
		kind, err := msg.ItemKind()
		if err != nil {
			return fmt.Errorf("approval %s: %w", msg.ID, err)
		}
		if kind == domain.ItemKindTransaction {
			if msg.MaxCost == "" {
				return fmt.Errorf("approval %s: maxCost is required", msg.ID)
			}
			return validateAddress(msg.TxParams.From)
		}
		return validateAddress(msg.MsgParams.From)
	case MessageTypeRemoved:
		if msg.ID == "" {
			return errors.New("id is required")
		}
		if _, err := domain.ParseItemKind(string(msg.Kind)); err != nil {
			return fmt.Errorf("approval %s: %w", msg.ID, err)
		}
		return nil
	case MessageTypeBalance:
		if msg.Network == "" || msg.Address == "" || msg.Balance == "" {
			return errors.New("network, address and balance are required")
		}
		return validateAddress(msg.Address)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// validateAddress accepts an empty address; the selected account is used then.
func validateAddress(address string) error {
	if address == "" {
		return nil
	}
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid address %q", address)
	}
	return nil
}
