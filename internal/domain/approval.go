package domain

import "errors"

// NetworkID identifies the chain instance a pending item targets.
type NetworkID string

// ItemKind tags an entry of the unapproved queue.
type ItemKind string

const (
	ItemKindTransaction ItemKind = "transaction"
	ItemKindMessage     ItemKind = "message"
)

var (
	ErrMalformedItem = errors.New("pending item is neither a transaction nor a message")
	ErrUnknownKind   = errors.New("unknown item kind")
)

// ParseItemKind accepts the wire names used by the event stream.
func ParseItemKind(raw string) (ItemKind, error) {
	switch ItemKind(raw) {
	case ItemKindTransaction, ItemKindMessage:
		return ItemKind(raw), nil
	default:
		return "", ErrUnknownKind
	}
}

// Item is one entry of the unapproved queue. It is implemented only by
// PendingTransaction and PendingMessage.
type Item interface {
	ItemID() string
	ItemNetwork() NetworkID
	Sequence() uint64
	Kind() ItemKind
	isItem()
}

// TxParams holds the parameters of a submitted transaction.
type TxParams struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Value    string `json:"value,omitempty"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
	Data     string `json:"data,omitempty"`
}

// PendingTransaction is a transaction awaiting user approval.
type PendingTransaction struct {
	ID       string    `json:"id"`
	Network  NetworkID `json:"network"`
	Seq      uint64    `json:"seq"`
	Time     int64     `json:"time,omitempty"`
	MaxCost  string    `json:"maxCost"`
	TxParams TxParams  `json:"txParams"`
}

func (t PendingTransaction) ItemID() string         { return t.ID }
func (t PendingTransaction) ItemNetwork() NetworkID { return t.Network }
func (t PendingTransaction) Sequence() uint64       { return t.Seq }
func (t PendingTransaction) Kind() ItemKind         { return ItemKindTransaction }
func (PendingTransaction) isItem()                  {}

// MsgParams holds the payload of a message-signing request.
type MsgParams struct {
	From string `json:"from,omitempty"`
	Data string `json:"data"`
}

// PendingMessage is a message-signing request awaiting user approval.
type PendingMessage struct {
	ID        string    `json:"id"`
	Network   NetworkID `json:"network"`
	Seq       uint64    `json:"seq"`
	Time      int64     `json:"time,omitempty"`
	MsgParams MsgParams `json:"msgParams"`
}

func (m PendingMessage) ItemID() string         { return m.ID }
func (m PendingMessage) ItemNetwork() NetworkID { return m.Network }
func (m PendingMessage) Sequence() uint64       { return m.Seq }
func (m PendingMessage) Kind() ItemKind         { return ItemKindMessage }
func (PendingMessage) isItem()                  {}
