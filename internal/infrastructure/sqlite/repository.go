package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"confirmtx/internal/application"
	"confirmtx/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository is the single-node store used when no MySQL server is
// configured.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS approvals (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			network TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT 0,
			max_cost TEXT NOT NULL DEFAULT '',
			params TEXT NOT NULL,
			UNIQUE(kind, id)
		)`,
		`CREATE TABLE IF NOT EXISTS account_balances (
			network TEXT NOT NULL,
			address TEXT NOT NULL,
			balance TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (network, address)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) StoreTransaction(ctx context.Context, tx domain.PendingTransaction) error {
	params, err := json.Marshal(tx.TxParams)
	if err != nil {
		return err
	}
	return r.upsert(ctx, domain.ItemKindTransaction, tx.ID, string(tx.Network), tx.Time, tx.MaxCost, string(params))
}

func (r *Repository) StoreMessage(ctx context.Context, msg domain.PendingMessage) error {
	params, err := json.Marshal(msg.MsgParams)
	if err != nil {
		return err
	}
	return r.upsert(ctx, domain.ItemKindMessage, msg.ID, string(msg.Network), msg.Time, "", string(params))
}

func (r *Repository) upsert(ctx context.Context, kind domain.ItemKind, id, network string, createdAt int64, maxCost, params string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO approvals (kind, id, network, created_at, max_cost, params)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			network = excluded.network,
			created_at = excluded.created_at,
			max_cost = excluded.max_cost,
			params = excluded.params`, string(kind), id, network, createdAt, maxCost, params)
	return err
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM approvals WHERE kind = ? AND id = ?`, string(domain.ItemKindTransaction), id)
	return err
}

func (r *Repository) DeleteMessage(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM approvals WHERE kind = ? AND id = ?`, string(domain.ItemKindMessage), id)
	return err
}

func (r *Repository) SetBalance(ctx context.Context, network domain.NetworkID, address string, balance string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO account_balances (network, address, balance, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(network, address) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`,
		string(network), strings.ToLower(address), balance, time.Now().Unix())
	return err
}

func (r *Repository) PendingState(ctx context.Context) (application.PendingState, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	state := application.NewPendingState()
	rows, err := r.db.QueryContext(ctx, `SELECT seq, kind, id, network, created_at, max_cost, params FROM approvals ORDER BY seq ASC`)
	if err != nil {
		return application.PendingState{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq                uint64
			kind, id, network  string
			createdAt          int64
			maxCost, paramsRaw string
		)
		if err := rows.Scan(&seq, &kind, &id, &network, &createdAt, &maxCost, &paramsRaw); err != nil {
			return application.PendingState{}, err
		}
		if err := addRow(&state, seq, kind, id, network, createdAt, maxCost, paramsRaw); err != nil {
			return application.PendingState{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return application.PendingState{}, err
	}
	// The accounts query needs the single connection back.
	rows.Close()

	accountRows, err := r.db.QueryContext(ctx, `SELECT network, address, balance FROM account_balances`)
	if err != nil {
		return application.PendingState{}, err
	}
	defer accountRows.Close()
	for accountRows.Next() {
		var account domain.Account
		if err := accountRows.Scan(&account.Network, &account.Address, &account.Balance); err != nil {
			return application.PendingState{}, err
		}
		state.SetAccount(account)
	}
	if err := accountRows.Err(); err != nil {
		return application.PendingState{}, err
	}
	return state, nil
}

func addRow(state *application.PendingState, seq uint64, kind, id, network string, createdAt int64, maxCost, paramsRaw string) error {
	switch domain.ItemKind(kind) {
	case domain.ItemKindTransaction:
		var params domain.TxParams
		if err := json.Unmarshal([]byte(paramsRaw), &params); err != nil {
			return fmt.Errorf("decode params of transaction %s: %w", id, err)
		}
		state.Transactions[id] = domain.PendingTransaction{
			ID:       id,
			Network:  domain.NetworkID(network),
			Seq:      seq,
			Time:     createdAt,
			MaxCost:  maxCost,
			TxParams: params,
		}
	case domain.ItemKindMessage:
		var params domain.MsgParams
		if err := json.Unmarshal([]byte(paramsRaw), &params); err != nil {
			return fmt.Errorf("decode params of message %s: %w", id, err)
		}
		state.Messages[id] = domain.PendingMessage{
			ID:        id,
			Network:   domain.NetworkID(network),
			Seq:       seq,
			Time:      createdAt,
			MsgParams: params,
		}
	default:
		return fmt.Errorf("approval %s: %w", id, domain.ErrUnknownKind)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
