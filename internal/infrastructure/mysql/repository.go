package mysql

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

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Repository stores pending approvals in MySQL. Transactions and messages
// share the approvals table so a single AUTO_INCREMENT column orders both.
type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS approvals (
			seq BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			kind VARCHAR(16) NOT NULL,
			id VARCHAR(128) NOT NULL,
			network VARCHAR(64) NOT NULL,
			created_at BIGINT NOT NULL DEFAULT 0,
			max_cost VARCHAR(80) NOT NULL DEFAULT '',
			params MEDIUMTEXT NOT NULL,
			PRIMARY KEY (seq),
			UNIQUE KEY approvals_unique (kind, id),
			KEY approvals_network_idx (network, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS account_balances (
			network VARCHAR(64) NOT NULL,
			address VARCHAR(42) NOT NULL,
			balance VARCHAR(80) NOT NULL,
			updated_at BIGINT NOT NULL DEFAULT 0,
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
	return r.storeApproval(ctx, domain.ItemKindTransaction, tx.ID, string(tx.Network), tx.Time, tx.MaxCost, params)
}

func (r *Repository) StoreMessage(ctx context.Context, msg domain.PendingMessage) error {
	params, err := json.Marshal(msg.MsgParams)
	if err != nil {
		return err
	}
	return r.storeApproval(ctx, domain.ItemKindMessage, msg.ID, string(msg.Network), msg.Time, "", params)
}

func (r *Repository) storeApproval(ctx context.Context, kind domain.ItemKind, id, network string, createdAt int64, maxCost string, params []byte) error {
	ctx, span := startDBSpan(ctx, "mysql.StoreApproval",
		attribute.String("approval.kind", string(kind)),
		attribute.String("approval.id", id),
		attribute.String("network", network),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// A replayed add must keep its original seq, so the row is updated in place.
	_, err := r.db.ExecContext(ctx, `INSERT INTO approvals (kind, id, network, created_at, max_cost, params)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			network = VALUES(network),
			created_at = VALUES(created_at),
			max_cost = VALUES(max_cost),
			params = VALUES(params)`, string(kind), id, network, createdAt, maxCost, string(params))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	return r.deleteApproval(ctx, domain.ItemKindTransaction, id)
}

func (r *Repository) DeleteMessage(ctx context.Context, id string) error {
	return r.deleteApproval(ctx, domain.ItemKindMessage, id)
}

func (r *Repository) deleteApproval(ctx context.Context, kind domain.ItemKind, id string) error {
	ctx, span := startDBSpan(ctx, "mysql.DeleteApproval",
		attribute.String("approval.kind", string(kind)),
		attribute.String("approval.id", id),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM approvals WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) SetBalance(ctx context.Context, network domain.NetworkID, address string, balance string) error {
	ctx, span := startDBSpan(ctx, "mysql.SetBalance",
		attribute.String("network", string(network)),
		attribute.String("address", strings.ToLower(address)),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO account_balances (network, address, balance, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE balance = VALUES(balance), updated_at = VALUES(updated_at)`,
		string(network), strings.ToLower(address), balance, time.Now().Unix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) PendingState(ctx context.Context) (application.PendingState, error) {
	ctx, span := startDBSpan(ctx, "mysql.PendingState")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	state, err := r.loadPendingState(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return application.PendingState{}, err
	}
	span.SetAttributes(
		attribute.Int("tx.count", len(state.Transactions)),
		attribute.Int("msg.count", len(state.Messages)),
	)
	return state, nil
}

func (r *Repository) loadPendingState(ctx context.Context) (application.PendingState, error) {
	state := application.NewPendingState()

	rows, err := r.db.QueryContext(ctx, `SELECT seq, kind, id, network, created_at, max_cost, params FROM approvals ORDER BY seq ASC`)
	if err != nil {
		return state, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			seq       uint64
			kind      string
			id        string
			network   string
			createdAt int64
			maxCost   string
			params    string
		)
		if err := rows.Scan(&seq, &kind, &id, &network, &createdAt, &maxCost, &params); err != nil {
			return state, err
		}
		switch domain.ItemKind(kind) {
		case domain.ItemKindTransaction:
			tx := domain.PendingTransaction{ID: id, Network: domain.NetworkID(network), Seq: seq, Time: createdAt, MaxCost: maxCost}
			if err := json.Unmarshal([]byte(params), &tx.TxParams); err != nil {
				return state, fmt.Errorf("decode params of transaction %s: %w", id, err)
			}
			state.Transactions[id] = tx
		case domain.ItemKindMessage:
			msg := domain.PendingMessage{ID: id, Network: domain.NetworkID(network), Seq: seq, Time: createdAt}
			if err := json.Unmarshal([]byte(params), &msg.MsgParams); err != nil {
				return state, fmt.Errorf("decode params of message %s: %w", id, err)
			}
			state.Messages[id] = msg
		default:
			return state, fmt.Errorf("approval %s: %w", id, domain.ErrUnknownKind)
		}
	}
	if err := rows.Err(); err != nil {
		return state, err
	}

	accountRows, err := r.db.QueryContext(ctx, `SELECT network, address, balance FROM account_balances`)
	if err != nil {
		return state, err
	}
	defer accountRows.Close()
	for accountRows.Next() {
		var account domain.Account
		if err := accountRows.Scan(&account.Network, &account.Address, &account.Balance); err != nil {
			return state, err
		}
		state.SetAccount(account)
	}
	return state, accountRows.Err()
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("confirmtx/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
