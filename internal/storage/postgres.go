package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/HVN-Network/permission_layer/internal/config"
	"github.com/HVN-Network/permission_layer/ledger"
)

// PostgresStore persists events to Postgres through sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

var _ EventStore = (*PostgresStore)(nil)

// eventRow is the table mapping for events.
type eventRow struct {
	ID       uuid.UUID `db:"id"`
	TxID     uuid.UUID `db:"tx_id"`
	Seq      uint64    `db:"seq"`
	Contract string    `db:"contract"`
	Name     string    `db:"name"`
	Attrs    []byte    `db:"attrs"`
	Time     int64     `db:"event_time"`
}

// Open connects to Postgres, applies pool settings from cfg and runs the
// schema migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := Apply(ctx, db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing connection. Used by tests backed by
// sqlmock.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveEvents(ctx context.Context, events []ledger.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO events (id, tx_id, seq, contract, name, attrs, event_time)
		VALUES (:id, :tx_id, :seq, :contract, :name, :attrs, :event_time)
		ON CONFLICT (seq) DO NOTHING`
	for _, e := range events {
		row, err := toRow(e)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
			return fmt.Errorf("insert event %d: %w", e.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Events(ctx context.Context, filter EventFilter) ([]ledger.Event, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, fmt.Sprintf("seq > $%d", len(args)+1))
	args = append(args, filter.AfterSeq)
	if filter.Contract != nil {
		where = append(where, fmt.Sprintf("contract = $%d", len(args)+1))
		args = append(args, filter.Contract.Hex())
	}
	if filter.Name != "" {
		where = append(where, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, filter.Name)
	}
	args = append(args, normalizeLimit(filter.Limit))

	query := fmt.Sprintf(
		`SELECT id, tx_id, seq, contract, name, attrs, event_time FROM events
		 WHERE %s ORDER BY seq ASC LIMIT $%d`,
		strings.Join(where, " AND "), len(args),
	)

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}

	out := make([]ledger.Event, 0, len(rows))
	for _, r := range rows {
		e, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *PostgresStore) LatestSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.db.GetContext(ctx, &seq, `SELECT COALESCE(MAX(seq), 0) FROM events`)
	if err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return seq, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func toRow(e ledger.Event) (eventRow, error) {
	attrs, err := json.Marshal(e.Attrs)
	if err != nil {
		return eventRow{}, fmt.Errorf("encode attrs for event %d: %w", e.Seq, err)
	}
	return eventRow{
		ID:       e.ID,
		TxID:     e.TxID,
		Seq:      e.Seq,
		Contract: e.Contract.Hex(),
		Name:     e.Name,
		Attrs:    attrs,
		Time:     e.Time,
	}, nil
}

func fromRow(r eventRow) (ledger.Event, error) {
	contract, err := ledger.ParseAddress(r.Contract)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("event %d: %w", r.Seq, err)
	}
	var attrs []ledger.Attr
	if len(r.Attrs) > 0 {
		if err := json.Unmarshal(r.Attrs, &attrs); err != nil {
			return ledger.Event{}, fmt.Errorf("decode attrs for event %d: %w", r.Seq, err)
		}
	}
	return ledger.Event{
		ID:       r.ID,
		TxID:     r.TxID,
		Seq:      r.Seq,
		Contract: contract,
		Name:     r.Name,
		Attrs:    attrs,
		Time:     r.Time,
	}, nil
}
