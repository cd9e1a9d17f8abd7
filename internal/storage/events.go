package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/genomechain/genome-ledger/internal/chain"
)

// AppendEvents writes one committed batch atomically.
func (s *SQLiteStorage) AppendEvents(ctx context.Context, events []chain.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO events (seq, idx, tx_id, time_unix, contract, name, fields) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, e := range events {
		fields, err := json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode fields of %s: %w", e.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, e.Seq, e.Index, e.TxID, e.Time.Unix(), e.Contract.Hex(), e.Name, string(fields)); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("event %d/%d: %w", e.Seq, e.Index, ErrDuplicate)
			}
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// Publish implements chain.Sink so the store can record the engine's log directly.
func (s *SQLiteStorage) Publish(ctx context.Context, events []chain.Event) error {
	return s.AppendEvents(ctx, events)
}

// ListEvents returns matching events in commit order.
func (s *SQLiteStorage) ListEvents(ctx context.Context, f EventFilter) ([]chain.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}
	if !f.Contract.IsZero() {
		where = append(where, "contract = ?")
		args = append(args, f.Contract.Hex())
	}
	if f.Name != "" {
		where = append(where, "name = ?")
		args = append(args, f.Name)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	query := "SELECT seq, idx, tx_id, time_unix, contract, name, fields FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, idx ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	events := make([]chain.Event, 0)
	for rows.Next() {
		var (
			e              chain.Event
			unix           int64
			contract, data string
		)
		if err := rows.Scan(&e.Seq, &e.Index, &e.TxID, &unix, &contract, &e.Name, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.Contract, err = chain.ParseAddress(contract); err != nil {
			return nil, fmt.Errorf("event %d/%d: %w", e.Seq, e.Index, err)
		}
		if err := json.Unmarshal([]byte(data), &e.Fields); err != nil {
			return nil, fmt.Errorf("event %d/%d fields: %w", e.Seq, e.Index, err)
		}
		e.Time = time.Unix(unix, 0).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
