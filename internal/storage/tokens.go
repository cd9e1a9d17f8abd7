package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/genomechain/genome-ledger/internal/chain"
)

const tokenColumns = "id, key_hash, name, is_admin, address, created_at"

// CreateToken stores a token hash bound to address.
// Returns ErrDuplicate if a token with this hash already exists.
func (s *SQLiteStorage) CreateToken(ctx context.Context, name string, isAdmin bool, address chain.Address, keyHash string) (*Token, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO tokens (key_hash, name, is_admin, address) VALUES (?, ?, ?, ?)",
		keyHash, name, isAdmin, address.Hex())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert ID: %w", err)
	}
	return s.GetTokenByID(ctx, id)
}

// GetTokenByHash looks a token up during authentication.
// Returns ErrNotFound if the hash doesn't exist.
func (s *SQLiteStorage) GetTokenByHash(ctx context.Context, keyHash string) (*Token, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM tokens WHERE key_hash = ?", keyHash)
	return scanToken(row)
}

// GetTokenByID returns ErrNotFound if the token doesn't exist.
func (s *SQLiteStorage) GetTokenByID(ctx context.Context, id int64) (*Token, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM tokens WHERE id = ?", id)
	return scanToken(row)
}

// ListTokens returns all tokens, oldest first.
func (s *SQLiteStorage) ListTokens(ctx context.Context) ([]*Token, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+tokenColumns+" FROM tokens ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	tokens := make([]*Token, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}
	return tokens, nil
}

// DeleteToken returns ErrNotFound if the token doesn't exist.
func (s *SQLiteStorage) DeleteToken(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasAnyAdminToken reports whether at least one admin token exists.
func (s *SQLiteStorage) HasAnyAdminToken(ctx context.Context) (bool, error) {
	n, err := s.CountAdminTokens(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountAdminTokens returns the number of admin tokens.
func (s *SQLiteStorage) CountAdminTokens(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tokens WHERE is_admin = TRUE").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admin tokens: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(row scanner) (*Token, error) {
	var (
		t    Token
		addr string
	)
	if err := row.Scan(&t.ID, &t.KeyHash, &t.Name, &t.IsAdmin, &addr, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}
	a, err := chain.ParseAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("token %d has a corrupt address: %w", t.ID, err)
	}
	t.Address = a
	return &t, nil
}
