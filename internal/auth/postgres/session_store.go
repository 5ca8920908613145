// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/gatehouse/internal/auth"
)

// SessionStore implements auth.SessionStore using PostgreSQL.
type SessionStore struct {
	pool poolIface
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool poolIface) *SessionStore {
	return &SessionStore{pool: pool}
}

// Put stores a session, replacing any row with the same token hash.
func (s *SessionStore) Put(ctx context.Context, session *auth.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token_hash, principal, user_agent, ip_address, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_hash) DO UPDATE SET
			principal = EXCLUDED.principal,
			user_agent = EXCLUDED.user_agent,
			ip_address = EXCLUDED.ip_address,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`,
		session.TokenHash,
		session.Principal,
		session.UserAgent,
		session.IPAddress,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("principal", session.Principal).
			Wrap(err)
	}
	return nil
}

// Get retrieves a live session by token hash.
func (s *SessionStore) Get(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT token_hash, principal, user_agent, ip_address, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1 AND expires_at > $2
	`, tokenHash, time.Now())

	var sess auth.Session
	err := row.Scan(
		&sess.TokenHash,
		&sess.Principal,
		&sess.UserAgent,
		&sess.IPAddress,
		&sess.CreatedAt,
		&sess.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return &sess, nil
}

// Delete removes a session by token hash.
func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteByPrincipal removes every session of a principal.
func (s *SessionStore) DeleteByPrincipal(ctx context.Context, principal string) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE principal = $1`, principal)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete sessions by principal").
			With("principal", principal).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, time.Now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface checks.
var (
	_ auth.SessionStore          = (*SessionStore)(nil)
	_ auth.ExpiredSessionDeleter = (*SessionStore)(nil)
)
