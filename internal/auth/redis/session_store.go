// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/gatehouse/internal/auth"
)

// DefaultKeyPrefix namespaces every key written by SessionStore.
const DefaultKeyPrefix = "gatehouse:"

type sessionRecord struct {
	TokenHash string    `json:"token_hash"`
	Principal string    `json:"principal"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore implements auth.SessionStore on Redis. Each session is a
// string key with a TTL; a set per principal indexes its sessions.
type SessionStore struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) SessionStoreOption {
	return func(s *SessionStore) { s.prefix = prefix }
}

// NewSessionStore creates a SessionStore on client.
func NewSessionStore(client goredis.UniversalClient, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{client: client, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) sessionKey(tokenHash string) string {
	return s.prefix + "session:" + tokenHash
}

func (s *SessionStore) principalKey(principal string) string {
	return s.prefix + "principal:" + principal
}

// Put stores a session with a TTL matching its expiry. Sessions that are
// already expired are not written.
func (s *SessionStore) Put(ctx context.Context, session *auth.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(sessionRecord(*session))
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").
			With("principal", session.Principal).
			Wrap(err)
	}

	idx := s.principalKey(session.Principal)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.TokenHash), data, ttl)
		pipe.SAdd(ctx, idx, session.TokenHash)
		// NX sets a TTL on a new index; GT extends it for longer sessions.
		pipe.ExpireNX(ctx, idx, ttl)
		pipe.ExpireGT(ctx, idx, ttl)
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "store session").
			With("principal", session.Principal).
			Wrap(err)
	}
	return nil
}

// Get retrieves a live session by token hash.
func (s *SessionStore) Get(ctx context.Context, tokenHash string) (*auth.Session, error) {
	rec, err := s.load(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	sess := auth.Session(*rec)
	if sess.IsExpiredAt(s.now()) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &sess, nil
}

func (s *SessionStore) load(ctx context.Context, tokenHash string) (*sessionRecord, error) {
	data, err := s.client.Get(ctx, s.sessionKey(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").
			With("operation", "decode session").
			Wrap(err)
	}
	return &rec, nil
}

// Delete removes a session and its index entry.
func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	rec, err := s.load(ctx, tokenHash)
	if errors.Is(err, auth.ErrNotFound) {
		return nil
	}
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("operation", "delete session").Wrap(err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(tokenHash))
		pipe.SRem(ctx, s.principalKey(rec.Principal), tokenHash)
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("operation", "delete session").Wrap(err)
	}
	return nil
}

// DeleteByPrincipal removes every live session of a principal.
func (s *SessionStore) DeleteByPrincipal(ctx context.Context, principal string) (int64, error) {
	idx := s.principalKey(principal)
	hashes, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "list sessions by principal").
			With("principal", principal).
			Wrap(err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, s.sessionKey(h))
	}

	var deleted *goredis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, idx)
		return nil
	})
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete sessions by principal").
			With("principal", principal).
			Wrap(err)
	}
	if deleted == nil {
		return 0, nil
	}
	return deleted.Val(), nil
}

var _ auth.SessionStore = (*SessionStore)(nil)
