// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionCodec converts principals to the compact form kept in session
// storage and back.
type SessionCodec struct {
	users UserRepository
}

// NewSessionCodec creates a SessionCodec that resolves principals through users.
func NewSessionCodec(users UserRepository) (*SessionCodec, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	return &SessionCodec{users: users}, nil
}

// Serialize returns the stored form of p.
func (c *SessionCodec) Serialize(p Principal) string {
	return p.UserID.String()
}

// Deserialize resolves a serialized principal to its user. It returns
// (nil, nil) when the value is malformed or the user no longer exists.
func (c *SessionCodec) Deserialize(ctx context.Context, token string) (*User, error) {
	id, err := ulid.ParseStrict(token)
	if err != nil {
		return nil, nil
	}

	user, err := c.users.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("SESSION_DESERIALIZE_FAILED").
			With("operation", "get user by id").
			With("user_id", id.String()).
			Wrap(err)
	}
	return user, nil
}
