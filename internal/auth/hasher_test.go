// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/gatehouse/internal/auth"
	"github.com/holomush/gatehouse/pkg/errutil"
)

func newTestHasher(t *testing.T) *auth.BcryptHasher {
	t.Helper()
	h, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestNewBcryptHasher(t *testing.T) {
	t.Run("zero cost selects default", func(t *testing.T) {
		h, err := auth.NewBcryptHasher(0)
		require.NoError(t, err)
		assert.Equal(t, 10, h.Cost())
		assert.Equal(t, auth.DefaultBcryptCost, h.Cost())
	})

	t.Run("rejects out of range cost", func(t *testing.T) {
		for _, cost := range []int{-1, bcrypt.MinCost - 1, bcrypt.MaxCost + 1} {
			_, err := auth.NewBcryptHasher(cost)
			require.Error(t, err, "cost %d", cost)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_COST")
		}
	})
}

func TestBcryptHasher_Hash(t *testing.T) {
	hasher := newTestHasher(t)

	t.Run("produces bcrypt hash", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2a$"))

		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.MinCost, cost)
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.ErrorIs(t, err, auth.ErrEmptyPassword)
		errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
	})

	t.Run("accepts password at the byte limit", func(t *testing.T) {
		_, err := hasher.Hash(strings.Repeat("a", auth.MaxPasswordBytes))
		require.NoError(t, err)
	})

	t.Run("rejects password over the byte limit", func(t *testing.T) {
		_, err := hasher.Hash(strings.Repeat("a", auth.MaxPasswordBytes+1))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_PASSWORD_TOO_LONG")
	})
}

func TestBcryptHasher_Verify(t *testing.T) {
	hasher := newTestHasher(t)
	hash, err := hasher.Hash("correctpassword")
	require.NoError(t, err)

	t.Run("correct password verifies", func(t *testing.T) {
		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("verifies hash produced at another cost", func(t *testing.T) {
		other, err := bcrypt.GenerateFromPassword([]byte("correctpassword"), bcrypt.MinCost+1)
		require.NoError(t, err)

		ok, err := hasher.Verify("correctpassword", string(other))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("malformed hash returns error", func(t *testing.T) {
		ok, err := hasher.Verify("correctpassword", "not-a-bcrypt-hash")
		require.Error(t, err)
		assert.False(t, ok)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
	})
}
