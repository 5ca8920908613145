// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatehouse/internal/auth"
	"github.com/holomush/gatehouse/internal/auth/postgres"
	"github.com/holomush/gatehouse/pkg/errutil"
)

var userColumns = []string{"id", "name", "email", "password_hash", "location", "created_at"}

func hashedUser(t *testing.T) *auth.User {
	t.Helper()
	return &auth.User{
		ID:           ulid.Make(),
		Name:         "Ann",
		Email:        "ann@x.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuuABCDEFGHIJKLMNOPQRSTUVWXYZ01234",
		Location:     "Kyiv",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, u *auth.User)
		wantCode  string
		wantTaken bool
	}{
		{
			name: "inserts user",
			setupMock: func(mock pgxmock.PgxPoolIface, u *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(u.ID.String(), u.Name, u.Email, u.PasswordHash, u.Location, u.CreatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "unique email violation maps to ErrEmailTaken",
			setupMock: func(mock pgxmock.PgxPoolIface, _ *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"})
			},
			wantCode:  "USER_EMAIL_TAKEN",
			wantTaken: true,
		},
		{
			name: "primary key violation is not an email conflict",
			setupMock: func(mock pgxmock.PgxPoolIface, _ *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_pkey"})
			},
			wantCode: "USER_CREATE_FAILED",
		},
		{
			name: "connection error",
			setupMock: func(mock pgxmock.PgxPoolIface, _ *auth.User) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "USER_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			u := hashedUser(t)
			tt.setupMock(mock, u)

			repo := postgres.NewUserRepository(mock)
			err = repo.Create(ctx, u)

			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				assert.Equal(t, tt.wantTaken, errors.Is(err, auth.ErrEmailTaken))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Create_RejectsUnhashedUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	u, err := auth.CreateDefaultUser("Ann", "ann@x.com", "pw123")
	require.NoError(t, err)

	repo := postgres.NewUserRepository(mock)
	err = repo.Create(context.Background(), u)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "USER_PASSWORD_NOT_HASHED")
	assert.NoError(t, mock.ExpectationsWereMet(), "no statement may reach the database")
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("returns user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		u := hashedUser(t)
		mock.ExpectQuery(`WHERE LOWER\(email\) = LOWER\(\$1\)`).
			WithArgs("ANN@x.com").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow(u.ID.String(), u.Name, u.Email, u.PasswordHash, u.Location, u.CreatedAt))

		repo := postgres.NewUserRepository(mock)
		got, err := repo.GetByEmail(ctx, "ANN@x.com")
		require.NoError(t, err)
		assert.Equal(t, u, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user wraps ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM users`).
			WithArgs("nobody@x.com").
			WillReturnRows(pgxmock.NewRows(userColumns))

		repo := postgres.NewUserRepository(mock)
		got, err := repo.GetByEmail(ctx, "nobody@x.com")
		assert.Nil(t, got)
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("query error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM users`).
			WithArgs("ann@x.com").
			WillReturnError(errors.New("connection reset"))

		repo := postgres.NewUserRepository(mock)
		_, err = repo.GetByEmail(ctx, "ann@x.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_GET_BY_EMAIL_FAILED")
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns user", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		u := hashedUser(t)
		mock.ExpectQuery(`WHERE id = \$1`).
			WithArgs(u.ID.String()).
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow(u.ID.String(), u.Name, u.Email, u.PasswordHash, u.Location, u.CreatedAt))

		repo := postgres.NewUserRepository(mock)
		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, u.Email, got.Email)
	})

	t.Run("corrupt id column", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectQuery(`WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow("not-a-ulid", "Ann", "ann@x.com", "hash", "Kyiv", time.Now()))

		repo := postgres.NewUserRepository(mock)
		_, err = repo.GetByID(ctx, id)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_INVALID_ID")
	})

	t.Run("missing user wraps ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectQuery(`WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(userColumns))

		repo := postgres.NewUserRepository(mock)
		_, err = repo.GetByID(ctx, id)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("query error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectQuery(`WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(errors.New("connection reset"))

		repo := postgres.NewUserRepository(mock)
		_, err = repo.GetByID(ctx, id)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_GET_BY_ID_FAILED")
		errutil.AssertErrorContext(t, err, "id", id.String())
	})
}
