// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/gatehouse/internal/auth"
	"github.com/holomush/gatehouse/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.UserRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupTables(ctx)
		repo = postgres.NewUserRepository(testPool)
	})

	newHashedUser := func(email string) *auth.User {
		u, err := auth.CreateDefaultUser("Ann", email, "pw123")
		Expect(err).NotTo(HaveOccurred())
		u.PasswordHash = "$2a$10$0123456789012345678901uFakeHashForIntegrationTestsOnly.."
		return u
	}

	It("round-trips a user and finds it case-insensitively", func() {
		u := newHashedUser("ann@x.com")
		Expect(repo.Create(ctx, u)).To(Succeed())

		got, err := repo.GetByEmail(ctx, "ANN@X.COM")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(u.ID))
		Expect(got.Location).To(Equal(auth.DefaultLocation))
		Expect(got.CreatedAt).To(BeTemporally("~", u.CreatedAt, time.Millisecond))

		byID, err := repo.GetByID(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Email).To(Equal("ann@x.com"))
	})

	It("reports a missing user as not found", func() {
		_, err := repo.GetByEmail(ctx, "nobody@x.com")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("lets exactly one of two concurrent registrations win", func() {
		var (
			wg      sync.WaitGroup
			results = make([]error, 2)
		)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				results[i] = repo.Create(ctx, newHashedUser("race@x.com"))
			}(i)
		}
		wg.Wait()

		var ok, taken int
		for _, err := range results {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, auth.ErrEmailTaken):
				taken++
			}
		}
		Expect(ok).To(Equal(1))
		Expect(taken).To(Equal(1))
	})
})

var _ = Describe("SessionStore", func() {
	var (
		ctx   context.Context
		store *postgres.SessionStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupTables(ctx)
		store = postgres.NewSessionStore(testPool)
	})

	put := func(principal string, ttl time.Duration) *auth.Session {
		_, hash, err := auth.GenerateSessionToken()
		Expect(err).NotTo(HaveOccurred())
		sess, err := auth.NewSession(principal, hash, "ua", "127.0.0.1", time.Now().Add(ttl))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Put(ctx, sess)).To(Succeed())
		return sess
	}

	It("returns live sessions and hides expired ones", func() {
		live := put("01ARZ3NDEKTSV4RRFFQ69G5FAV", time.Hour)
		expired := put("01ARZ3NDEKTSV4RRFFQ69G5FAV", -time.Minute)

		got, err := store.Get(ctx, live.TokenHash)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Principal).To(Equal(live.Principal))

		_, err = store.Get(ctx, expired.TokenHash)
		Expect(err).To(MatchError(auth.ErrNotFound))

		n, err := store.DeleteExpired(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})

	It("deletes every session of a principal", func() {
		put("01ARZ3NDEKTSV4RRFFQ69G5FAV", time.Hour)
		put("01ARZ3NDEKTSV4RRFFQ69G5FAV", time.Hour)
		other := put("01BX5ZZKBKACTAV9WEVGEMMVRZ", time.Hour)

		n, err := store.DeleteByPrincipal(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(2)))

		_, err = store.Get(ctx, other.TokenHash)
		Expect(err).NotTo(HaveOccurred())
	})

	It("treats deleting a missing session as success", func() {
		Expect(store.Delete(ctx, "does-not-exist")).To(Succeed())
	})
})
