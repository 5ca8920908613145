// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/gatehouse/internal/auth"
	"github.com/holomush/gatehouse/internal/auth/memory"
	"github.com/holomush/gatehouse/internal/auth/postgres"
	"github.com/holomush/gatehouse/internal/auth/redis"
	"github.com/holomush/gatehouse/internal/store"
)

// backends holds the stores selected by configuration.
type backends struct {
	users    auth.UserRepository
	sessions auth.SessionStore
	// sweeper is nil when the session store expires entries itself.
	sweeper auth.ExpiredSessionDeleter

	pool  *pgxpool.Pool
	redis *goredis.Client
}

// openBackends connects the configured stores. Close must be called even
// when an error is returned.
func openBackends(ctx context.Context, cfg *Config) (*backends, error) {
	b := &backends{}

	if cfg.usesPostgres() {
		pool, err := store.Connect(ctx, cfg.Store.DatabaseURL, store.ConnectOptions{MaxConns: cfg.Store.MaxConns})
		if err != nil {
			return b, err
		}
		b.pool = pool
	}

	switch cfg.Store.Backend {
	case backendPostgres:
		b.users = postgres.NewUserRepository(b.pool)
	case backendMemory:
		b.users = memory.NewUserRepository()
	default:
		return b, oops.Code("CONFIG_INVALID").With("key", "store.backend").Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	switch cfg.Session.Backend {
	case backendRedis:
		b.redis = redis.NewClient(redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redis.Ping(ctx, b.redis); err != nil {
			return b, err
		}
		var opts []redis.SessionStoreOption
		if cfg.Redis.KeyPrefix != "" {
			opts = append(opts, redis.WithKeyPrefix(cfg.Redis.KeyPrefix))
		}
		b.sessions = redis.NewSessionStore(b.redis, opts...)
	case backendPostgres:
		sessions := postgres.NewSessionStore(b.pool)
		b.sessions = sessions
		b.sweeper = sessions
	case backendMemory:
		sessions := memory.NewSessionStore()
		b.sessions = sessions
		b.sweeper = sessions
	default:
		return b, oops.Code("CONFIG_INVALID").With("key", "session.backend").Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	return b, nil
}

// ready reports whether every network store answers.
func (b *backends) ready(ctx context.Context) error {
	if b.pool != nil {
		if err := b.pool.Ping(ctx); err != nil {
			return oops.Code("DB_UNAVAILABLE").With("operation", "ping").Wrap(err)
		}
	}
	if b.redis != nil {
		if err := redis.Ping(ctx, b.redis); err != nil {
			return err
		}
	}
	return nil
}

// Close releases connections.
func (b *backends) Close() {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			slog.Debug("error closing redis client", "error", err)
		}
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
