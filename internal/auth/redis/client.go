// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis stores sessions in Redis so several server instances can
// share them. Expiry is delegated to Redis key TTLs.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// ClientConfig holds the connection settings for NewClient.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

const clientTimeout = 2 * time.Second

// NewClient creates a Redis client. It does not dial; call Ping to check
// connectivity.
func NewClient(cfg ClientConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  clientTimeout,
		ReadTimeout:  clientTimeout,
		WriteTimeout: clientTimeout,
	})
}

// Ping checks that Redis answers.
func Ping(ctx context.Context, client goredis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return oops.Code("REDIS_UNAVAILABLE").
			With("operation", "ping").
			Wrap(err)
	}
	return nil
}
