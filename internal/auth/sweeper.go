// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/holomush/gatehouse/pkg/errutil"
)

// ExpiredSessionDeleter is implemented by session stores that do not
// expire entries on their own.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SweepExpiredSessions calls store.DeleteExpired every interval until ctx
// is done.
func SweepExpiredSessions(ctx context.Context, store ExpiredSessionDeleter, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errutil.LogError(logger, "failed to delete expired sessions", err)
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "deleted expired sessions", "count", n)
			}
		}
	}
}
