// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// CredentialHasher is the context-aware hashing contract used by the
// strategy and the commands. HashPool is the production implementation.
type CredentialHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// HashObserver receives the duration of each completed hash operation.
// op is "hash" or "verify".
type HashObserver interface {
	ObserveHash(op string, d time.Duration)
}

// HashPool runs a PasswordHasher on a bounded number of workers so slow
// hashes never execute on the caller's goroutine.
type HashPool struct {
	hasher   PasswordHasher
	sem      *semaphore.Weighted
	workers  int
	observer HashObserver
}

// HashPoolOption configures a HashPool.
type HashPoolOption func(*HashPool)

// WithHashObserver reports operation durations to o.
func WithHashObserver(o HashObserver) HashPoolOption {
	return func(p *HashPool) {
		p.observer = o
	}
}

// NewHashPool wraps hasher in a pool of the given size.
// A non-positive size selects GOMAXPROCS.
func NewHashPool(hasher PasswordHasher, workers int, opts ...HashPoolOption) (*HashPool, error) {
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &HashPool{
		hasher:  hasher,
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Workers returns the maximum number of concurrent hash operations.
func (p *HashPool) Workers() int {
	return p.workers
}

type hashResult struct {
	hash string
	ok   bool
	err  error
}

// Hash hashes password on a pool worker.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	res, err := p.run(ctx, "hash", func() hashResult {
		h, err := p.hasher.Hash(password)
		return hashResult{hash: h, err: err}
	})
	if err != nil {
		return "", err
	}
	return res.hash, res.err
}

// Verify compares password against hash on a pool worker.
func (p *HashPool) Verify(ctx context.Context, password, hash string) (bool, error) {
	res, err := p.run(ctx, "verify", func() hashResult {
		ok, err := p.hasher.Verify(password, hash)
		return hashResult{ok: ok, err: err}
	})
	if err != nil {
		return false, err
	}
	return res.ok, res.err
}

// run waits for a free worker, executes fn on it and waits for the result.
// The worker always runs to completion and releases its slot, even when
// the caller stops waiting.
func (p *HashPool) run(ctx context.Context, op string, fn func() hashResult) (hashResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return hashResult{}, oops.Code("AUTH_HASH_TIMEOUT").
			With("operation", op).
			With("stage", "acquire worker").
			Wrap(err)
	}

	done := make(chan hashResult, 1)
	go func() {
		defer p.sem.Release(1)
		start := time.Now()
		res := fn()
		if p.observer != nil {
			p.observer.ObserveHash(op, time.Since(start))
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return hashResult{}, oops.Code("AUTH_HASH_TIMEOUT").
			With("operation", op).
			With("stage", "await result").
			Wrap(ctx.Err())
	}
}
