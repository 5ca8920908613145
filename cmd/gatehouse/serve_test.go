// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatehouse/pkg/errutil"
)

func memoryServeConfig(t *testing.T) *Config {
	t.Helper()
	cfg := validConfig(t)
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Metrics.Addr = ""
	cfg.Store.Backend = backendMemory
	cfg.Session.Backend = backendMemory
	cfg.Log.Level = "error"
	cfg.Hasher.Cost = 4
	cfg.Hasher.Workers = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

// startServe runs runServe in the background and waits for the listener.
func startServe(t *testing.T, cfg *Config) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	done := make(chan error, 1)

	go func() {
		done <- runServe(ctx, cfg, new(bytes.Buffer), func(addr string) { addrCh <- addr })
	}()

	select {
	case addr := <-addrCh:
		return "http://" + addr, cancel, done
	case err := <-done:
		cancel()
		t.Fatalf("server exited before listening: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("timed out waiting for server")
	}
	return "", cancel, done
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRunServe_MemoryBackends(t *testing.T) {
	base, cancel, done := startServe(t, memoryServeConfig(t))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Timeout: 5 * time.Second}

	resp, err := client.Get(base + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, base+"/register", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "pw", "confirm": "pw",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, client, base+"/login", map[string]string{
		"email": "ann@example.com", "password": "pw",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(base + "/dashboard")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServe_ListenFailure(t *testing.T) {
	cfg := memoryServeConfig(t)
	cfg.Server.Addr = "256.0.0.1:http"

	err := runServe(context.Background(), cfg, new(bytes.Buffer), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "LISTEN_FAILED")
}

func TestRunServe_InvalidLogLevel(t *testing.T) {
	cfg := memoryServeConfig(t)
	cfg.Log.Level = "loud"

	err := runServe(context.Background(), cfg, new(bytes.Buffer), nil)
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestRunServe_PrintsBanner(t *testing.T) {
	cfg := memoryServeConfig(t)
	out := new(bytes.Buffer)
	ctx, cancel := context.WithCancel(context.Background())

	err := runServe(ctx, cfg, out, func(string) { cancel() })
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "gatehouse listening on 127.0.0.1:"))
}

func TestMonitorServerErrors(t *testing.T) {
	t.Run("error cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		errCh <- errors.New("bind failed")

		monitorServerErrors(ctx, cancel, errCh, "observability")
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("closed channel does not cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)

		monitorServerErrors(ctx, cancel, errCh, "observability")
		assert.NoError(t, ctx.Err())
	})

	t.Run("returns when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		monitorServerErrors(ctx, cancel, make(chan error), "observability")
	})
}
