// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes registration, login, logout and the session-guarded
// dashboard over HTTP with gin.
package web

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// DefaultMaxBodyBytes caps request bodies when RouterConfig leaves it unset.
const DefaultMaxBodyBytes = 64 << 10

// MetricsMiddleware supplies per-request metrics.
// *observability.Metrics implements it.
type MetricsMiddleware interface {
	GinMiddleware() gin.HandlerFunc
}

// RouterConfig wires the router.
type RouterConfig struct {
	Service AuthService
	Cookies CookieConfig
	Logger  *slog.Logger
	Version string

	// Metrics is optional.
	Metrics MetricsMiddleware
	// TraceService, when set, enables otelgin spans under that service name.
	TraceService string
	MaxBodyBytes int64
}

// NewRouter builds the gin engine. The caller chooses the gin mode.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r := gin.New()
	r.Use(Recovery(logger))
	r.Use(RequestID())
	if cfg.TraceService != "" {
		r.Use(otelgin.Middleware(cfg.TraceService))
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.GinMiddleware())
	}
	r.Use(RequestLogger(logger))
	r.Use(SecurityHeaders())
	r.Use(MaxBodyBytes(maxBody))

	r.NoRoute(func(c *gin.Context) {
		RespondError(c, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	h := NewAuthHandler(cfg.Service, cfg.Cookies, logger, cfg.Version)
	r.GET("/", h.Home)
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/dashboard", RequireSession(cfg.Service, cfg.Cookies, logger), h.Dashboard)

	return r
}
