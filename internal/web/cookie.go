// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultCookieName names the session cookie when none is configured.
const DefaultCookieName = "gatehouse_session"

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Domain string
	// Secure restricts the cookie to HTTPS. Disable only for local development.
	Secure bool
}

func (cc CookieConfig) name() string {
	if cc.Name == "" {
		return DefaultCookieName
	}
	return cc.Name
}

func (cc CookieConfig) set(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cc.name(), token, maxAge, "/", cc.Domain, cc.Secure, true)
}

func (cc CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cc.name(), "", -1, "/", cc.Domain, cc.Secure, true)
}
