// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the body of every failed response, under the "error" key.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func requestIDFrom(c *gin.Context) string {
	if id := c.GetString(ctxRequestID); id != "" {
		return id
	}
	return c.GetHeader(requestIDHeader)
}

// RespondError writes an APIError and aborts the handler chain.
func RespondError(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(c),
			Details:   details,
		},
	})
}

// RespondBadRequest reports malformed input.
func RespondBadRequest(c *gin.Context, message string, details any) {
	RespondError(c, http.StatusBadRequest, "invalid_request", message, details)
}

// RespondUnauthorized reports a missing or invalid session.
func RespondUnauthorized(c *gin.Context, message string) {
	RespondError(c, http.StatusUnauthorized, "unauthenticated", message, nil)
}

// RespondUnavailable reports a transient backend failure.
func RespondUnavailable(c *gin.Context, code, message string) {
	RespondError(c, http.StatusServiceUnavailable, code, message, nil)
}

// RespondInternal reports an unexpected failure.
func RespondInternal(c *gin.Context, message string) {
	RespondError(c, http.StatusInternalServerError, "internal_error", message, nil)
}
