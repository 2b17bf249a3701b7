// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionEnder drops the authenticated session. Satisfied by the session
// manager.
type SessionEnder interface {
	Logout(ctx context.Context)
}

// HandleLogout discards the current session. The next scan that needs a
// token will log in again.
func HandleLogout(sessions SessionEnder) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions.Logout(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "shield"})
}
