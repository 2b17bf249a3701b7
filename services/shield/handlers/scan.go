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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

var scanTracer = otel.Tracer("shield/handlers")

// Assessor produces a verdict for a URL. Satisfied by the orchestrator.
type Assessor interface {
	Assess(ctx context.Context, url string) (*datatypes.ScanResult, error)
}

// HandleAssess scans a URL through the tier pipeline. Failures reach the
// user as plain language with a correlation id; the raw error only goes
// to the log.
func HandleAssess(assessor Assessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := scanTracer.Start(c.Request.Context(), "HandleAssess")
		defer span.End()

		var req datatypes.AssessRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "please provide a valid URL to scan"})
			return
		}

		result, err := assessor.Assess(ctx, req.URL)
		if err != nil {
			correlationID := uuid.New().String()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("scan failed", "correlation_id", correlationID, "url", req.URL, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":     "Scan temporarily unavailable. Please try again in a moment.",
				"reference": correlationID,
			})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
