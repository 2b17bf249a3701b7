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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianShield/services/llm"
	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// Answerer generates a chat answer, optionally grounded in memory
// context. Satisfied by the answer generation chain.
type Answerer interface {
	Answer(ctx context.Context, question string, mctx *datatypes.MemoryContext) (*datatypes.AskResponse, error)
}

// ContextProvider retrieves memory context for a question. Satisfied by
// the memory context service.
type ContextProvider interface {
	GetContextForQuery(ctx context.Context, query string) (*datatypes.MemoryContext, error)
}

// HandleAsk answers a user question about a URL or verdict. Memory
// lookup failure degrades to an ungrounded answer rather than failing
// the question.
func HandleAsk(answerer Answerer, memory ContextProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := scanTracer.Start(c.Request.Context(), "HandleAsk")
		defer span.End()

		var req datatypes.AskRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "please provide a question"})
			return
		}

		// A pinned URL joins the lookup query so the search surfaces
		// that URL's scan history alongside general matches.
		query := req.Question
		if req.URL != "" {
			query = req.Question + " " + req.URL
		}

		var mctx *datatypes.MemoryContext
		if memory != nil {
			var err error
			mctx, err = memory.GetContextForQuery(ctx, query)
			if err != nil {
				slog.Warn("memory lookup failed, answering without context", "error", err)
				mctx = nil
			}
		}

		resp, err := answerer.Answer(ctx, req.Question, mctx)
		if err != nil {
			correlationID := uuid.New().String()
			span.RecordError(err)
			if errors.Is(err, llm.ErrAllProvidersExhausted) {
				slog.Error("all answer providers failed", "correlation_id", correlationID, "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error":     "The assistant is currently unavailable. Please try again shortly.",
					"reference": correlationID,
				})
				return
			}
			slog.Error("answer generation failed", "correlation_id", correlationID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Something went wrong answering that. Please try again.",
				"reference": correlationID,
			})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
