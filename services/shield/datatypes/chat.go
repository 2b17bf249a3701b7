// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file contains request and response types for the assistant chat
// endpoints plus their validation limits.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxQuestionBytes caps a single user question. Byte length, not
	// rune count, so oversized multi-byte payloads cannot slip through.
	MaxQuestionBytes = 32 * 1024

	// MaxURLBytes caps submitted URLs. Anything longer is hostile.
	MaxURLBytes = 8 * 1024
)

// chatValidate is the shared validator instance for request types.
var chatValidate = validator.New()

// Message is one turn of a chat conversation in the wire format the
// completion backends accept.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is the body of POST /v1/chat/ask.
type AskRequest struct {
	Question string `json:"question" validate:"required"`

	// URL optionally pins the question to a previously scanned URL so
	// the memory lookup can bias toward that scan's history.
	URL string `json:"url,omitempty"`
}

// Validate enforces presence and size limits on an AskRequest.
func (r *AskRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return err
	}
	if len(r.Question) > MaxQuestionBytes {
		return fmt.Errorf("question exceeds %d bytes", MaxQuestionBytes)
	}
	if len(r.URL) > MaxURLBytes {
		return fmt.Errorf("url exceeds %d bytes", MaxURLBytes)
	}
	return nil
}

// AssessRequest is the body of POST /v1/scan/assess.
type AssessRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// Validate enforces presence, shape, and size limits on an AssessRequest.
func (r *AssessRequest) Validate() error {
	if len(r.URL) > MaxURLBytes {
		return fmt.Errorf("url exceeds %d bytes", MaxURLBytes)
	}
	return chatValidate.Struct(r)
}

// AskResponse is the body returned by POST /v1/chat/ask.
type AskResponse struct {
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
	Grounded bool   `json:"grounded"` // true when memory context was injected
}
