// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// MemoryType categorizes a stored memory.
type MemoryType string

const (
	MemoryTypeEpisodic   MemoryType = "episodic"
	MemoryTypeSemantic   MemoryType = "semantic"
	MemoryTypeProcedural MemoryType = "procedural"
	MemoryTypeLearned    MemoryType = "learned"
)

// Memory is one record retrieved from or persisted to the memory backend.
// Records are never mutated after creation; retention is owned by the
// backend, not this process.
type Memory struct {
	ID         string            `json:"id"`
	Type       MemoryType        `json:"memory_type"`
	Content    string            `json:"content"`
	Importance float64           `json:"importance"` // 0..1
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// MemoryContext is the merged retrieval result injected into a chat
// prompt to ground the assistant's answer.
type MemoryContext struct {
	RelevantMemories []Memory `json:"relevant_memories"`
	RecentScans      []Memory `json:"recent_scans"`
	ThreatPatterns   []string `json:"threat_patterns,omitempty"`

	// InsufficientData is true when no relevant memories were found;
	// the answer chain then skips prompt augmentation entirely.
	InsufficientData bool `json:"insufficient_data"`
}
