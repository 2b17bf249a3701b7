// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tiers implements the three scan tier clients behind one
// uniform contract.
//
// # Error Taxonomy
//
//   - ErrTierUnavailable: the capability is not present. Expected and
//     non-alarming (e.g. no inference sidecar installed). Never retried.
//   - TierTimeoutError: the call outran its deadline. Transient; only
//     the deep tier retries, and only on its own schedule.
//   - TierError: the upstream returned an error status. Surfaced to the
//     user as "scan temporarily unavailable", never repackaged as a
//     fabricated verdict.
package tiers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
)

// ErrTierUnavailable means the tier's capability is absent. Absence is
// a configuration fact, not a transient fault.
var ErrTierUnavailable = errors.New("tier unavailable")

// TierTimeoutError means a tier call exceeded its deadline.
type TierTimeoutError struct {
	Tier    datatypes.ScanTier
	Timeout time.Duration
}

func (e *TierTimeoutError) Error() string {
	return fmt.Sprintf("%s tier timed out after %s", e.Tier, e.Timeout)
}

// TierError means the upstream service answered with an error status.
type TierError struct {
	Tier   datatypes.ScanTier
	Status int
	Body   string
}

func (e *TierError) Error() string {
	return fmt.Sprintf("%s tier returned status %d: %s", e.Tier, e.Status, e.Body)
}

// Client is the uniform tier contract. Scan either produces a complete
// ScanResult whose ScanTier names this client's tier, or fails with one
// of the taxonomy errors above.
type Client interface {
	Scan(ctx context.Context, url string) (*datatypes.ScanResult, error)
	Tier() datatypes.ScanTier
}

var (
	_ Client = (*EdgeClient)(nil)
	_ Client = (*HybridClient)(nil)
	_ Client = (*DeepClient)(nil)
)

// TokenSource provides a live bearer token for authenticated tiers.
// *auth.SessionManager satisfies it.
type TokenSource interface {
	EnsureValidToken(ctx context.Context) (string, error)
}
