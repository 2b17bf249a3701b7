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

// Session holds the authenticated state against one backend.
//
// Exactly one live Session exists per backend per process. It is owned
// exclusively by the auth.SessionManager: only a successful login or
// refresh replaces it, and logout or an unrecoverable auth failure
// clears it.
type Session struct {
	AccessToken string `json:"access_token"`
	CSRFToken   string `json:"csrf_token"`

	// ExpiresAt is a conservative local guess. The backend session is
	// cookie-based and does not advertise a lifetime, so we record
	// login time plus a configured TTL and re-authenticate early.
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidFor reports whether the session is usable for at least the given
// buffer beyond now. A session inside the buffer window is treated as
// already expired so callers re-authenticate before the backend does it
// for them mid-request.
func (s *Session) ValidFor(now time.Time, buffer time.Duration) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return now.Add(buffer).Before(s.ExpiresAt)
}
