// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package auth owns the CSRF + bearer token lifecycle against the
// authenticated backend.
//
// # State Machine
//
//	ANONYMOUS ──► AUTHENTICATING ──► AUTHENTICATED
//	                  ▲                  │
//	                  └──[expiry buffer]─┘
//	                         │
//	                     LOGGED_OUT
//
// The backend session is cookie-based, not JWT-based, so no expiry is
// ever parsed off the wire. Login records a conservative configured TTL
// and EnsureValidToken re-authenticates once the remaining lifetime
// drops inside the expiry buffer. A caller can therefore never observe
// a token past its recorded expiry minus the buffer.
//
// # Concurrency
//
// Login is exclusive: concurrent EnsureValidToken calls during an
// in-flight login all await that one login rather than minting parallel
// sessions (which would contend on the stored cookie jar).
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianShield/services/shield/datatypes"
	"github.com/AleutianAI/AleutianShield/services/shield/store"
)

// sessionStoreKey is where the live session is persisted so a restart
// can reuse an unexpired login.
const sessionStoreKey = "auth/session"

// AuthError is a typed CSRF-fetch or login failure. Callers treat any
// of these as "service unavailable", never as a fatal process error.
type AuthError struct {
	Op     string // "csrf" or "login"
	Status int    // HTTP status, 0 when the request never completed
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("auth %s failed: status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("auth %s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Config controls the SessionManager.
type Config struct {
	BaseURL  string
	Email    string
	Password string

	// SessionTTL is the conservative local session lifetime guess.
	// Default: 24h.
	SessionTTL time.Duration

	// ExpiryBuffer triggers re-auth this long before recorded expiry.
	// Default: 300s.
	ExpiryBuffer time.Duration

	// Timeout bounds each auth HTTP call. Default: 10s.
	Timeout time.Duration

	// OnLogin, when set, observes the outcome of every login attempt.
	OnLogin func(success bool)
}

// SessionManager owns the single live Session for one backend.
type SessionManager struct {
	config     Config
	httpClient *http.Client
	store      *store.Store // optional; nil disables persistence
	flight     singleflight.Group

	mu      sync.Mutex
	session *datatypes.Session

	// now is swappable for tests.
	now func() time.Time
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"accessToken"`
}

// NewSessionManager creates a manager in the anonymous state. st may be
// nil; when present, a persisted unexpired session is adopted so the
// first EnsureValidToken after a restart skips the login round trip.
func NewSessionManager(config Config, st *store.Store) *SessionManager {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 24 * time.Hour
	}
	if config.ExpiryBuffer <= 0 {
		config.ExpiryBuffer = 300 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	// The login flow is cookie-based; the jar carries the anonymous
	// session cookie from the CSRF fetch into the login POST.
	jar, _ := cookiejar.New(nil)

	m := &SessionManager{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout, Jar: jar},
		store:      st,
		now:        time.Now,
	}
	m.adoptPersistedSession()
	return m
}

// EnsureValidToken returns a bearer token guaranteed to be outside the
// expiry buffer, logging in first when necessary. Concurrent callers
// share one in-flight login.
func (m *SessionManager) EnsureValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.session.ValidFor(m.now(), m.config.ExpiryBuffer) {
		token := m.session.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	// singleflight key is constant: there is only one backend and only
	// one login may be in flight.
	_, err, _ := m.flight.Do("login", func() (any, error) {
		m.mu.Lock()
		valid := m.session.ValidFor(m.now(), m.config.ExpiryBuffer)
		m.mu.Unlock()
		if valid {
			return nil, nil
		}
		return nil, m.login(ctx)
	})
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.session.ValidFor(m.now(), m.config.ExpiryBuffer) {
		return "", &AuthError{Op: "login", Err: errors.New("session invalid immediately after login")}
	}
	return m.session.AccessToken, nil
}

// Logout clears in-memory and persisted session state. It never fails:
// a logout that cannot reach the store still leaves the process
// anonymous.
func (m *SessionManager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Remove(sessionStoreKey); err != nil {
			slog.Warn("failed to remove persisted session", "error", err)
		}
	}
	slog.Info("logged out")
}

// login runs one login attempt and reports its outcome to OnLogin.
// Caller must hold the singleflight slot, not the mutex.
func (m *SessionManager) login(ctx context.Context) error {
	err := m.doLogin(ctx)
	if m.config.OnLogin != nil {
		m.config.OnLogin(err == nil)
	}
	return err
}

// doLogin performs the full sequence: fetch a CSRF token, then POST
// credentials with that token and the cookie session.
func (m *SessionManager) doLogin(ctx context.Context) error {
	csrf, err := m.fetchCSRFToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(loginRequest{Email: m.config.Email, Password: m.config.Password})
	if err != nil {
		return &AuthError{Op: "login", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return &AuthError{Op: "login", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &AuthError{Op: "login", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return &AuthError{Op: "login", Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed loginResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return &AuthError{Op: "login", Status: resp.StatusCode, Err: err}
	}
	if !parsed.Success || parsed.AccessToken == "" {
		return &AuthError{Op: "login", Status: resp.StatusCode, Body: string(respBody)}
	}

	session := &datatypes.Session{
		AccessToken: parsed.AccessToken,
		CSRFToken:   csrf,
		ExpiresAt:   m.now().Add(m.config.SessionTTL),
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	m.persistSession(session)
	slog.Info("authenticated", "expires_at", session.ExpiresAt)
	return nil
}

func (m *SessionManager) fetchCSRFToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.config.BaseURL+"/csrf-token", nil)
	if err != nil {
		return "", &AuthError{Op: "csrf", Err: err}
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Op: "csrf", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Op: "csrf", Status: resp.StatusCode, Body: string(body)}
	}

	var parsed csrfResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &AuthError{Op: "csrf", Status: resp.StatusCode, Err: err}
	}
	if parsed.CSRFToken == "" {
		return "", &AuthError{Op: "csrf", Status: resp.StatusCode, Body: string(body)}
	}
	return parsed.CSRFToken, nil
}

func (m *SessionManager) adoptPersistedSession() {
	if m.store == nil {
		return
	}
	var session datatypes.Session
	if err := m.store.Get(sessionStoreKey, &session); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("discarding unreadable persisted session", "error", err)
		}
		return
	}
	if !session.ValidFor(m.now(), m.config.ExpiryBuffer) {
		// Expired on disk; drop it quietly.
		_ = m.store.Remove(sessionStoreKey)
		return
	}
	m.session = &session
	slog.Info("adopted persisted session", "expires_at", session.ExpiresAt)
}

func (m *SessionManager) persistSession(session *datatypes.Session) {
	if m.store == nil {
		return
	}
	if err := m.store.Set(sessionStoreKey, session); err != nil {
		slog.Warn("failed to persist session", "error", err)
	}
}
