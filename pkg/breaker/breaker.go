// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package breaker implements the circuit breaker pattern for outbound
// service calls.
//
// # States
//
//   - Closed: normal operation, requests flow through
//   - Open: circuit tripped, requests are rejected immediately
//   - HalfOpen: probing whether the service recovered
//
// # State Diagram
//
//	CLOSED ──[failure threshold]──► OPEN
//	   ▲                              │
//	   │                         [open timeout]
//	   └───[successes]── HALF_OPEN ◄──┘
//
// # Thread Safety
//
// Breaker is safe for concurrent use.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker's current mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ErrOpen is returned when the breaker rejects a call outright.
var ErrOpen = errors.New("circuit breaker is open")

// Config controls how the breaker trips and recovers.
type Config struct {
	// FailureThreshold is consecutive failures before opening.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is consecutive successes to close from half-open.
	// Default: 2
	SuccessThreshold int

	// OpenTimeout is how long to stay open before probing half-open.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// OnStateChange, if set, is notified of transitions. Called with
	// the lock held; keep it cheap.
	OnStateChange func(from, to State)
}

// Breaker prevents cascading failures by failing fast while a dependency
// is known to be down, then probing for recovery after OpenTimeout.
type Breaker struct {
	config      Config
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	mu          sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Breaker in the closed state. Zero-value config fields
// pick up defaults.
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	return &Breaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Execute runs fn if the circuit allows it and records the outcome.
// Returns ErrOpen without calling fn when the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) > b.config.OpenTimeout {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.successes = 0
		b.lastFailure = b.now()
		switch b.state {
		case StateClosed:
			if b.failures >= b.config.FailureThreshold {
				b.transition(StateOpen)
			}
		case StateHalfOpen:
			// Any failure while probing goes straight back to open.
			b.transition(StateOpen)
		}
		return
	}

	b.successes++
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		if b.successes >= b.config.SuccessThreshold {
			b.failures = 0
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}
