// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session holds per-conversation history with TTL expiry and a
// bounded turn window.
package session

import (
	"sync"
	"time"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
)

const (
	// DefaultTTL is how long a session survives without activity.
	DefaultTTL = 30 * time.Minute

	// DefaultMaxTurns caps retained history to the newest N exchanges.
	// Each exchange stores two messages, one user and one assistant.
	DefaultMaxTurns = 10
)

type entry struct {
	messages  []datatypes.Message
	updatedAt time.Time
}

// Store is an in-memory session history keyed by session ID.
//
// # Description
//
// Expiry is lazy: an expired session is discarded the next time it is read
// or written, there is no background sweeper. All methods are safe for
// concurrent use; each method holds the store lock for its full duration so
// a read-evict or append-truncate-refresh sequence is atomic.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	maxTurns int

	// now is replaceable in tests.
	now func() time.Time
}

// NewStore returns an empty store. Non-positive ttl or maxTurns fall back
// to the defaults.
func NewStore(ttl time.Duration, maxTurns int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return now.Sub(e.updatedAt) > s.ttl
}

// History returns a copy of the session's messages, oldest first. An expired
// session is evicted and reported as empty; reading never refreshes the
// expiry clock.
func (s *Store) History(sessionID string) []datatypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if s.expired(e, s.now()) {
		delete(s.sessions, sessionID)
		return nil
	}

	out := make([]datatypes.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// AppendExchange records one completed user/assistant exchange. The session
// is created if absent, truncated to the newest maxTurns exchanges, and its
// expiry clock is refreshed. An expired session is discarded first so the
// new exchange starts a fresh history.
func (s *Store) AppendExchange(sessionID, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.sessions[sessionID]
	if ok && s.expired(e, now) {
		e = nil
		ok = false
	}
	if !ok {
		e = &entry{}
		s.sessions[sessionID] = e
	}

	e.messages = append(e.messages,
		datatypes.Message{Role: datatypes.RoleUser, Content: userText},
		datatypes.Message{Role: datatypes.RoleAssistant, Content: assistantText},
	)

	if max := 2 * s.maxTurns; len(e.messages) > max {
		trimmed := make([]datatypes.Message, max)
		copy(trimmed, e.messages[len(e.messages)-max:])
		e.messages = trimmed
	}
	e.updatedAt = now
}

// ActiveCount returns the number of unexpired sessions. Expired sessions
// found along the way are evicted.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
		}
	}
	return len(s.sessions)
}

// StoredMessageCount returns the total messages held across unexpired
// sessions.
func (s *Store) StoredMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	total := 0
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
			continue
		}
		total += len(e.messages)
	}
	return total
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
