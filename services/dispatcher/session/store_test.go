// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
)

// fakeClock lets tests advance session time deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClockedStore(ttl time.Duration, maxTurns int) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(ttl, maxTurns)
	s.now = clock.Now
	return s, clock
}

func TestHistoryUnknownSession(t *testing.T) {
	s, _ := newClockedStore(DefaultTTL, DefaultMaxTurns)
	if got := s.History("nope"); len(got) != 0 {
		t.Errorf("expected empty history for unknown session, got %d messages", len(got))
	}
}

func TestAppendAndHistoryOrder(t *testing.T) {
	s, _ := newClockedStore(DefaultTTL, DefaultMaxTurns)

	s.AppendExchange("s1", "first question", "first answer")
	s.AppendExchange("s1", "second question", "second answer")

	got := s.History("s1")
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}
	want := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "first question"},
		{Role: datatypes.RoleAssistant, Content: "first answer"},
		{Role: datatypes.RoleUser, Content: "second question"},
		{Role: datatypes.RoleAssistant, Content: "second answer"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExpiryOnRead(t *testing.T) {
	s, clock := newClockedStore(30*time.Minute, DefaultMaxTurns)

	s.AppendExchange("s1", "q", "a")

	clock.Advance(29 * time.Minute)
	if got := s.History("s1"); len(got) != 2 {
		t.Fatalf("session expired too early, got %d messages", len(got))
	}

	clock.Advance(2 * time.Minute)
	if got := s.History("s1"); len(got) != 0 {
		t.Errorf("expected expired session to be empty, got %d messages", len(got))
	}
	if n := s.ActiveCount(); n != 0 {
		t.Errorf("expected 0 active sessions after expiry, got %d", n)
	}
}

func TestReadDoesNotRefreshTTL(t *testing.T) {
	s, clock := newClockedStore(30*time.Minute, DefaultMaxTurns)

	s.AppendExchange("s1", "q", "a")

	// Keep reading just before the deadline; reads must not keep it alive.
	clock.Advance(20 * time.Minute)
	s.History("s1")
	clock.Advance(11 * time.Minute)

	if got := s.History("s1"); len(got) != 0 {
		t.Errorf("read refreshed the expiry clock, got %d messages", len(got))
	}
}

func TestWriteRefreshesTTL(t *testing.T) {
	s, clock := newClockedStore(30*time.Minute, DefaultMaxTurns)

	s.AppendExchange("s1", "q1", "a1")
	clock.Advance(20 * time.Minute)
	s.AppendExchange("s1", "q2", "a2")
	clock.Advance(20 * time.Minute)

	// 40 minutes since creation but only 20 since the last write.
	if got := s.History("s1"); len(got) != 4 {
		t.Errorf("write should refresh expiry, got %d messages", len(got))
	}
}

func TestExpiredSessionStartsFreshOnWrite(t *testing.T) {
	s, clock := newClockedStore(30*time.Minute, DefaultMaxTurns)

	s.AppendExchange("s1", "old q", "old a")
	clock.Advance(31 * time.Minute)
	s.AppendExchange("s1", "new q", "new a")

	got := s.History("s1")
	if len(got) != 2 {
		t.Fatalf("expected fresh history after expiry, got %d messages", len(got))
	}
	if got[0].Content != "new q" {
		t.Errorf("stale message survived expiry: %+v", got[0])
	}
}

func TestTruncationKeepsNewestTurns(t *testing.T) {
	const maxTurns = 10
	s, _ := newClockedStore(DefaultTTL, maxTurns)

	for i := 0; i < maxTurns+3; i++ {
		s.AppendExchange("s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	got := s.History("s1")
	if len(got) != 2*maxTurns {
		t.Fatalf("expected %d messages, got %d", 2*maxTurns, len(got))
	}
	// Oldest surviving exchange should be number 3.
	if got[0].Content != "q3" {
		t.Errorf("oldest surviving message = %q, want q3", got[0].Content)
	}
	if got[len(got)-1].Content != fmt.Sprintf("a%d", maxTurns+2) {
		t.Errorf("newest message = %q", got[len(got)-1].Content)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s, _ := newClockedStore(DefaultTTL, DefaultMaxTurns)
	s.AppendExchange("s1", "q", "a")

	got := s.History("s1")
	got[0].Content = "mutated"

	if again := s.History("s1"); again[0].Content != "q" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s, _ := newClockedStore(DefaultTTL, DefaultMaxTurns)
	s.AppendExchange("alpha", "alpha q", "alpha a")
	s.AppendExchange("beta", "beta q", "beta a")

	if got := s.History("alpha"); len(got) != 2 || got[0].Content != "alpha q" {
		t.Errorf("alpha history polluted: %+v", got)
	}
	if n := s.ActiveCount(); n != 2 {
		t.Errorf("expected 2 active sessions, got %d", n)
	}
	if n := s.StoredMessageCount(); n != 4 {
		t.Errorf("expected 4 stored messages, got %d", n)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s, _ := newClockedStore(DefaultTTL, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				sid := fmt.Sprintf("s%d", worker%2)
				s.AppendExchange(sid, "q", "a")
				s.History(sid)
			}
		}(i)
	}
	wg.Wait()

	// 200 exchanges across two sessions, none lost.
	if n := s.StoredMessageCount(); n != 400 {
		t.Errorf("expected 400 stored messages, got %d", n)
	}
}
