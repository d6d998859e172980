// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package strategy contains the resolution strategies a routed query can be
// dispatched to, and the tagged result type they all return.
package strategy

import (
	"context"
	"strings"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
)

// ResultKind tags what a strategy produced.
type ResultKind int

const (
	// KindAnswer is a complete natural-language answer.
	KindAnswer ResultKind = iota

	// KindRows is a structured product result set awaiting rendering.
	KindRows

	// KindNoData means the strategy could not produce a grounded answer.
	// The dispatcher escalates these to the fallback strategy.
	KindNoData
)

func (k ResultKind) String() string {
	switch k {
	case KindAnswer:
		return "answer"
	case KindRows:
		return "rows"
	case KindNoData:
		return "no_data"
	default:
		return "invalid"
	}
}

// Result is the outcome of one strategy invocation.
//
// Streamed reports whether the strategy already pushed Text through the
// emitter fragment by fragment. When false the caller is responsible for
// emitting whatever final text it derives from the result.
type Result struct {
	Kind     ResultKind
	Text     string
	Rows     []map[string]any
	Streamed bool
}

// Emitter receives response fragments in generation order. A non-nil return
// aborts the producing stream; the strategy surfaces that error unchanged.
type Emitter func(fragment string) error

// discardEmitter is used where a strategy needs an emitter but the output
// is not streamed to anyone.
func discardEmitter(string) error { return nil }

// Strategy resolves a query against one class of backend.
type Strategy interface {
	Resolve(ctx context.Context, query string, history []datatypes.Message, emit Emitter) (Result, error)
}

// noDataPrefixes mark model output that admits it has nothing. Matched
// case-insensitively against the start of the answer.
var noDataPrefixes = []string{
	"sorry, we do not have",
	"invalid query generated",
}

// IsNoDataText reports whether a model answer is a no-data admission rather
// than a real answer.
func IsNoDataText(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range noDataPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// holdbackEmitter delays fragment delivery until the answer's opening bytes
// prove it is not a no-data admission. Without the hold-back a streamed
// admission would reach the client before the dispatcher can escalate,
// making the streamed transcript diverge from the stored one.
type holdbackEmitter struct {
	emit    Emitter
	pending strings.Builder
	decided bool
	noData  bool
}

func newHoldbackEmitter(emit Emitter) *holdbackEmitter {
	return &holdbackEmitter{emit: emit}
}

// Write forwards a fragment, buffering while the answer prefix is still
// ambiguous. Once the accumulated text rules out every no-data marker the
// buffer is flushed and all later fragments pass straight through. If a
// marker is confirmed, nothing is ever emitted.
func (h *holdbackEmitter) Write(delta string) error {
	if h.decided {
		if h.noData {
			return nil
		}
		return h.emit(delta)
	}

	h.pending.WriteString(delta)
	head := strings.ToLower(strings.TrimLeft(h.pending.String(), " \t\r\n"))

	ambiguous := false
	for _, prefix := range noDataPrefixes {
		if strings.HasPrefix(head, prefix) {
			h.decided = true
			h.noData = true
			return nil
		}
		if len(head) < len(prefix) && strings.HasPrefix(prefix, head) {
			ambiguous = true
		}
	}
	if ambiguous {
		return nil
	}

	h.decided = true
	return h.emit(h.pending.String())
}

// Flush delivers anything still held back. Call after the stream ends; a
// short answer can finish while its prefix is still ambiguous.
func (h *holdbackEmitter) Flush() error {
	if h.decided {
		return nil
	}
	h.decided = true
	if IsNoDataText(h.pending.String()) {
		h.noData = true
		return nil
	}
	return h.emit(h.pending.String())
}

// NoData reports whether the answer was confirmed as a no-data admission.
func (h *holdbackEmitter) NoData() bool { return h.noData }

// historyWindow caps how much conversation history is forwarded to the
// model on any single call.
const historyWindow = 10

func recentHistory(history []datatypes.Message) []datatypes.Message {
	if len(history) <= historyWindow {
		return history
	}
	return history[len(history)-historyWindow:]
}
