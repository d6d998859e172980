// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
	"github.com/shopassist/shopassist/services/dispatcher/strategy"
)

type stubRouter struct {
	route string
	err   error
}

func (s *stubRouter) Route(_ context.Context, _ string) (string, error) {
	return s.route, s.err
}

// stubStrategy either replays a scripted result, emitting deltas when
// scripted as streamed, or fails.
type stubStrategy struct {
	result strategy.Result
	deltas []string
	err    error
	calls  int
}

func (s *stubStrategy) Resolve(_ context.Context, _ string, _ []datatypes.Message, emit strategy.Emitter) (strategy.Result, error) {
	s.calls++
	if s.err != nil {
		return strategy.Result{}, s.err
	}
	if s.result.Streamed {
		for _, d := range s.deltas {
			if err := emit(d); err != nil {
				return strategy.Result{}, err
			}
		}
	}
	return s.result, nil
}

type memStore struct {
	history  []datatypes.Message
	appends  int
	lastUser string
	lastBot  string
}

func (m *memStore) History(string) []datatypes.Message { return m.history }

func (m *memStore) AppendExchange(_, user, bot string) {
	m.appends++
	m.lastUser = user
	m.lastBot = bot
}

func collect(fragments *[]string) strategy.Emitter {
	return func(f string) error {
		*fragments = append(*fragments, f)
		return nil
	}
}

func discard(string) error { return nil }

func joined(fragments []string) string {
	out := ""
	for _, f := range fragments {
		out += f
	}
	return out
}

func newPipeline(r Router, faq, sql, fallback strategy.Strategy, store HistoryStore) *Pipeline {
	return New(r, map[string]strategy.Strategy{"faq": faq, "sql": sql}, fallback, store)
}

func TestRoutedAnswerIsPersistedOnce(t *testing.T) {
	faq := &stubStrategy{
		result: strategy.Result{Kind: strategy.KindAnswer, Text: "Returns take 30 days.", Streamed: true},
		deltas: []string{"Returns take ", "30 days."},
	}
	store := &memStore{}
	p := newPipeline(&stubRouter{route: "faq"}, faq, &stubStrategy{}, &stubStrategy{}, store)

	var fragments []string
	resp, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "return policy?", SessionID: "s1"}, collect(&fragments))
	require.NoError(t, err)

	assert.Equal(t, "faq", resp.Route)
	assert.Equal(t, "Returns take 30 days.", resp.Response)
	assert.Equal(t, resp.Response, joined(fragments), "streamed and returned text must match")
	assert.Equal(t, 1, store.appends)
	assert.Equal(t, "return policy?", store.lastUser)
	assert.Equal(t, resp.Response, store.lastBot, "stored text must equal the response text")
}

func TestProductRowsAreRenderedAndReturned(t *testing.T) {
	sql := &stubStrategy{result: strategy.Result{
		Kind: strategy.KindRows,
		Rows: []map[string]any{
			{"title": "Trail Shoes", "price": float64(1104), "discount": 0.35, "avg_rating": 4.4, "product_link": "https://shop.example/p/1"},
		},
	}}
	store := &memStore{}
	p := newPipeline(&stubRouter{route: "sql"}, &stubStrategy{}, sql, &stubStrategy{}, store)

	var fragments []string
	resp, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "shoes on sale", SessionID: "s1"}, collect(&fragments))
	require.NoError(t, err)

	assert.Equal(t, "sql", resp.Route)
	require.Len(t, resp.Products, 1)
	assert.Contains(t, resp.Response, "**Trail Shoes**")
	assert.Contains(t, resp.Response, "(35% off)")
	assert.Equal(t, resp.Response, joined(fragments), "unstreamed text is emitted as one fragment")
	assert.Equal(t, resp.Response, store.lastBot)
}

func TestUnknownRouteEscalatesWithoutRerouting(t *testing.T) {
	faq := &stubStrategy{}
	sql := &stubStrategy{}
	fallback := &stubStrategy{result: strategy.Result{Kind: strategy.KindAnswer, Text: "From our chat, those cost Rs. 1104."}}
	store := &memStore{}
	p := newPipeline(&stubRouter{route: ""}, faq, sql, fallback, store)

	resp, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "hmm?", SessionID: "s1"}, discard)
	require.NoError(t, err)

	assert.Equal(t, RouteFallback, resp.Route)
	assert.Equal(t, 0, faq.calls)
	assert.Equal(t, 0, sql.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, 1, store.appends)
}

func TestNoDataEscalatesToFallback(t *testing.T) {
	sql := &stubStrategy{result: strategy.Result{Kind: strategy.KindNoData, Text: "Sorry, we do not have the data."}}
	fallback := &stubStrategy{
		result: strategy.Result{Kind: strategy.KindAnswer, Text: "I can only discuss earlier products.", Streamed: true},
		deltas: []string{"I can only ", "discuss earlier products."},
	}
	store := &memStore{}
	p := newPipeline(&stubRouter{route: "sql"}, &stubStrategy{}, sql, fallback, store)

	var fragments []string
	resp, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "weird query", SessionID: "s1"}, collect(&fragments))
	require.NoError(t, err)

	assert.Equal(t, RouteFallback, resp.Route, "recorded route reflects who actually answered")
	assert.Equal(t, "I can only discuss earlier products.", resp.Response)
	assert.Equal(t, resp.Response, joined(fragments), "nothing from the abandoned strategy may leak into the stream")
	assert.Equal(t, resp.Response, store.lastBot)
	assert.Equal(t, 1, store.appends, "exactly one persist despite the escalation")
}

func TestEscalationEquivalenceAcrossModes(t *testing.T) {
	// The same no-data query resolved buffered and streaming must persist
	// identical text.
	run := func(emit strategy.Emitter) (datatypes.ChatResponse, *memStore) {
		sql := &stubStrategy{result: strategy.Result{Kind: strategy.KindNoData, Text: "Sorry, we do not have the data."}}
		fallback := &stubStrategy{
			result: strategy.Result{Kind: strategy.KindAnswer, Text: "Nothing in our chat matches that.", Streamed: true},
			deltas: []string{"Nothing in our chat ", "matches that."},
		}
		store := &memStore{}
		p := newPipeline(&stubRouter{route: "sql"}, &stubStrategy{}, sql, fallback, store)
		resp, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "q", SessionID: "s"}, emit)
		require.NoError(t, err)
		return resp, store
	}

	buffered, bufferedStore := run(discard)

	var fragments []string
	streamed, streamedStore := run(collect(&fragments))

	assert.Equal(t, buffered.Route, streamed.Route)
	assert.Equal(t, buffered.Response, streamed.Response)
	assert.Equal(t, bufferedStore.lastBot, streamedStore.lastBot)
	assert.Equal(t, streamed.Response, joined(fragments))
}

func TestRoutingFaultDoesNotPersist(t *testing.T) {
	store := &memStore{}
	p := newPipeline(&stubRouter{err: errors.New("classifier offline")}, &stubStrategy{}, &stubStrategy{}, &stubStrategy{}, store)

	_, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "q", SessionID: "s"}, discard)
	require.Error(t, err)
	assert.Equal(t, 0, store.appends)
}

func TestStrategyFaultDoesNotPersist(t *testing.T) {
	faq := &stubStrategy{err: errors.New("llm timeout")}
	store := &memStore{}
	p := newPipeline(&stubRouter{route: "faq"}, faq, &stubStrategy{}, &stubStrategy{}, store)

	_, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "q", SessionID: "s"}, discard)
	require.Error(t, err)
	assert.Equal(t, 0, store.appends)
}

func TestFallbackFaultAfterEscalationDoesNotPersist(t *testing.T) {
	sql := &stubStrategy{result: strategy.Result{Kind: strategy.KindNoData}}
	fallback := &stubStrategy{err: errors.New("llm timeout")}
	store := &memStore{}
	p := newPipeline(&stubRouter{route: "sql"}, &stubStrategy{}, sql, fallback, store)

	_, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "q", SessionID: "s"}, discard)
	require.Error(t, err)
	assert.Equal(t, 0, store.appends)
}

func TestEmitterFailureAbortsWithoutPersist(t *testing.T) {
	// An unstreamed result is emitted by the pipeline itself; a dead client
	// connection must not corrupt the session.
	sql := &stubStrategy{result: strategy.Result{Kind: strategy.KindAnswer, Text: "The average rating is 4.3."}}
	store := &memStore{}
	p := newPipeline(&stubRouter{route: "sql"}, &stubStrategy{}, sql, &stubStrategy{}, store)

	emitErr := errors.New("client gone")
	_, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "q", SessionID: "s"}, func(string) error { return emitErr })
	require.Error(t, err)
	assert.ErrorIs(t, err, emitErr)
	assert.Equal(t, 0, store.appends)
}

func TestHistoryIsPassedToStrategies(t *testing.T) {
	var seen []datatypes.Message
	faq := &capturingStrategy{onResolve: func(h []datatypes.Message) {
		seen = h
	}}
	history := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "earlier"},
		{Role: datatypes.RoleAssistant, Content: "reply"},
	}
	store := &memStore{history: history}
	p := newPipeline(&stubRouter{route: "faq"}, faq, &stubStrategy{}, &stubStrategy{}, store)

	_, err := p.Execute(context.Background(), datatypes.ChatRequest{Query: "q", SessionID: "s"}, discard)
	require.NoError(t, err)
	assert.Equal(t, history, seen)
}

type capturingStrategy struct {
	onResolve func([]datatypes.Message)
}

func (c *capturingStrategy) Resolve(_ context.Context, _ string, history []datatypes.Message, _ strategy.Emitter) (strategy.Result, error) {
	c.onResolve(history)
	return strategy.Result{Kind: strategy.KindAnswer, Text: "ok"}, nil
}
