// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// GroqClient talks to Groq's OpenAI-compatible chat completion API.
type GroqClient struct {
	client *openai.Client
	model  string
}

// NewGroqClient builds a client from the environment.
//
// GROQ_API_KEY is required (falling back to the container secret file if
// unset). GROQ_MODEL selects the model; GROQ_BASE_URL overrides the API
// endpoint for tests and proxies.
func NewGroqClient() (*GroqClient, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/groq_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the Groq API key from container secrets")
		} else {
			slog.Error("GROQ_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	}
	model := os.Getenv("GROQ_MODEL")
	if model == "" {
		model = "llama-3.3-70b-versatile"
		slog.Warn("GROQ_MODEL not set, defaulting to llama-3.3-70b-versatile")
	}
	baseURL := os.Getenv("GROQ_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	slog.Info("Initializing Groq client", "model", model, "baseURL", baseURL)
	return &GroqClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// NewGroqClientForEndpoint builds a client against an explicit endpoint.
// Used by tests to point at an httptest server.
func NewGroqClientForEndpoint(baseURL, apiKey, model string) *GroqClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &GroqClient{client: openai.NewClientWithConfig(cfg), model: model}
}

func (g *GroqClient) buildRequest(messages []datatypes.Message, params GenerationParams) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{Model: g.model}
	req.Messages = make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	return req
}

// Chat implements the Client interface.
func (g *GroqClient) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.buildRequest(messages, params))
	if err != nil {
		slog.Error("Groq chat completion failed", "error", err)
		return "", fmt.Errorf("groq chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("Groq returned no choices")
		return "", fmt.Errorf("groq returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream implements the Client interface.
//
// Deltas are forwarded to the callback as they arrive. A callback error
// aborts the read loop immediately and is returned unchanged, so a
// consumer that stops reading cancels production rather than draining
// the rest of the stream.
func (g *GroqClient) ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error {
	req := g.buildRequest(messages, params)
	req.Stream = true

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		slog.Error("Groq stream creation failed", "error", err)
		return fmt.Errorf("groq stream creation failed: %w", err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("groq stream read failed: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := callback(delta); err != nil {
			return err
		}
	}
}

var _ Client = (*GroqClient)(nil)
