// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin HTTP handlers for the dispatcher.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
	"github.com/shopassist/shopassist/services/dispatcher/strategy"
)

// Dispatcher executes one chat request end to end. Satisfied by
// pipeline.Pipeline.
type Dispatcher interface {
	Execute(ctx context.Context, req datatypes.ChatRequest, emit strategy.Emitter) (datatypes.ChatResponse, error)
}

// Chat handles the buffered chat endpoint. The pipeline's fragment stream
// is discarded; the client gets the assembled response in one JSON body.
func Chat(p Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := p.Execute(c.Request.Context(), req, func(string) error { return nil })
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process the query"})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
