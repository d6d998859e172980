// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package productdb

import (
	"errors"
	"fmt"
	"strings"
)

// QueryRejectedError indicates a model-generated statement failed safety
// validation and was never sent to the database.
type QueryRejectedError struct {
	Reason string
	Query  string
}

func (e *QueryRejectedError) Error() string {
	return fmt.Sprintf("query rejected: %s", e.Reason)
}

// IsQueryRejected reports whether err is a QueryRejectedError.
func IsQueryRejected(err error) bool {
	var qre *QueryRejectedError
	return errors.As(err, &qre)
}

// deniedKeywords are rejected wherever they appear in a statement, not just
// as the leading verb. Matching is deliberately blunt: a SELECT that merely
// mentions one of these words in a string literal is also rejected.
var deniedKeywords = []string{
	"insert",
	"update",
	"delete",
	"drop",
	"alter",
	"create",
	"truncate",
	"replace",
	"merge",
	"exec",
}

// Validate checks a model-generated statement before execution. Only a
// single SELECT is allowed; any statement containing a write or DDL keyword
// anywhere is rejected.
func Validate(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &QueryRejectedError{Reason: "empty statement", Query: query}
	}

	lower := strings.ToLower(trimmed)
	for _, kw := range deniedKeywords {
		if strings.Contains(lower, kw) {
			return &QueryRejectedError{
				Reason: fmt.Sprintf("statement contains forbidden keyword %q", kw),
				Query:  query,
			}
		}
	}

	if !strings.HasPrefix(lower, "select") {
		return &QueryRejectedError{Reason: "only SELECT statements are allowed", Query: query}
	}

	// Disallow statement stacking. A single trailing semicolon is fine.
	if strings.Contains(strings.TrimSuffix(trimmed, ";"), ";") {
		return &QueryRejectedError{Reason: "multiple statements are not allowed", Query: query}
	}

	return nil
}
