// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// SessionStats reports the state of the in-memory session store.
type SessionStats struct {
	Active      int `json:"active"`
	TotalStored int `json:"total_stored"`
	TTLMinutes  int `json:"ttl_minutes"`
}

// BackendStatus reports reachability of one external dependency together
// with whatever count that dependency exposes. Status is "ok" or the
// error text from the last probe; Count is nil when the probe failed.
type BackendStatus struct {
	Status string `json:"status"`
	Count  *int64 `json:"count,omitempty"`
}

// StatsResponse is the admin diagnostics payload.
type StatsResponse struct {
	Uptime        string        `json:"uptime"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Sessions      SessionStats  `json:"sessions"`
	FAQIndex      BackendStatus `json:"faq_index"`
	ProductDB     BackendStatus `json:"product_db"`
	Routes        []string      `json:"routes"`
}
