// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the intent registry that declares which routes the
// dispatcher knows and the utterances that define them.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Route names with special meaning to the dispatcher. They may not be
// declared in the registry: "fallback" is where escalated queries land, and
// "unknown" is the router's no-match result.
var reservedRouteNames = map[string]bool{
	"fallback": true,
	"unknown":  true,
}

// Route declares one intent: its name, the strategy that resolves it, the
// certainty it must reach during classification, and the example phrases
// that define it in the utterance index.
type Route struct {
	Name       string   `yaml:"name" validate:"required"`
	Strategy   string   `yaml:"strategy" validate:"required,oneof=faq sql"`
	Threshold  float64  `yaml:"threshold" validate:"gte=0,lte=1"`
	Utterances []string `yaml:"utterances" validate:"required,min=1,dive,required"`
}

// Registry is the full intent configuration.
type Registry struct {
	DefaultThreshold float64 `yaml:"default_threshold" validate:"gte=0,lte=1"`
	Routes           []Route `yaml:"routes" validate:"required,min=1,dive"`
}

// Load reads and validates a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intent registry: %w", err)
	}
	return Parse(data)
}

// Parse validates a registry from raw YAML.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse intent registry: %w", err)
	}
	if reg.DefaultThreshold == 0 {
		reg.DefaultThreshold = 0.4
	}

	validate := validator.New()
	if err := validate.Struct(&reg); err != nil {
		return nil, fmt.Errorf("invalid intent registry: %w", err)
	}

	seen := make(map[string]bool, len(reg.Routes))
	for _, route := range reg.Routes {
		if reservedRouteNames[route.Name] {
			return nil, fmt.Errorf("route name %q is reserved", route.Name)
		}
		if seen[route.Name] {
			return nil, fmt.Errorf("duplicate route name %q", route.Name)
		}
		seen[route.Name] = true
	}

	return &reg, nil
}

// Thresholds returns the per-route threshold map the router consumes.
// Routes declared with a zero threshold use the registry default.
func (r *Registry) Thresholds() map[string]float64 {
	out := make(map[string]float64, len(r.Routes))
	for _, route := range r.Routes {
		t := route.Threshold
		if t == 0 {
			t = r.DefaultThreshold
		}
		out[route.Name] = t
	}
	return out
}

// StrategyFor returns the strategy name configured for a route, or "" if
// the route is not declared.
func (r *Registry) StrategyFor(route string) string {
	for _, rt := range r.Routes {
		if rt.Name == route {
			return rt.Strategy
		}
	}
	return ""
}

// Default returns the registry used when no config file is supplied. The
// utterances mirror the phrasing customers actually use, split between
// knowledge-base questions and catalog searches.
func Default() *Registry {
	return &Registry{
		DefaultThreshold: 0.4,
		Routes: []Route{
			{
				Name:     "faq",
				Strategy: "faq",
				Utterances: []string{
					"how do i track my order",
					"what is your return policy",
					"how long does delivery take",
					"can i cancel my order",
					"how do i change my shipping address",
					"what payment methods do you accept",
					"do you ship internationally",
					"how do i get a refund",
					"my order arrived damaged",
					"how do i contact customer support",
					"where is my package",
					"can i exchange an item",
					"how do i use a discount code",
					"is cash on delivery available",
					"how do i reset my password",
					"why was my payment declined",
					"do you have a loyalty program",
					"how do i unsubscribe from emails",
					"what are your customer service hours",
					"is my personal data safe with you",
				},
			},
			{
				Name:     "sql",
				Strategy: "sql",
				Utterances: []string{
					"show me shoes under 50 dollars",
					"find nike products with a discount",
					"what are the highest rated laptops",
					"list phones between 200 and 400",
					"cheapest headphones with at least 4 stars",
				},
			},
		},
	}
}
