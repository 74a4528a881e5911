// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ModelPricing contains pricing per 1M tokens for a model
type ModelPricing struct {
	InputPer1M  float64 `yaml:"input_per_1m" json:"input_per_1m"`
	OutputPer1M float64 `yaml:"output_per_1m" json:"output_per_1m"`
}

// PricingTable holds per-provider, per-model token pricing. Lookups on
// unknown providers or models return zero cost: telemetry is never
// blocked on pricing-table gaps.
type PricingTable struct {
	mu        sync.RWMutex
	Providers map[string]map[string]ModelPricing `yaml:"providers" json:"providers"`
}

// DefaultPricing contains pricing for common providers and models.
// Prices are per 1M tokens in USD (as of January 2025).
func DefaultPricing() *PricingTable {
	return &PricingTable{
		Providers: map[string]map[string]ModelPricing{
			ProviderOpenAI: {
				"gpt-4o":        {InputPer1M: 2.50, OutputPer1M: 10.00},
				"gpt-4o-mini":   {InputPer1M: 0.15, OutputPer1M: 0.60},
				"gpt-4-turbo":   {InputPer1M: 10.00, OutputPer1M: 30.00},
				"gpt-3.5-turbo": {InputPer1M: 0.50, OutputPer1M: 1.50},
			},
			ProviderAnthropic: {
				"claude-opus-4":     {InputPer1M: 15.00, OutputPer1M: 75.00},
				"claude-sonnet-4":   {InputPer1M: 3.00, OutputPer1M: 15.00},
				"claude-sonnet-3.5": {InputPer1M: 3.00, OutputPer1M: 15.00},
				"claude-haiku-3.5":  {InputPer1M: 0.80, OutputPer1M: 4.00},
			},
		},
	}
}

// CalculateCost returns the USD cost for a call's token usage. Unknown
// providers and models cost zero rather than failing.
func (p *PricingTable) CalculateCost(provider, model string, inputTokens, outputTokens int) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	models, ok := p.Providers[provider]
	if !ok {
		return 0
	}
	pricing, ok := models[model]
	if !ok {
		return 0
	}

	inputCost := float64(inputTokens) / 1_000_000 * pricing.InputPer1M
	outputCost := float64(outputTokens) / 1_000_000 * pricing.OutputPer1M
	return inputCost + outputCost
}

// Lookup returns the pricing entry for a model, if one exists
func (p *PricingTable) Lookup(provider, model string) (ModelPricing, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	models, ok := p.Providers[provider]
	if !ok {
		return ModelPricing{}, false
	}
	pricing, ok := models[model]
	return pricing, ok
}

// LoadOverrides merges a YAML pricing file into the table so prices can
// be patched without a rebuild. File entries win over built-in entries;
// providers and models absent from the file are left untouched.
func (p *PricingTable) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pricing file: %w", err)
	}

	var overrides struct {
		Providers map[string]map[string]ModelPricing `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse pricing file %s: %w", path, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for provider, models := range overrides.Providers {
		if p.Providers[provider] == nil {
			p.Providers[provider] = make(map[string]ModelPricing)
		}
		for model, pricing := range models {
			p.Providers[provider][model] = pricing
		}
	}

	return nil
}

// Snapshot returns a deep copy of the current table for read-only use
// (the pricing API endpoint serializes this)
func (p *PricingTable) Snapshot() map[string]map[string]ModelPricing {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]map[string]ModelPricing, len(p.Providers))
	for provider, models := range p.Providers {
		m := make(map[string]ModelPricing, len(models))
		for model, pricing := range models {
			m[model] = pricing
		}
		out[provider] = m
	}
	return out
}
