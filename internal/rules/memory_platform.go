package rules

import (
	"context"
	"sync"

	"github.com/sentineltk/sentinel/internal/interfaces"
)

// MemoryPlatform is a RulePlatform that records rules in memory. The
// standalone daemon has no browser to install rules into; a real host
// replaces this with its own implementation.
type MemoryPlatform struct {
	mu    sync.Mutex
	rules map[int]interfaces.BlockRule
}

var _ interfaces.RulePlatform = (*MemoryPlatform)(nil)

// NewMemoryPlatform returns an empty in-memory rule platform.
func NewMemoryPlatform() *MemoryPlatform {
	return &MemoryPlatform{rules: make(map[int]interfaces.BlockRule)}
}

// UpdateRules implements interfaces.RulePlatform.
func (p *MemoryPlatform) UpdateRules(_ context.Context, add []interfaces.BlockRule, removeIDs []int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range removeIDs {
		delete(p.rules, id)
	}
	for _, rule := range add {
		p.rules[rule.ID] = rule
	}
	return nil
}

// Rules returns a copy of the installed rule set.
func (p *MemoryPlatform) Rules() []interfaces.BlockRule {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]interfaces.BlockRule, 0, len(p.rules))
	for _, rule := range p.rules {
		out = append(out, rule)
	}
	return out
}
