// Package rules manages per-tab quarantine: scoped network-block rules that
// cut off a dangerous page's outbound traffic while keeping the page visible
// behind the warning overlay.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sentineltk/sentinel/internal/interfaces"
	"github.com/sentineltk/sentinel/internal/logging"
)

// tabIDSlots bounds the rule-ID space. IDs are derived from the tab ID, so
// two tabs whose IDs collide modulo tabIDSlots share a slot; the later
// arming wins the slot, which is acceptable at realistic tab counts.
const tabIDSlots = 500

var blockedResources = []interfaces.ResourceClass{
	interfaces.ResourceXHR,
	interfaces.ResourceSubFrame,
	interfaces.ResourceWebSocket,
}

// Manager tracks which tabs are quarantined and keeps the platform's rule
// set in sync. All methods are safe for concurrent use.
type Manager struct {
	platform interfaces.RulePlatform
	logger   logging.Logger

	mu            sync.Mutex
	activeTabRule map[int64][]int
}

// NewManager constructs the quarantine manager.
func NewManager(platform interfaces.RulePlatform, logger logging.Logger) (*Manager, error) {
	if platform == nil {
		return nil, errors.New("rules: nil platform")
	}
	if logger == nil {
		return nil, errors.New("rules: nil logger")
	}
	return &Manager{
		platform:      platform,
		logger:        logger.With(logging.Field{Key: "component", Value: "rules"}),
		activeTabRule: make(map[int64][]int),
	}, nil
}

// ruleIDs derives the deterministic rule-ID triple for a tab. Determinism
// matters: after a crash the same tab re-arms with the same IDs, and
// UpdateRules' remove-then-add replaces the stale rules instead of leaking
// them.
func ruleIDs(tabID int64) []int {
	base := int(tabID%tabIDSlots) * 10
	ids := make([]int, len(blockedResources))
	for i := range blockedResources {
		ids[i] = base + i + 1
	}
	return ids
}

// Arm installs the block-rule set for a tab. Arming an already-armed tab is
// idempotent: the same IDs are removed and re-added.
func (m *Manager) Arm(ctx context.Context, tabID int64) error {
	ids := ruleIDs(tabID)
	add := make([]interfaces.BlockRule, len(blockedResources))
	for i, res := range blockedResources {
		add[i] = interfaces.BlockRule{ID: ids[i], TabID: tabID, Resource: res}
	}

	if err := m.platform.UpdateRules(ctx, add, ids); err != nil {
		return fmt.Errorf("arm tab %d: %w", tabID, err)
	}

	m.mu.Lock()
	m.activeTabRule[tabID] = ids
	m.mu.Unlock()

	m.logger.Info("quarantine armed",
		logging.Field{Key: "tab_id", Value: tabID},
		logging.Field{Key: "rule_ids", Value: ids})
	return nil
}

// Disarm removes a tab's block rules. Disarming a tab that was never armed
// is a no-op.
func (m *Manager) Disarm(ctx context.Context, tabID int64) error {
	m.mu.Lock()
	ids, armed := m.activeTabRule[tabID]
	m.mu.Unlock()
	if !armed {
		return nil
	}

	if err := m.platform.UpdateRules(ctx, nil, ids); err != nil {
		return fmt.Errorf("disarm tab %d: %w", tabID, err)
	}

	m.mu.Lock()
	delete(m.activeTabRule, tabID)
	m.mu.Unlock()

	m.logger.Info("quarantine disarmed",
		logging.Field{Key: "tab_id", Value: tabID})
	return nil
}

// CleanupTab releases everything held for a closed tab. Platform errors are
// logged, not returned: the tab is gone either way and the deterministic IDs
// will be reclaimed on the next arming of the slot.
func (m *Manager) CleanupTab(ctx context.Context, tabID int64) {
	if err := m.Disarm(ctx, tabID); err != nil {
		m.logger.Warn("cleanup failed to remove rules",
			logging.Field{Key: "tab_id", Value: tabID},
			logging.Field{Key: "error", Value: err.Error()})
		m.mu.Lock()
		delete(m.activeTabRule, tabID)
		m.mu.Unlock()
	}
}

// IsArmed reports whether a tab currently has block rules installed.
func (m *Manager) IsArmed(tabID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, armed := m.activeTabRule[tabID]
	return armed
}
