package interfaces

import (
	"context"

	"github.com/sentineltk/sentinel/internal/model"
)

// ResourceClass is a network request category a block rule applies to.
type ResourceClass string

const (
	ResourceXHR       ResourceClass = "xmlhttprequest"
	ResourceSubFrame  ResourceClass = "sub_frame"
	ResourceWebSocket ResourceClass = "websocket"
)

// BlockRule is one scoped network-block rule. Rules are always third-party
// only and scoped to a single tab.
type BlockRule struct {
	ID       int
	TabID    int64
	Resource ResourceClass
}

// RulePlatform is the host capability for installing and removing scoped
// network-block rules. Implementations replace any existing rules with the
// given ids before adding, so repeated arming is idempotent.
type RulePlatform interface {
	// UpdateRules atomically removes removeIDs and installs add.
	UpdateRules(ctx context.Context, add []BlockRule, removeIDs []int) error
}

// TabMessenger delivers a risk action decision to the page running in a tab.
// Delivery is best-effort: a tab with no listener yet is not an error.
type TabMessenger interface {
	SendRiskAction(tabID int64, action model.RiskAction, score int)
}

// Notifier raises an out-of-band user alert for a danger verdict.
type Notifier interface {
	NotifyDanger(tabID int64, hostname string, score int)
}

// ReputationLookup is the best-effort backend reputation capability.
// Score returns (0, false) on any failure; it never blocks the score path
// beyond its own timeout and never returns an error.
type ReputationLookup interface {
	Score(ctx context.Context, domain string) (int, bool)

	// Report submits a community report. Fire-and-forget; a server-side
	// rejection (rate limit) is swallowed by implementations.
	Report(ctx context.Context, domain string, reason model.ReportReason) error
}
