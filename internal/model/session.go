package model

import "time"

// TabSession is the per-tab state owned exclusively by the coordinator.
// It is created on a committed top-level navigation, mutated in place as
// signal batches arrive and destroyed when the tab closes.
type TabSession struct {
	// ID identifies one navigation. A superseding navigation replaces the
	// session with a fresh ID, which is how late analysis results for the
	// old page are detected and discarded.
	ID string `json:"id"`

	TabID    int64  `json:"tab_id"`
	URL      string `json:"url"`
	Hostname string `json:"hostname"`

	Score   *ScoreResult `json:"score,omitempty"`
	Signals PageSignals  `json:"signals"`

	QuarantineActive bool `json:"quarantine_active"`

	// UserOverride is sticky: once set, signal batches no longer change
	// quarantine or page UI state until the next navigation.
	UserOverride bool `json:"user_override"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
