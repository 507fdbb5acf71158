package storage

import (
	"sync"

	"github.com/sentineltk/sentinel/internal/model"
)

// TabStates holds the volatile per-tab sessions. Process-lifetime only, by
// design: a fresh navigation always re-initializes tab state, so losing this
// map on restart is harmless.
type TabStates struct {
	mu       sync.Mutex
	sessions map[int64]*model.TabSession
}

// NewTabStates returns an empty session map.
func NewTabStates() *TabStates {
	return &TabStates{sessions: make(map[int64]*model.TabSession)}
}

// Set stores (or replaces) the session for a tab.
func (t *TabStates) Set(tabID int64, session *model.TabSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[tabID] = session
}

// Get returns the session for a tab, or nil when none exists.
func (t *TabStates) Get(tabID int64) *model.TabSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[tabID]
}

// Remove drops the session for a tab.
func (t *TabStates) Remove(tabID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, tabID)
}
