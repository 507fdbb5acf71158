// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"sync"

	"github.com/sentineltk/sentinel/internal/interfaces"
	"github.com/sentineltk/sentinel/internal/logging"
	"github.com/sentineltk/sentinel/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── Reputation ────────────────────────────────────────────────────────

// DummyReputation implements interfaces.ReputationLookup with canned
// responses and call recording.
type DummyReputation struct {
	mu sync.Mutex

	// Scores maps domain to the canned score. A missing domain answers
	// (0, false), i.e. "no data".
	Scores map[string]int
	// ReportErr is returned by Report when set.
	ReportErr error

	ScoreCalls  []string
	ReportCalls []struct {
		Domain string
		Reason model.ReportReason
	}
}

func (d *DummyReputation) Score(_ context.Context, domain string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ScoreCalls = append(d.ScoreCalls, domain)
	score, ok := d.Scores[domain]
	return score, ok
}

func (d *DummyReputation) Report(_ context.Context, domain string, reason model.ReportReason) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ReportCalls = append(d.ReportCalls, struct {
		Domain string
		Reason model.ReportReason
	}{domain, reason})
	return d.ReportErr
}

// ─── Rule platform ─────────────────────────────────────────────────────

// RuleUpdate records one UpdateRules call.
type RuleUpdate struct {
	Added   []interfaces.BlockRule
	Removed []int
}

// DummyRulePlatform implements interfaces.RulePlatform and keeps the
// resulting rule set so tests can assert which rules are installed.
type DummyRulePlatform struct {
	mu sync.Mutex

	// Err, when set, is returned by every UpdateRules call.
	Err error

	Updates []RuleUpdate
	rules   map[int]interfaces.BlockRule
}

func (d *DummyRulePlatform) UpdateRules(_ context.Context, add []interfaces.BlockRule, removeIDs []int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	if d.rules == nil {
		d.rules = make(map[int]interfaces.BlockRule)
	}
	for _, id := range removeIDs {
		delete(d.rules, id)
	}
	for _, rule := range add {
		d.rules[rule.ID] = rule
	}
	d.Updates = append(d.Updates, RuleUpdate{Added: add, Removed: removeIDs})
	return nil
}

// InstalledRules returns a copy of the current rule set.
func (d *DummyRulePlatform) InstalledRules() []interfaces.BlockRule {
	d.mu.Lock()
	defer d.mu.Unlock()
	rules := make([]interfaces.BlockRule, 0, len(d.rules))
	for _, rule := range d.rules {
		rules = append(rules, rule)
	}
	return rules
}

// RulesForTab returns the installed rules scoped to one tab.
func (d *DummyRulePlatform) RulesForTab(tabID int64) []interfaces.BlockRule {
	var scoped []interfaces.BlockRule
	for _, rule := range d.InstalledRules() {
		if rule.TabID == tabID {
			scoped = append(scoped, rule)
		}
	}
	return scoped
}

// ─── Tab messenger ─────────────────────────────────────────────────────

// SentAction records one SendRiskAction call.
type SentAction struct {
	TabID  int64
	Action model.RiskAction
	Score  int
}

// DummyMessenger implements interfaces.TabMessenger with recording.
type DummyMessenger struct {
	mu   sync.Mutex
	Sent []SentAction
}

func (d *DummyMessenger) SendRiskAction(tabID int64, action model.RiskAction, score int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Sent = append(d.Sent, SentAction{TabID: tabID, Action: action, Score: score})
}

// Last returns the most recent action sent, or a zero value.
func (d *DummyMessenger) Last() SentAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Sent) == 0 {
		return SentAction{}
	}
	return d.Sent[len(d.Sent)-1]
}

// ─── Notifier ──────────────────────────────────────────────────────────

// DangerAlert records one NotifyDanger call.
type DangerAlert struct {
	TabID    int64
	Hostname string
	Score    int
}

// DummyNotifier implements interfaces.Notifier with recording.
type DummyNotifier struct {
	mu     sync.Mutex
	Alerts []DangerAlert
}

func (d *DummyNotifier) NotifyDanger(tabID int64, hostname string, score int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Alerts = append(d.Alerts, DangerAlert{TabID: tabID, Hostname: hostname, Score: score})
}

// AlertCount returns how many danger alerts were raised.
func (d *DummyNotifier) AlertCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Alerts)
}
