package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sentineltk/sentinel/internal/app"
	"github.com/sentineltk/sentinel/internal/engine"
	"github.com/sentineltk/sentinel/internal/model"
	"github.com/sentineltk/sentinel/internal/rules"
	"github.com/sentineltk/sentinel/internal/storage"
	"github.com/sentineltk/sentinel/internal/testutil"
)

type fixture struct {
	coordinator *app.Coordinator
	store       storage.Store
	platform    *testutil.DummyRulePlatform
	messenger   *testutil.DummyMessenger
	notifier    *testutil.DummyNotifier
	reputation  *testutil.DummyReputation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := &testutil.DummyLogger{}
	store := storage.NewMemoryStore(storage.Config{})
	rep := &testutil.DummyReputation{Scores: map[string]int{}}

	eng, err := engine.NewRiskEngine(engine.DefaultWeights(), store, rep, logger)
	if err != nil {
		t.Fatalf("NewRiskEngine: %v", err)
	}

	platform := &testutil.DummyRulePlatform{}
	ruleMgr, err := rules.NewManager(platform, logger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	messenger := &testutil.DummyMessenger{}
	notifier := &testutil.DummyNotifier{}
	coordinator, err := app.NewCoordinator(eng, store, ruleMgr, rep, messenger, notifier, logger)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	return &fixture{
		coordinator: coordinator,
		store:       store,
		platform:    platform,
		messenger:   messenger,
		notifier:    notifier,
		reputation:  rep,
	}
}

func (f *fixture) navigate(t *testing.T, tabID int64, url string) {
	t.Helper()
	err := f.coordinator.Dispatch(context.Background(), model.Event{
		Type:  model.EventNavigationCommitted,
		TabID: tabID,
		URL:   url,
	})
	if err != nil {
		t.Fatalf("navigate %s: %v", url, err)
	}
}

func TestCoordinator_SafeNavigationReleasesQuarantine(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.navigate(t, 1, "https://example.com/")

	session := f.coordinator.TabSession(1)
	if session == nil || session.Score == nil {
		t.Fatalf("session = %+v", session)
	}
	if session.Score.Level != model.LevelSafe {
		t.Errorf("level = %q, want safe", session.Score.Level)
	}
	if session.QuarantineActive {
		t.Error("quarantine should be released after a safe verdict")
	}
	if got := len(f.platform.RulesForTab(1)); got != 0 {
		t.Errorf("rules still installed: %d", got)
	}
	if last := f.messenger.Last(); last.Action != model.ActionNone {
		t.Errorf("last action = %+v, want NONE", last)
	}

	// Verdict is persisted for the history view and the cache.
	if cached, _ := f.store.GetCachedScore(context.Background(), "example.com"); cached == nil {
		t.Error("fresh verdict should be cached")
	}
	records, _ := f.store.GetScanHistory(context.Background(), 1)
	if len(records) != 1 || records[0].Domain != "example.com" {
		t.Errorf("history = %+v", records)
	}
}

func TestCoordinator_DangerNavigationBlocksAndNotifies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.reputation.Scores["badsite.com"] = 80

	f.navigate(t, 2, "https://badsite.com/login")

	session := f.coordinator.TabSession(2)
	if session.Score.Level != model.LevelDanger {
		t.Fatalf("level = %q, want danger", session.Score.Level)
	}
	if !session.QuarantineActive {
		t.Error("quarantine should stay armed for danger")
	}
	if got := len(f.platform.RulesForTab(2)); got != 3 {
		t.Errorf("installed rules = %d, want 3", got)
	}
	if last := f.messenger.Last(); last.Action != model.ActionFullBlock {
		t.Errorf("last action = %+v, want FULL_BLOCK", last)
	}
	if f.notifier.AlertCount() != 1 {
		t.Errorf("alerts = %d, want 1", f.notifier.AlertCount())
	}
}

func TestCoordinator_OverrideReleasesAndSticks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.reputation.Scores["badsite.com"] = 80

	f.navigate(t, 3, "https://badsite.com/")

	if err := f.coordinator.Dispatch(ctx, model.Event{Type: model.EventUserOverride, TabID: 3}); err != nil {
		t.Fatalf("override: %v", err)
	}

	session := f.coordinator.TabSession(3)
	if !session.UserOverride || session.QuarantineActive {
		t.Errorf("session after override = %+v", session)
	}
	if got := len(f.platform.RulesForTab(3)); got != 0 {
		t.Errorf("rules after override = %d, want 0", got)
	}
	if last := f.messenger.Last(); last.Action != model.ActionNone {
		t.Errorf("last action = %+v, want NONE", last)
	}

	// The override changes the tab, never the verdict: the stored score is
	// untouched and other tabs still see the danger.
	cached, _ := f.store.GetCachedScore(ctx, "badsite.com")
	if cached == nil || cached.Score != 80 {
		t.Errorf("cached = %+v, want score 80", cached)
	}

	// Sticky: later signal batches are ignored until the next navigation.
	sent := len(f.messenger.Sent)
	err := f.coordinator.Dispatch(ctx, model.Event{
		Type:    model.EventSignalsReceived,
		TabID:   3,
		Signals: &model.PageSignals{HasFakeBadge: true},
	})
	if err != nil {
		t.Fatalf("signals after override: %v", err)
	}
	if len(f.messenger.Sent) != sent {
		t.Error("signals after override must not trigger new actions")
	}
}

func TestCoordinator_SignalsEscalateToBlock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	// gooogle.com scores 20 (typosquat) and is released...
	f.navigate(t, 4, "https://gooogle.com/")
	if last := f.messenger.Last(); last.Action != model.ActionNone {
		t.Fatalf("initial action = %+v, want NONE", last)
	}

	// ...until the page starts asking for card numbers under a fake badge.
	err := f.coordinator.Dispatch(ctx, model.Event{
		Type:  model.EventSignalsReceived,
		TabID: 4,
		Signals: &model.PageSignals{
			HasFakeBadge:        true,
			HasSensitiveInput:   true,
			SensitiveInputTypes: []string{model.InputCreditCard},
			HasUrgencyText:      true,
			UrgencyScore:        2,
		},
	})
	if err != nil {
		t.Fatalf("signals: %v", err)
	}

	session := f.coordinator.TabSession(4)
	if session.Score.Level != model.LevelDanger {
		t.Fatalf("level = %q (score %d), want danger", session.Score.Level, session.Score.Score)
	}
	if !session.QuarantineActive {
		t.Error("escalation should re-arm quarantine")
	}
	if last := f.messenger.Last(); last.Action != model.ActionFullBlock {
		t.Errorf("last action = %+v, want FULL_BLOCK", last)
	}
}

func TestCoordinator_RepeatedSignalBatchesAreStable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.navigate(t, 5, "https://gooogle.com/")
	batch := &model.PageSignals{HasFakeBadge: true}

	for i := 0; i < 3; i++ {
		if err := f.coordinator.Dispatch(ctx, model.Event{
			Type: model.EventSignalsReceived, TabID: 5, Signals: batch,
		}); err != nil {
			t.Fatalf("signals round %d: %v", i, err)
		}
	}

	// 20 (typosquat) + 25 (badge), not + 75.
	if score := f.coordinator.TabSession(5).Score.Score; score != 45 {
		t.Errorf("score after repeats = %d, want 45", score)
	}
}

func TestCoordinator_SignalEscalationUpdatesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	// 5 (keyword) — cached as safe.
	f.navigate(t, 12, "https://example-secure-login.com/")

	err := f.coordinator.Dispatch(ctx, model.Event{
		Type:  model.EventSignalsReceived,
		TabID: 12,
		Signals: &model.PageSignals{
			HasFakeBadge:        true,
			HasSensitiveInput:   true,
			SensitiveInputTypes: []string{model.InputCreditCard, model.InputIdentity},
			HasUrgencyText:      true,
			UrgencyScore:        2,
		},
	})
	if err != nil {
		t.Fatalf("signals: %v", err)
	}

	// 5 + 25 (badge) + 8 (cc) + 15 (identity) + 24 (urgency).
	session := f.coordinator.TabSession(12)
	if session.Score.Score != 77 || session.Score.Level != model.LevelDanger {
		t.Fatalf("session score = %d/%q, want 77/danger", session.Score.Score, session.Score.Level)
	}

	// The escalated verdict replaces the stale safe entry in the cache and
	// lands in the scan history.
	cached, err := f.store.GetCachedScore(ctx, "example-secure-login.com")
	if err != nil {
		t.Fatalf("GetCachedScore: %v", err)
	}
	if cached == nil || cached.Score != 77 || cached.Level != model.LevelDanger {
		t.Fatalf("cached = %+v, want 77/danger", cached)
	}
	records, err := f.store.GetScanHistory(ctx, 1)
	if err != nil {
		t.Fatalf("GetScanHistory: %v", err)
	}
	var sawDanger bool
	for _, rec := range records {
		if rec.Domain == "example-secure-login.com" && rec.Level == model.LevelDanger {
			sawDanger = true
		}
	}
	if !sawDanger {
		t.Errorf("history = %+v, want a danger record", records)
	}

	// A later navigation must not fast-path on the old safe verdict.
	calls := len(f.reputation.ScoreCalls)
	f.navigate(t, 12, "https://example-secure-login.com/checkout")
	if got := len(f.reputation.ScoreCalls); got != calls+1 {
		t.Errorf("reputation calls = %d, want %d (full re-analysis)", got, calls+1)
	}
}

func TestCoordinator_WhitelistAddReleasesTab(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.reputation.Scores["badsite.com"] = 80

	f.navigate(t, 6, "https://badsite.com/")

	err := f.coordinator.Dispatch(ctx, model.Event{
		Type:   model.EventWhitelistAdded,
		TabID:  6,
		Domain: "badsite.com",
	})
	if err != nil {
		t.Fatalf("whitelist add: %v", err)
	}

	if ok, _ := f.store.IsWhitelisted(ctx, "badsite.com"); !ok {
		t.Error("domain should be whitelisted")
	}
	session := f.coordinator.TabSession(6)
	if session.QuarantineActive {
		t.Error("whitelisting should release the tab")
	}
	if session.Score.Score != 0 {
		t.Errorf("session score = %d, want 0", session.Score.Score)
	}
	if last := f.messenger.Last(); last.Action != model.ActionNone {
		t.Errorf("last action = %+v, want NONE", last)
	}
}

func TestCoordinator_SafeCacheFastPathSkipsAnalysis(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.navigate(t, 7, "https://example.com/")
	if calls := len(f.reputation.ScoreCalls); calls != 1 {
		t.Fatalf("reputation calls after first visit = %d, want 1", calls)
	}

	// Second navigation hits the cached safe verdict; no re-analysis.
	f.navigate(t, 7, "https://example.com/other")
	if calls := len(f.reputation.ScoreCalls); calls != 1 {
		t.Errorf("reputation calls after cached visit = %d, want still 1", calls)
	}
	if session := f.coordinator.TabSession(7); session.Score == nil || session.Score.Level != model.LevelSafe {
		t.Errorf("session = %+v", session)
	}
}

func TestCoordinator_RedirectEventsFeedScoring(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.navigate(t, 8, "https://example.org/")

	err := f.coordinator.Dispatch(ctx, model.Event{
		Type:          model.EventRedirectDetected,
		TabID:         8,
		RedirectCount: 3,
		RapidRedirect: true,
	})
	if err != nil {
		t.Fatalf("redirect event: %v", err)
	}

	score := f.coordinator.TabSession(8).Score
	// 15 (rapid) + 12 (chain) on a clean base.
	if score.Score != 27 {
		t.Errorf("score = %d, want 27", score.Score)
	}
}

func TestCoordinator_TabClosedCleansUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.reputation.Scores["badsite.com"] = 80

	f.navigate(t, 9, "https://badsite.com/")
	if len(f.platform.RulesForTab(9)) == 0 {
		t.Fatal("expected installed rules before close")
	}

	if err := f.coordinator.Dispatch(ctx, model.Event{Type: model.EventTabClosed, TabID: 9}); err != nil {
		t.Fatalf("tab closed: %v", err)
	}
	if f.coordinator.TabSession(9) != nil {
		t.Error("session should be gone")
	}
	if got := len(f.platform.RulesForTab(9)); got != 0 {
		t.Errorf("rules after close = %d, want 0", got)
	}
}

func TestCoordinator_FailsOpenOnBadURL(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.navigate(t, 10, "https://")

	if got := len(f.platform.RulesForTab(10)); got != 0 {
		t.Errorf("rules after unparsable navigation = %d, want 0", got)
	}
	if last := f.messenger.Last(); last.Action != model.ActionNone {
		t.Errorf("last action = %+v, want NONE", last)
	}
}

func TestCoordinator_IgnoresNonWebSchemes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, raw := range []string{"chrome://settings", "about:blank", "chrome-extension://abc/popup.html"} {
		f.navigate(t, 11, raw)
	}

	// Browser-internal pages are not scoreable: no session, no rules, no
	// messages to the tab.
	if session := f.coordinator.TabSession(11); session != nil {
		t.Errorf("session for internal page = %+v, want none", session)
	}
	if got := len(f.platform.Updates); got != 0 {
		t.Errorf("rule updates = %d, want 0", got)
	}
	if got := len(f.messenger.Sent); got != 0 {
		t.Errorf("messages sent = %d, want 0", got)
	}
}

func TestCoordinator_SignalsWithoutSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.coordinator.Dispatch(context.Background(), model.Event{
		Type:    model.EventSignalsReceived,
		TabID:   11,
		Signals: &model.PageSignals{HasPopupSpam: true},
	})
	if !errors.Is(err, app.ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestCoordinator_ReportValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	err := f.coordinator.Dispatch(ctx, model.Event{
		Type:   model.EventReportRequested,
		Domain: "scam.example",
		Reason: model.ReportReason("bogus"),
	})
	if !errors.Is(err, app.ErrInvalidReason) {
		t.Errorf("err = %v, want ErrInvalidReason", err)
	}

	err = f.coordinator.Dispatch(ctx, model.Event{
		Type:   model.EventReportRequested,
		Domain: "scam.example",
		Reason: model.ReasonPhishing,
	})
	if err != nil {
		t.Fatalf("valid report: %v", err)
	}
	if len(f.reputation.ReportCalls) != 1 || f.reputation.ReportCalls[0].Domain != "scam.example" {
		t.Errorf("report calls = %+v", f.reputation.ReportCalls)
	}
}
