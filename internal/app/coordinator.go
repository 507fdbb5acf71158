// Package app wires the scoring engine, storage, quarantine rules and host
// capabilities into the per-tab protection state machine. All browser-side
// callbacks enter through one tagged event union so the whole lifecycle is
// testable without a real browser host.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentineltk/sentinel/internal/engine"
	"github.com/sentineltk/sentinel/internal/interfaces"
	"github.com/sentineltk/sentinel/internal/logging"
	"github.com/sentineltk/sentinel/internal/model"
	"github.com/sentineltk/sentinel/internal/rules"
	"github.com/sentineltk/sentinel/internal/storage"
	"github.com/sentineltk/sentinel/internal/utils"
)

var (
	ErrNoSession     = errors.New("app: no session for tab")
	ErrInvalidEvent  = errors.New("app: invalid event")
	ErrInvalidReason = errors.New("app: invalid report reason")
)

// Coordinator owns all per-tab sessions. Events for the same tab are
// serialized; events for different tabs proceed concurrently.
type Coordinator struct {
	engine     *engine.RiskEngine
	store      storage.Store
	tabs       *storage.TabStates
	rules      *rules.Manager
	reputation interfaces.ReputationLookup
	messenger  interfaces.TabMessenger
	notifier   interfaces.Notifier
	logger     logging.Logger

	mu       sync.Mutex
	tabLocks map[int64]*sync.Mutex
}

// NewCoordinator constructs the coordinator. messenger and notifier may be
// nil (headless runs); reputation may be nil when no backend is configured.
func NewCoordinator(
	eng *engine.RiskEngine,
	store storage.Store,
	ruleMgr *rules.Manager,
	reputation interfaces.ReputationLookup,
	messenger interfaces.TabMessenger,
	notifier interfaces.Notifier,
	logger logging.Logger,
) (*Coordinator, error) {
	if eng == nil {
		return nil, errors.New("app: nil engine")
	}
	if store == nil {
		return nil, errors.New("app: nil store")
	}
	if ruleMgr == nil {
		return nil, errors.New("app: nil rule manager")
	}
	if logger == nil {
		return nil, errors.New("app: nil logger")
	}
	return &Coordinator{
		engine:     eng,
		store:      store,
		tabs:       storage.NewTabStates(),
		rules:      ruleMgr,
		reputation: reputation,
		messenger:  messenger,
		notifier:   notifier,
		logger:     logger.With(logging.Field{Key: "component", Value: "coordinator"}),
		tabLocks:   make(map[int64]*sync.Mutex),
	}, nil
}

// TabSession returns a snapshot copy of a tab's session, or nil.
func (c *Coordinator) TabSession(tabID int64) *model.TabSession {
	lock := c.tabLock(tabID)
	lock.Lock()
	defer lock.Unlock()

	session := c.tabs.Get(tabID)
	if session == nil {
		return nil
	}
	snapshot := *session
	return &snapshot
}

// Dispatch routes one event through the per-tab state machine.
func (c *Coordinator) Dispatch(ctx context.Context, ev model.Event) error {
	switch ev.Type {
	case model.EventNavigationCommitted:
		return c.handleNavigation(ctx, ev)
	case model.EventSignalsReceived:
		return c.handleSignals(ctx, ev)
	case model.EventUserOverride:
		return c.handleOverride(ctx, ev)
	case model.EventReportRequested:
		return c.handleReport(ctx, ev)
	case model.EventWhitelistAdded:
		return c.handleWhitelistAdded(ctx, ev)
	case model.EventRedirectDetected:
		return c.handleRedirect(ctx, ev)
	case model.EventTabClosed:
		return c.handleTabClosed(ctx, ev)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
}

func (c *Coordinator) tabLock(tabID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.tabLocks[tabID]
	if !ok {
		lock = &sync.Mutex{}
		c.tabLocks[tabID] = lock
	}
	return lock
}

// handleNavigation runs the Safe-Start sequence: quarantine first, score
// second, release (or confirm) third. The analysis itself runs outside the
// tab lock; the session ID is re-checked before results are applied so a
// slow analysis can never clobber a newer navigation.
func (c *Coordinator) handleNavigation(ctx context.Context, ev model.Event) error {
	hostname, err := hostnameFromURL(ev.URL)
	if errors.Is(err, errNonWebScheme) {
		// Browser-internal pages (chrome://, about:, extension pages) are
		// not scoreable and never quarantined; leave the tab untouched.
		c.logger.Debug("ignoring non-web navigation",
			logging.Field{Key: "tab_id", Value: ev.TabID},
			logging.Field{Key: "url", Value: ev.URL})
		return nil
	}
	if err != nil {
		// Fail open. An unparsable URL (browser-internal pages and the like)
		// must not leave a stale quarantine running.
		c.failOpen(ctx, ev.TabID, err)
		return nil
	}
	domain := utils.BaseDomain(hostname)

	session := &model.TabSession{
		ID:        uuid.NewString(),
		TabID:     ev.TabID,
		URL:       ev.URL,
		Hostname:  hostname,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	lock := c.tabLock(ev.TabID)
	lock.Lock()
	c.tabs.Set(ev.TabID, session)
	if err := c.rules.Arm(ctx, ev.TabID); err != nil {
		// Quarantine could not be installed; proceed unprotected rather
		// than wedge the tab.
		c.logger.Error("failed to arm quarantine",
			logging.Field{Key: "tab_id", Value: ev.TabID},
			logging.Field{Key: "error", Value: err.Error()})
	} else {
		session.QuarantineActive = true
	}
	lock.Unlock()

	if _, err := c.store.RecordVisit(ctx, domain); err != nil {
		c.logger.Warn("visit record failed",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "error", Value: err.Error()})
	}

	// Cache fast path, safe verdicts only: a cached suspicious or danger
	// score is always re-derived so mitigations rest on fresh evidence.
	if cached, err := c.store.GetCachedScore(ctx, domain); err != nil {
		c.logger.Warn("cache read failed",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "error", Value: err.Error()})
	} else if cached != nil && cached.Level == model.LevelSafe {
		c.applyAnalysis(ctx, ev.TabID, session.ID, cached, false)
		return nil
	}

	result, err := c.engine.AnalyzeDomain(ctx, hostname)
	if err != nil {
		c.failOpen(ctx, ev.TabID, err)
		return nil
	}

	c.applyAnalysis(ctx, ev.TabID, session.ID, result, true)
	return nil
}

// applyAnalysis installs a domain-level verdict into the session identified
// by sessionID. A mismatched ID means the tab has navigated again; the
// result is stale and dropped.
func (c *Coordinator) applyAnalysis(ctx context.Context, tabID int64, sessionID string, result *model.ScoreResult, fresh bool) {
	lock := c.tabLock(tabID)
	lock.Lock()
	defer lock.Unlock()

	session := c.tabs.Get(tabID)
	if session == nil || session.ID != sessionID {
		c.logger.Debug("discarding stale analysis result",
			logging.Field{Key: "tab_id", Value: tabID},
			logging.Field{Key: "session_id", Value: sessionID})
		return
	}

	session.Score = result
	session.UpdatedAt = time.Now().UTC()

	if fresh {
		c.persistVerdict(ctx, session)
	}

	c.applyRiskAction(ctx, session)
}

// persistVerdict mirrors the session's current verdict into the cache and
// the scan history. Called for fresh domain analyses and again whenever a
// signal batch changes the composite, so a later navigation never fast-paths
// on a stale "safe" entry for a page that content since escalated.
func (c *Coordinator) persistVerdict(ctx context.Context, session *model.TabSession) {
	domain := utils.BaseDomain(session.Hostname)
	if err := c.store.SetCachedScore(ctx, domain, session.Score); err != nil {
		c.logger.Warn("cache write failed",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "error", Value: err.Error()})
	}
	if err := c.store.RecordScanHistory(ctx, domain, session.Score.Score, session.Score.Level); err != nil {
		c.logger.Warn("history write failed",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

func (c *Coordinator) handleSignals(ctx context.Context, ev model.Event) error {
	lock := c.tabLock(ev.TabID)
	lock.Lock()
	defer lock.Unlock()

	session := c.tabs.Get(ev.TabID)
	if session == nil {
		return ErrNoSession
	}
	if session.UserOverride {
		// Sticky until the next navigation.
		return nil
	}

	session.Signals.Merge(ev.Signals)
	session.UpdatedAt = time.Now().UTC()

	if session.Score == nil {
		// Analysis still in flight; the merged signals are recomputed as
		// soon as the domain verdict lands on the next batch.
		return nil
	}

	session.Score = c.engine.RecalculateWithSignals(session.Score, &session.Signals)
	c.persistVerdict(ctx, session)
	c.applyRiskAction(ctx, session)
	return nil
}

func (c *Coordinator) handleRedirect(ctx context.Context, ev model.Event) error {
	signals := &model.PageSignals{
		RedirectCount: ev.RedirectCount,
		RapidRedirect: ev.RapidRedirect,
	}
	return c.handleSignals(ctx, model.Event{
		Type:    model.EventSignalsReceived,
		TabID:   ev.TabID,
		Signals: signals,
	})
}

func (c *Coordinator) handleOverride(ctx context.Context, ev model.Event) error {
	lock := c.tabLock(ev.TabID)
	lock.Lock()
	defer lock.Unlock()

	session := c.tabs.Get(ev.TabID)
	if session == nil {
		return ErrNoSession
	}

	session.UserOverride = true
	session.UpdatedAt = time.Now().UTC()
	c.release(ctx, session)

	c.logger.Info("user override accepted",
		logging.Field{Key: "tab_id", Value: ev.TabID},
		logging.Field{Key: "hostname", Value: session.Hostname})
	return nil
}

func (c *Coordinator) handleWhitelistAdded(ctx context.Context, ev model.Event) error {
	domain := utils.NormalizeHostname(ev.Domain)
	if domain == "" {
		return storage.ErrEmptyDomain
	}
	domain = utils.BaseDomain(domain)

	if err := c.store.AddToWhitelist(ctx, domain); err != nil {
		return fmt.Errorf("add to whitelist: %w", err)
	}

	// Release the requesting tab immediately; other tabs on the domain pick
	// the whitelist up on their next navigation.
	lock := c.tabLock(ev.TabID)
	lock.Lock()
	defer lock.Unlock()

	session := c.tabs.Get(ev.TabID)
	if session == nil || utils.BaseDomain(session.Hostname) != domain {
		return nil
	}

	session.Score = model.NewScoreResult(0, []model.ScoreFactor{{
		Signal:      model.SignalWhitelisted,
		Weight:      0,
		Description: "on user whitelist",
	}})
	session.UpdatedAt = time.Now().UTC()
	c.release(ctx, session)
	return nil
}

func (c *Coordinator) handleReport(ctx context.Context, ev model.Event) error {
	if !ev.Reason.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReason, ev.Reason)
	}
	domain := utils.BaseDomain(utils.NormalizeHostname(ev.Domain))
	if domain == "" {
		return storage.ErrEmptyDomain
	}
	if c.reputation == nil {
		return errors.New("app: no reputation backend configured")
	}
	if err := c.reputation.Report(ctx, domain, ev.Reason); err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	c.logger.Info("report submitted",
		logging.Field{Key: "domain", Value: domain},
		logging.Field{Key: "reason", Value: string(ev.Reason)})
	return nil
}

func (c *Coordinator) handleTabClosed(ctx context.Context, ev model.Event) error {
	lock := c.tabLock(ev.TabID)
	lock.Lock()
	c.rules.CleanupTab(ctx, ev.TabID)
	c.tabs.Remove(ev.TabID)
	lock.Unlock()

	c.mu.Lock()
	delete(c.tabLocks, ev.TabID)
	c.mu.Unlock()
	return nil
}

// applyRiskAction maps the session's current verdict to quarantine state and
// page messaging. Caller holds the tab lock.
func (c *Coordinator) applyRiskAction(ctx context.Context, session *model.TabSession) {
	if session.UserOverride {
		c.release(ctx, session)
		return
	}

	action := model.ActionForLevel(session.Score.Level)
	switch action {
	case model.ActionFullBlock:
		// Re-confirm: a signal batch can escalate a tab released earlier.
		if err := c.rules.Arm(ctx, session.TabID); err != nil {
			c.logger.Error("failed to re-arm quarantine",
				logging.Field{Key: "tab_id", Value: session.TabID},
				logging.Field{Key: "error", Value: err.Error()})
		} else {
			session.QuarantineActive = true
		}
		if c.notifier != nil {
			c.notifier.NotifyDanger(session.TabID, session.Hostname, session.Score.Score)
		}
	default:
		c.disarm(ctx, session)
	}

	if c.messenger != nil {
		c.messenger.SendRiskAction(session.TabID, action, session.Score.Score)
	}

	c.logger.Info("risk action applied",
		logging.Field{Key: "tab_id", Value: session.TabID},
		logging.Field{Key: "hostname", Value: session.Hostname},
		logging.Field{Key: "score", Value: session.Score.Score},
		logging.Field{Key: "level", Value: string(session.Score.Level)},
		logging.Field{Key: "action", Value: string(action)})
}

// release drops quarantine and tells the page to show nothing. Used for
// override and whitelist, where the verdict itself may still be danger.
func (c *Coordinator) release(ctx context.Context, session *model.TabSession) {
	c.disarm(ctx, session)
	score := 0
	if session.Score != nil {
		score = session.Score.Score
	}
	if c.messenger != nil {
		c.messenger.SendRiskAction(session.TabID, model.ActionNone, score)
	}
}

func (c *Coordinator) disarm(ctx context.Context, session *model.TabSession) {
	if err := c.rules.Disarm(ctx, session.TabID); err != nil {
		c.logger.Error("failed to disarm quarantine",
			logging.Field{Key: "tab_id", Value: session.TabID},
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	session.QuarantineActive = false
}

// failOpen clears any quarantine for a tab after a navigation handler error.
// Protection is advisory; a broken handler must not brick the tab.
func (c *Coordinator) failOpen(ctx context.Context, tabID int64, cause error) {
	c.logger.Warn("navigation handling failed, releasing tab",
		logging.Field{Key: "tab_id", Value: tabID},
		logging.Field{Key: "error", Value: cause.Error()})

	lock := c.tabLock(tabID)
	lock.Lock()
	defer lock.Unlock()

	if session := c.tabs.Get(tabID); session != nil {
		c.release(ctx, session)
		return
	}
	c.rules.CleanupTab(ctx, tabID)
	if c.messenger != nil {
		c.messenger.SendRiskAction(tabID, model.ActionNone, 0)
	}
}

// errNonWebScheme marks navigations to browser-internal pages, which are
// ignored entirely rather than failed open.
var errNonWebScheme = errors.New("non-web scheme")

// hostnameFromURL extracts and normalizes the hostname of a committed
// navigation. Only http/https URLs are scoreable; scheme-less input is
// rejected rather than guessed at.
func hostnameFromURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("empty url")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: %q", errNonWebScheme, parsed.Scheme)
	}
	hostname := utils.NormalizeHostname(parsed.Hostname())
	if hostname == "" {
		return "", fmt.Errorf("no hostname in %q", raw)
	}
	return hostname, nil
}
