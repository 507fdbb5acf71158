// Package engine computes phishing/scam risk scores. It has two entry
// points: AnalyzeDomain, run once per navigation on the hostname alone, and
// RecalculateWithSignals, run every time the page observers push a new batch
// of behavior signals. Neither holds mutable state beyond what is passed in.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sentineltk/sentinel/internal/domaintrust"
	"github.com/sentineltk/sentinel/internal/interfaces"
	"github.com/sentineltk/sentinel/internal/logging"
	"github.com/sentineltk/sentinel/internal/model"
	"github.com/sentineltk/sentinel/internal/storage"
	"github.com/sentineltk/sentinel/internal/utils"
)

// ErrEmptyHostname is returned when a public scoring operation is called
// without a hostname. Validation happens at this boundary; nothing else in
// the engine rejects input.
var ErrEmptyHostname = errors.New("engine: empty hostname")

// RiskEngine owns the weighting and tie-break policy.
type RiskEngine struct {
	weights    Weights
	store      storage.Store
	reputation interfaces.ReputationLookup
	logger     logging.Logger
}

// NewRiskEngine constructs the engine. reputation may be nil, in which case
// the backend lookup step contributes nothing.
func NewRiskEngine(weights Weights, store storage.Store, reputation interfaces.ReputationLookup, logger logging.Logger) (*RiskEngine, error) {
	if store == nil {
		return nil, errors.New("engine: nil store")
	}
	if logger == nil {
		return nil, errors.New("engine: nil logger")
	}
	return &RiskEngine{
		weights:    weights,
		store:      store,
		reputation: reputation,
		logger:     logger.With(logging.Field{Key: "component", Value: "risk-engine"}),
	}, nil
}

// AnalyzeDomain scores a hostname on static and reputation signals alone,
// before any page content is available. Storage and backend failures degrade
// to zero contribution; for a well-formed hostname this never fails.
func (e *RiskEngine) AnalyzeDomain(ctx context.Context, hostname string) (*model.ScoreResult, error) {
	hostname = utils.NormalizeHostname(hostname)
	if hostname == "" {
		return nil, ErrEmptyHostname
	}
	domain := utils.BaseDomain(hostname)

	var factors []model.ScoreFactor
	rawScore := 0

	// Hosting platforms are checked before the trusted list: sites.google.com
	// must not inherit google.com's trust.
	hostingMatch, isUntrustedHosting := domaintrust.MatchHosting(hostname)

	if !isUntrustedHosting && domaintrust.IsTrusted(domain) {
		return model.NewScoreResult(0, []model.ScoreFactor{{
			Signal:      model.SignalTrustedDomain,
			Weight:      0,
			Description: "known trusted domain",
		}}), nil
	}

	if isUntrustedHosting {
		rawScore += e.weights.HostingSubdomain
		factors = append(factors, model.ScoreFactor{
			Signal:      model.SignalHostingSubdomain,
			Weight:      e.weights.HostingSubdomain,
			Description: fmt.Sprintf("free hosting platform: %s", hostingMatch),
		})
	}

	if whitelisted, err := e.store.IsWhitelisted(ctx, domain); err != nil {
		e.logger.Warn("whitelist lookup failed",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "error", Value: err.Error()})
	} else if whitelisted {
		return model.NewScoreResult(0, []model.ScoreFactor{{
			Signal:      model.SignalWhitelisted,
			Weight:      0,
			Description: "on user whitelist",
		}}), nil
	}

	if parts := strings.Split(hostname, "."); len(parts) > 3 {
		rawScore += e.weights.SubdomainDepth
		factors = append(factors, model.ScoreFactor{
			Signal:      model.SignalSubdomainDepth,
			Weight:      e.weights.SubdomainDepth,
			Description: fmt.Sprintf("%d-level subdomain", len(parts)),
		})
	}

	if kw := domaintrust.FirstSuspiciousKeyword(domain); kw != "" {
		rawScore += e.weights.SuspiciousKeyword
		factors = append(factors, model.ScoreFactor{
			Signal:      model.SignalSuspiciousKeyword,
			Weight:      e.weights.SuspiciousKeyword,
			Description: fmt.Sprintf("suspicious keyword in domain: %q", kw),
		})
	}

	if target := checkTyposquat(domain); target != "" {
		rawScore += e.weights.Typosquat
		factors = append(factors, model.ScoreFactor{
			Signal:      model.SignalTyposquat,
			Weight:      e.weights.Typosquat,
			Description: fmt.Sprintf("very similar to %q (typosquatting)", target),
		})
	}

	if target, detected := checkHomograph(hostname); detected {
		desc := "unicode/homograph lookalike characters"
		if target != "" {
			desc = fmt.Sprintf("homograph imitation of %q", target)
		}
		rawScore += e.weights.Homograph
		factors = append(factors, model.ScoreFactor{
			Signal:      model.SignalHomograph,
			Weight:      e.weights.Homograph,
			Description: desc,
		})
	}

	if e.reputation != nil {
		if score, ok := e.reputation.Score(ctx, domain); ok && score > 0 {
			rawScore += score
			factors = append(factors, model.ScoreFactor{
				Signal:      model.SignalBackendReputation,
				Weight:      score,
				Description: "backend reputation score",
			})
		}
	}

	if reduction, err := e.store.GetFrequentVisitReduction(ctx, domain); err != nil {
		e.logger.Warn("visit lookup failed",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "error", Value: err.Error()})
	} else if reduction < 0 {
		rawScore += reduction
		factors = append(factors, model.ScoreFactor{
			Signal:      model.SignalFrequentVisitor,
			Weight:      reduction,
			Description: "frequently visited site",
		})
	}

	if domaintrust.HasTrustedTLD(domain) {
		rawScore += e.weights.TrustedTLDBonus
		factors = append(factors, model.ScoreFactor{
			Signal:      model.SignalTLDBonus,
			Weight:      e.weights.TrustedTLDBonus,
			Description: "verified-registration national TLD",
		})
	}

	return model.NewScoreResult(rawScore, factors), nil
}

// RecalculateWithSignals folds a page-signal batch into an existing score.
// All previously-applied content/behavior factors are removed before the
// current batch is evaluated, so repeated calls never double-count an
// ongoing condition. Trusted and whitelisted domains are immune to content
// heuristics entirely: legitimate sites use urgency banners and countdowns
// too.
func (e *RiskEngine) RecalculateWithSignals(current *model.ScoreResult, signals *model.PageSignals) *model.ScoreResult {
	if current == nil {
		return nil
	}
	if signals == nil {
		signals = &model.PageSignals{}
	}

	factors := make([]model.ScoreFactor, 0, len(current.Factors))
	for _, f := range current.Factors {
		if !model.IsContentSignal(f.Signal) {
			factors = append(factors, f)
		}
	}

	// Base score rebuilt from the surviving domain-level factors only;
	// carrying the previous composite forward would inflate on every run.
	rawScore := 0
	for _, f := range factors {
		rawScore += f.Weight
	}

	for _, f := range factors {
		if f.Signal == model.SignalTrustedDomain || f.Signal == model.SignalWhitelisted {
			return model.NewScoreResult(rawScore, factors)
		}
	}

	add := func(signal string, weight int, description string) {
		rawScore += weight
		factors = append(factors, model.ScoreFactor{
			Signal:      signal,
			Weight:      weight,
			Description: description,
		})
	}

	// ── Content signals ──

	if signals.HasFakeBadge {
		count := signals.FakeBadgeCount
		if count < 1 {
			count = 1
		}
		add(model.SignalFakeBadge, e.weights.FakeBadge,
			fmt.Sprintf("fake trust badge detected (%d found)", count))
	}

	if signals.HasSensitiveInput {
		if signals.HasInputType(model.InputCreditCard) || signals.HasInputType(model.InputCVV) || signals.HasInputType(model.InputIBAN) {
			add(model.SignalSensitiveCC, e.weights.SensitiveCC, "credit card / IBAN input field")
		}
		if signals.HasInputType(model.InputIdentity) {
			add(model.SignalSensitiveID, e.weights.SensitiveID, "identity number input field")
		}
		if signals.HasInputType(model.InputPassword) && e.weights.SensitivePass > 0 {
			add(model.SignalSensitivePass, e.weights.SensitivePass, "password input field")
		}
	}

	// ── Behavior signals ──

	if signals.HasUrgencyText {
		intensity := signals.UrgencyScore
		if intensity <= 0 {
			intensity = 1
		}
		weight := int(math.Min(float64(e.weights.UrgencyText)*intensity, float64(e.weights.UrgencyCap)))
		add(model.SignalUrgencyText, weight, "urgency / threat language")
	}

	// A countdown timer alone is not evidence; it only amplifies suspicion
	// that other signals already raised.
	if signals.HasCountdownTimer && rawScore >= e.weights.CountdownFloor {
		add(model.SignalCountdown, e.weights.Countdown, "suspicious countdown timer")
	}

	if signals.HasRightClickBlock {
		add(model.SignalRightClickBlock, e.weights.RightClickBlock, "right-click blocked")
	}
	if signals.HasFocusTrap {
		add(model.SignalFocusTrap, e.weights.FocusTrap, "page focus trap")
	}
	if signals.HasPopupSpam {
		add(model.SignalPopupSpam, e.weights.PopupSpam, "popup spam")
	}
	if signals.HasScrollLock {
		add(model.SignalScrollLock, e.weights.ScrollLock, "scroll locked")
	}
	if signals.HasPasteBlock {
		add(model.SignalPasteBlock, e.weights.PasteBlock, "paste blocked")
	}

	// ── Redirect signals ──

	if signals.RapidRedirect {
		add(model.SignalRapidRedirect, e.weights.RapidRedirect, "rapid redirect")
	}
	if signals.RedirectCount > e.weights.RedirectChainMin {
		add(model.SignalRedirectChain, e.weights.RedirectChain,
			fmt.Sprintf("%d-step redirect chain", signals.RedirectCount))
	}

	// ── Contact signals ──

	if signals.ContactInfo != nil {
		if signals.ContactInfo.Suspicious {
			add(model.SignalFakeContact, e.weights.FakeContact, "free-mail contact address")
		}
		if signals.ContactInfo.CountryMismatch {
			add(model.SignalCountryMismatch, e.weights.CountryMismatch, "country mismatch")
		}
	}

	return model.NewScoreResult(rawScore, factors)
}
