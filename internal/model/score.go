package model

import "time"

// Level buckets a risk score for display and action mapping.
type Level string

const (
	LevelSafe       Level = "safe"
	LevelSuspicious Level = "suspicious"
	LevelDanger     Level = "danger"
)

// Score thresholds. A score at the boundary belongs to the lower tier:
// safe is <= ScoreSafeMax, suspicious is <= ScoreSuspiciousMax, danger above.
const (
	ScoreSafeMax       = 39
	ScoreSuspiciousMax = 69
)

// LevelForScore derives the level from a (clamped) score.
func LevelForScore(score int) Level {
	switch {
	case score <= ScoreSafeMax:
		return LevelSafe
	case score <= ScoreSuspiciousMax:
		return LevelSuspicious
	default:
		return LevelDanger
	}
}

// Signal identifiers. These form a closed vocabulary shared by the engine,
// the recomputation replace-set and the UI.
const (
	SignalTrustedDomain     = "trusted_domain"
	SignalWhitelisted       = "whitelisted"
	SignalHostingSubdomain  = "hosting_subdomain"
	SignalSubdomainDepth    = "subdomain_depth"
	SignalSuspiciousKeyword = "suspicious_keyword"
	SignalTyposquat         = "typosquat"
	SignalHomograph         = "homograph"
	SignalBackendReputation = "backend_reputation"
	SignalFrequentVisitor   = "frequent_visitor"
	SignalTLDBonus          = "tld_bonus"

	SignalFakeBadge       = "fake_badge"
	SignalSensitiveCC     = "sensitive_cc"
	SignalSensitiveID     = "sensitive_id"
	SignalSensitivePass   = "sensitive_pass"
	SignalUrgencyText     = "urgency_text"
	SignalCountdown       = "countdown"
	SignalRightClickBlock = "right_click_block"
	SignalFocusTrap       = "focus_trap"
	SignalPopupSpam       = "popup_spam"
	SignalScrollLock      = "scroll_lock"
	SignalPasteBlock      = "paste_block"
	SignalRapidRedirect   = "rapid_redirect"
	SignalRedirectChain   = "redirect_chain"
	SignalFakeContact     = "fake_contact"
	SignalCountryMismatch = "country_mismatch"
)

// contentSignals is the mutable set: factors carrying these identifiers are
// removed and re-derived on every recomputation. Domain-level factors are
// computed once per navigation and never touched by recomputation.
var contentSignals = map[string]struct{}{
	SignalFakeBadge:       {},
	SignalSensitiveCC:     {},
	SignalSensitiveID:     {},
	SignalSensitivePass:   {},
	SignalUrgencyText:     {},
	SignalCountdown:       {},
	SignalRightClickBlock: {},
	SignalFocusTrap:       {},
	SignalPopupSpam:       {},
	SignalScrollLock:      {},
	SignalPasteBlock:      {},
	SignalRapidRedirect:   {},
	SignalRedirectChain:   {},
	SignalFakeContact:     {},
	SignalCountryMismatch: {},
}

// IsContentSignal reports whether the identifier belongs to the
// content/behavior replace-set.
func IsContentSignal(signal string) bool {
	_, ok := contentSignals[signal]
	return ok
}

// ScoreFactor is one weighted piece of evidence in a ScoreResult.
// Weight may be negative (mitigations).
type ScoreFactor struct {
	Signal      string `json:"signal"`
	Weight      int    `json:"weight"`
	Description string `json:"description"`
}

// ScoreResult is the canonical scoring output for one domain/page.
// Score is always within [0,100]; Level is derived from the clamped score,
// never from the raw factor sum.
type ScoreResult struct {
	Score     int           `json:"score"`
	Level     Level         `json:"level"`
	Factors   []ScoreFactor `json:"factors"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewScoreResult clamps raw into [0,100] and derives the level.
// Factors are stored as given; individual weights are never clamped.
func NewScoreResult(raw int, factors []ScoreFactor) *ScoreResult {
	score := raw
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	if factors == nil {
		factors = []ScoreFactor{}
	}
	return &ScoreResult{
		Score:     score,
		Level:     LevelForScore(score),
		Factors:   factors,
		Timestamp: time.Now().UTC(),
	}
}
