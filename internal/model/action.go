package model

// RiskAction is the mitigation instruction sent to the page after a scoring
// decision.
type RiskAction string

const (
	// ActionNone releases the page with no mitigation.
	ActionNone RiskAction = "NONE"
	// ActionWarn shows a warning banner; forms remain usable.
	ActionWarn RiskAction = "WARN"
	// ActionFullBlock overlays the page and locks forms.
	ActionFullBlock RiskAction = "FULL_BLOCK"
)

// ActionForLevel maps a score level to its mitigation.
func ActionForLevel(level Level) RiskAction {
	switch level {
	case LevelSafe:
		return ActionNone
	case LevelSuspicious:
		return ActionWarn
	default:
		return ActionFullBlock
	}
}

// ReportReason is the closed vocabulary accepted by the community report
// endpoint.
type ReportReason string

const (
	ReasonPhishing ReportReason = "phishing"
	ReasonScam     ReportReason = "scam"
	ReasonMalware  ReportReason = "malware"
	ReasonFakeShop ReportReason = "fake_shop"
	ReasonOther    ReportReason = "other"
)

// Valid reports whether the reason is in the accepted vocabulary.
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonPhishing, ReasonScam, ReasonMalware, ReasonFakeShop, ReasonOther:
		return true
	}
	return false
}
