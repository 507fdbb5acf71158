package server

import "github.com/sentineltk/sentinel/internal/model"

// NavigateRequest reports a committed top-level navigation in a tab.
type NavigateRequest struct {
	URL string `json:"url"`
}

// RedirectsRequest reports the tab's redirect counters for the current
// navigation.
type RedirectsRequest struct {
	RedirectCount int  `json:"redirectCount"`
	RapidRedirect bool `json:"rapidRedirect"`
}

// WhitelistRequest adds a domain to the user whitelist. TabID is optional;
// when set, that tab is released immediately.
type WhitelistRequest struct {
	Domain string `json:"domain"`
	TabID  int64  `json:"tab_id,omitempty"`
}

// ReportRequest submits a community report for a domain.
type ReportRequest struct {
	Domain string             `json:"domain"`
	Reason model.ReportReason `json:"reason"`
}

// ActionMessage is one push on the per-tab action stream.
type ActionMessage struct {
	Type     string           `json:"type"` // "risk_action" or "danger_alert"
	TabID    int64            `json:"tab_id"`
	Action   model.RiskAction `json:"action,omitempty"`
	Score    int              `json:"score"`
	Hostname string           `json:"hostname,omitempty"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}
