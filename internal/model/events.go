package model

// EventType tags coordinator inputs. Modeling the browser callbacks as one
// tagged union keeps the per-tab state machine explicit and testable without
// a real browser host.
type EventType string

const (
	EventNavigationCommitted EventType = "navigation_committed"
	EventSignalsReceived     EventType = "signals_received"
	EventUserOverride        EventType = "user_override"
	EventReportRequested     EventType = "report_requested"
	EventWhitelistAdded      EventType = "whitelist_added"
	EventRedirectDetected    EventType = "redirect_detected"
	EventTabClosed           EventType = "tab_closed"
)

// Event is one coordinator input. Only the fields relevant to the tagged
// type are populated.
type Event struct {
	Type  EventType `json:"type"`
	TabID int64     `json:"tab_id"`

	// NavigationCommitted
	URL string `json:"url,omitempty"`

	// SignalsReceived
	Signals *PageSignals `json:"signals,omitempty"`

	// WhitelistAdded / ReportRequested
	Domain string       `json:"domain,omitempty"`
	Reason ReportReason `json:"reason,omitempty"`

	// RedirectDetected
	RedirectCount int  `json:"redirect_count,omitempty"`
	RapidRedirect bool `json:"rapid_redirect,omitempty"`
}
