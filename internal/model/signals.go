package model

// Sensitive input categories reported by page observers. Only field metadata
// (name/type) is ever inspected, never typed content.
const (
	InputCreditCard = "credit_card"
	InputCVV        = "cvv"
	InputIBAN       = "iban"
	InputIdentity   = "identity"
	InputPassword   = "password"
)

// ContactInfo summarizes contact details scraped by page observers.
type ContactInfo struct {
	Phones          []string `json:"phones,omitempty"`
	Emails          []string `json:"emails,omitempty"`
	Suspicious      bool     `json:"suspicious"`
	CountryMismatch bool     `json:"countryMismatch"`
}

// PageSignals is the batch of page-behavior observations pushed by the
// detection collaborators. Batches are partial: a zero value means "not
// observed", so merging is monotone and absent fields are safe.
type PageSignals struct {
	HasSensitiveInput   bool     `json:"hasSensitiveInput"`
	SensitiveInputTypes []string `json:"sensitiveInputTypes,omitempty"`

	HasFakeBadge   bool `json:"hasFakeBadge"`
	FakeBadgeCount int  `json:"fakeBadgeCount"`

	HasUrgencyText bool    `json:"hasUrgencyText"`
	UrgencyScore   float64 `json:"urgencyScore"`

	HasCountdownTimer  bool `json:"hasCountdownTimer"`
	HasPopupSpam       bool `json:"hasPopupSpam"`
	HasScrollLock      bool `json:"hasScrollLock"`
	HasFocusTrap       bool `json:"hasFocusTrap"`
	HasRightClickBlock bool `json:"hasRightClickBlock"`
	HasPasteBlock      bool `json:"hasPasteBlock"`

	RedirectCount int  `json:"redirectCount"`
	RapidRedirect bool `json:"rapidRedirect"`

	ContactInfo *ContactInfo `json:"contactInfo,omitempty"`
}

// HasInputType reports whether the given sensitive category was observed.
func (ps *PageSignals) HasInputType(t string) bool {
	for _, have := range ps.SensitiveInputTypes {
		if have == t {
			return true
		}
	}
	return false
}

// Merge folds a new partial batch into the accumulated signals. Booleans OR,
// counts and scores take the maximum, input types union. The merge is
// monotone: a later sparse batch can never retract an earlier observation.
func (ps *PageSignals) Merge(in *PageSignals) {
	if in == nil {
		return
	}

	ps.HasSensitiveInput = ps.HasSensitiveInput || in.HasSensitiveInput
	for _, t := range in.SensitiveInputTypes {
		if !ps.HasInputType(t) {
			ps.SensitiveInputTypes = append(ps.SensitiveInputTypes, t)
		}
	}

	ps.HasFakeBadge = ps.HasFakeBadge || in.HasFakeBadge
	if in.FakeBadgeCount > ps.FakeBadgeCount {
		ps.FakeBadgeCount = in.FakeBadgeCount
	}

	ps.HasUrgencyText = ps.HasUrgencyText || in.HasUrgencyText
	if in.UrgencyScore > ps.UrgencyScore {
		ps.UrgencyScore = in.UrgencyScore
	}

	ps.HasCountdownTimer = ps.HasCountdownTimer || in.HasCountdownTimer
	ps.HasPopupSpam = ps.HasPopupSpam || in.HasPopupSpam
	ps.HasScrollLock = ps.HasScrollLock || in.HasScrollLock
	ps.HasFocusTrap = ps.HasFocusTrap || in.HasFocusTrap
	ps.HasRightClickBlock = ps.HasRightClickBlock || in.HasRightClickBlock
	ps.HasPasteBlock = ps.HasPasteBlock || in.HasPasteBlock

	if in.RedirectCount > ps.RedirectCount {
		ps.RedirectCount = in.RedirectCount
	}
	ps.RapidRedirect = ps.RapidRedirect || in.RapidRedirect

	if in.ContactInfo != nil {
		if ps.ContactInfo == nil {
			ps.ContactInfo = &ContactInfo{}
		}
		ps.ContactInfo.Phones = append(ps.ContactInfo.Phones, in.ContactInfo.Phones...)
		ps.ContactInfo.Emails = append(ps.ContactInfo.Emails, in.ContactInfo.Emails...)
		ps.ContactInfo.Suspicious = ps.ContactInfo.Suspicious || in.ContactInfo.Suspicious
		ps.ContactInfo.CountryMismatch = ps.ContactInfo.CountryMismatch || in.ContactInfo.CountryMismatch
	}
}
