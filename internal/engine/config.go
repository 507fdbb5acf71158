package engine

// Weights is the hand-tuned scoring table. All weights are integers;
// negative values are mitigations. Loadable from the config file, but the
// defaults are the product values.
type Weights struct {
	// Domain signals
	HostingSubdomain  int `yaml:"hosting_subdomain"`
	SubdomainDepth    int `yaml:"subdomain_depth"`
	SuspiciousKeyword int `yaml:"suspicious_keyword"`
	Typosquat         int `yaml:"typosquat"`
	Homograph         int `yaml:"homograph"`
	TrustedTLDBonus   int `yaml:"trusted_tld_bonus"`

	// Content signals
	FakeBadge     int `yaml:"fake_badge"`
	SensitiveCC   int `yaml:"sensitive_cc"`
	SensitiveID   int `yaml:"sensitive_id"`
	SensitivePass int `yaml:"sensitive_pass"`

	// Behavior signals
	UrgencyText     int `yaml:"urgency_text"`
	UrgencyCap      int `yaml:"urgency_cap"`
	Countdown       int `yaml:"countdown"`
	CountdownFloor  int `yaml:"countdown_floor"`
	RightClickBlock int `yaml:"right_click_block"`
	FocusTrap       int `yaml:"focus_trap"`
	PopupSpam       int `yaml:"popup_spam"`
	ScrollLock      int `yaml:"scroll_lock"`
	PasteBlock      int `yaml:"paste_block"`

	// Redirect signals
	RapidRedirect    int `yaml:"rapid_redirect"`
	RedirectChain    int `yaml:"redirect_chain"`
	RedirectChainMin int `yaml:"redirect_chain_min"`

	// Contact signals
	FakeContact     int `yaml:"fake_contact"`
	CountryMismatch int `yaml:"country_mismatch"`
}

// DefaultWeights returns the production scoring table.
func DefaultWeights() Weights {
	return Weights{
		HostingSubdomain:  10,
		SubdomainDepth:    8,
		SuspiciousKeyword: 5,
		Typosquat:         20,
		Homograph:         15,
		TrustedTLDBonus:   -5,

		FakeBadge:     25,
		SensitiveCC:   8,
		SensitiveID:   15,
		SensitivePass: 5,

		UrgencyText:     12,
		UrgencyCap:      25,
		Countdown:       10,
		CountdownFloor:  15,
		RightClickBlock: 8,
		FocusTrap:       15,
		PopupSpam:       10,
		ScrollLock:      8,
		PasteBlock:      5,

		RapidRedirect:    15,
		RedirectChain:    12,
		RedirectChainMin: 2,

		FakeContact:     10,
		CountryMismatch: 8,
	}
}
