// Package domaintrust holds the static domain reputation tables consulted by
// the risk engine: known-good domains, free-hosting suffixes, suspicious
// keywords and the reference domains used for lookalike detection. Pure data,
// no state.
package domaintrust

import "strings"

// TopDomains are the reference domains for typosquat and homograph checks.
// Order matters: lookalike searches stop at the first match.
var TopDomains = []string{
	// Global tech giants
	"google.com", "youtube.com", "facebook.com", "amazon.com", "yahoo.com",
	"wikipedia.org", "instagram.com", "twitter.com", "x.com", "linkedin.com",
	"reddit.com", "netflix.com", "twitch.tv", "microsoft.com", "apple.com",
	"whatsapp.com", "tiktok.com", "bing.com", "office.com", "live.com",
	"github.com", "stackoverflow.com", "pinterest.com", "spotify.com", "zoom.us",
	"adobe.com", "salesforce.com", "dropbox.com", "paypal.com", "wordpress.com",
	"medium.com", "quora.com", "imdb.com", "cloudflare.com", "gitlab.com",
	"canva.com", "figma.com", "notion.so", "trello.com", "slack.com",
	"telegram.org", "ebay.com", "booking.com",

	// Turkish government & banks
	"turkiye.gov.tr", "e-devlet.gov.tr", "ptt.gov.tr",
	"ziraatbank.com.tr", "halkbank.com.tr", "vakifbank.com.tr",
	"isbank.com.tr", "garantibbva.com.tr", "akbank.com", "yapikredi.com.tr",
	"qnbfinansbank.com", "denizbank.com", "teb.com.tr", "kuveytturk.com.tr",
	"enpara.com", "papara.com",

	// Turkish e-commerce & services
	"trendyol.com", "hepsiburada.com", "n11.com", "sahibinden.com",
	"yemeksepeti.com", "getir.com", "biletix.com", "obilet.com",
	"turkcell.com.tr", "vodafone.com.tr", "turktelekom.com.tr",

	// Crypto exchanges
	"binance.com", "btcturk.com", "paribu.com",
}

/// TrustedDomains short-circuit scoring: an exact match or subdomain of an
// entry scores 0 unless the hostname also matches an untrusted hosting
// pattern. Same corpus as TopDomains plus dev hosts.
var TrustedDomains = append(append([]string{}, TopDomains...),
	"localhost", "127.0.0.1",
)

// UntrustedHosting are free-hosting suffixes. Pages there are not
// automatically bad, but the platform itself is a favored phishing venue,
// so a match adds a small penalty and disables the trusted short-circuit.
var UntrustedHosting = []string{
	"sites.google.com",
	"docs.google.com/forms",
	"pages.github.io",
	"github.io",
	"netlify.app",
	"vercel.app",
	"herokuapp.com",
	"web.app",
	"firebaseapp.com",
	"blogspot.com",
	"wordpress.com",
	"wixsite.com",
	"weebly.com",
}

// SuspiciousKeywords are credential-bait words checked inside the domain
// itself (not the path), English and Turkish. First match wins, no stacking.
var SuspiciousKeywords = []string{
	"login", "verify", "secure", "update", "confirm", "account", "banking",
	"doğrula", "giriş", "guvenlik", "dogrulama",
}

// TrustedTLDSuffixes are national registry suffixes with verified
// registration, worth a small trust bonus.
var TrustedTLDSuffixes = []string{
	".com.tr", ".gov.tr", ".edu.tr", ".org.tr",
}

// IsTrusted reports whether domain exactly matches or is a subdomain of a
// trusted entry.
func IsTrusted(domain string) bool {
	for _, td := range TrustedDomains {
		if domain == td || strings.HasSuffix(domain, "."+td) {
			return true
		}
	}
	return false
}

// MatchHosting returns the first untrusted hosting entry the hostname
// matches (exact, suffix or substring) and whether one matched.
func MatchHosting(hostname string) (string, bool) {
	for _, us := range UntrustedHosting {
		if hostname == us || strings.HasSuffix(hostname, "."+us) || strings.Contains(hostname, us) {
			return us, true
		}
	}
	return "", false
}

// FirstSuspiciousKeyword returns the first keyword contained in the domain,
// or "" when none match.
func FirstSuspiciousKeyword(domain string) string {
	for _, kw := range SuspiciousKeywords {
		if strings.Contains(domain, kw) {
			return kw
		}
	}
	return ""
}

// HasTrustedTLD reports whether the domain ends in a trusted national
// registry suffix.
func HasTrustedTLD(domain string) bool {
	for _, suffix := range TrustedTLDSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return true
		}
	}
	return false
}
