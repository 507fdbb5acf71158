package engine

import (
	"strings"
	"unicode"

	"github.com/sentineltk/sentinel/internal/domaintrust"
	"github.com/sentineltk/sentinel/internal/utils"
)

// minReferenceBase is the shortest stripped reference name the edit-distance
// check is allowed to use. Anything shorter ("x", "t", "vk") sits within
// distance 2 of most short legitimate domains and would flag them wholesale.
const minReferenceBase = 4

// checkTyposquat returns the reference domain the candidate imitates, or ""
// when clean. Both sides are compared with their final label stripped, so
// "garanti.com.tr" is matched as "garanti.com". Distance 0 is an exact
// legitimate match and excluded; the first reference within distance 2 wins,
// table order — no global minimum search.
func checkTyposquat(domain string) string {
	base := utils.StripLastLabel(domain)
	for _, top := range domaintrust.TopDomains {
		topBase := utils.StripLastLabel(top)
		if len(topBase) < minReferenceBase {
			continue
		}
		if base == topBase {
			continue
		}
		if dist := utils.Levenshtein(base, topBase); dist > 0 && dist <= 2 {
			return top
		}
	}
	return ""
}

var digitSubstitutions = strings.NewReplacer("0", "o", "1", "l", "3", "e", "5", "s")

// checkHomograph detects IDN/lookalike-character attacks. The punycode and
// non-ASCII checks run first and report an unidentified target (empty
// string); only then does the digit-substitution heuristic try to name the
// imitated reference domain.
func checkHomograph(hostname string) (target string, detected bool) {
	if strings.Contains(hostname, "xn--") {
		return "", true
	}
	for _, r := range hostname {
		if r > unicode.MaxASCII {
			return "", true
		}
	}

	base := utils.FirstLabel(hostname)
	if !strings.ContainsAny(base, "0123456789") {
		return "", false
	}
	normalized := digitSubstitutions.Replace(base)
	for _, top := range domaintrust.TopDomains {
		topBase := utils.FirstLabel(top)
		if normalized == topBase && base != topBase {
			return top, true
		}
	}
	return "", false
}
