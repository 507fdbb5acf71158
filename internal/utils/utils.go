package utils

import (
	"strings"

	"golang.org/x/net/idna"
)

// Levenshtein computes the edit distance between a and b with unit-cost
// insert/delete/substitute. Used for typosquat detection.
func Levenshtein(a, b string) int {
	m, n := len(a), len(b)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		dp[i][0] = i
	}
	for j := 0; j <= n; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1]
				continue
			}
			dp[i][j] = 1 + min3(dp[i-1][j], dp[i][j-1], dp[i-1][j-1])
		}
	}
	return dp[m][n]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Clamp bounds val into [lo, hi].
func Clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// BaseDomain strips a leading "www." label from a hostname.
func BaseDomain(hostname string) string {
	return strings.TrimPrefix(hostname, "www.")
}

// NormalizeHostname lowercases a hostname, drops a trailing dot and maps
// internationalized labels to their ASCII (punycode) form. The punycode form
// is what the homograph check inspects, so mapping must happen before scoring.
func NormalizeHostname(hostname string) string {
	h := strings.ToLower(strings.TrimSpace(hostname))
	h = strings.TrimSuffix(h, ".")
	if puny, err := idna.Lookup.ToASCII(h); err == nil {
		h = puny
	}
	return h
}

// FirstLabel returns the hostname's leftmost label.
func FirstLabel(hostname string) string {
	if i := strings.IndexByte(hostname, '.'); i >= 0 {
		return hostname[:i]
	}
	return hostname
}

// StripLastLabel drops the final dot-separated label, e.g. "google.com"
// becomes "google" and "garanti.com.tr" becomes "garanti.com". Mirrors how
// the reference tables are compared for typosquatting.
func StripLastLabel(domain string) string {
	if i := strings.LastIndexByte(domain, '.'); i >= 0 {
		return domain[:i]
	}
	return domain
}
