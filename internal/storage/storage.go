// Package storage persists the engine's reputation state: the user
// whitelist, the bounded TTL score cache, per-domain visit counters and the
// capped scan history. Persistence is best-effort by contract: callers treat
// a failed read as "no data" and a failed write as dropped — scoring never
// blocks on storage failures.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sentineltk/sentinel/internal/model"
)

var ErrEmptyDomain = errors.New("storage: empty domain")

// ScanRecord is one entry in the scan history, newest first.
type ScanRecord struct {
	Domain    string      `json:"domain"`
	Score     int         `json:"score"`
	Level     model.Level `json:"level"`
	Timestamp time.Time   `json:"timestamp"`
}

// Store is the persistent reputation state contract.
type Store interface {
	// IsWhitelisted reports user-approved membership for a base domain.
	IsWhitelisted(ctx context.Context, domain string) (bool, error)
	// AddToWhitelist is idempotent; duplicates are not recorded.
	AddToWhitelist(ctx context.Context, domain string) error
	RemoveFromWhitelist(ctx context.Context, domain string) error
	ListWhitelist(ctx context.Context) ([]string, error)

	// GetCachedScore returns nil when there is no live entry. An entry past
	// its TTL is evicted on read.
	GetCachedScore(ctx context.Context, domain string) (*model.ScoreResult, error)
	// SetCachedScore upserts. When the cache is at capacity and the domain
	// is new, the single entry with the oldest storage timestamp is evicted
	// first.
	SetCachedScore(ctx context.Context, domain string, result *model.ScoreResult) error

	// RecordVisit increments and returns the new visit count.
	RecordVisit(ctx context.Context, domain string) (int, error)
	GetVisitCount(ctx context.Context, domain string) (int, error)
	// GetFrequentVisitReduction returns a fixed negative weight once the
	// visit count reaches the configured threshold, else 0.
	GetFrequentVisitReduction(ctx context.Context, domain string) (int, error)

	// RecordScanHistory prepends; entries beyond the cap are silently
	// dropped from the tail.
	RecordScanHistory(ctx context.Context, domain string, score int, level model.Level) error
	// GetScanHistory returns entries newer than now minus days, newest first.
	GetScanHistory(ctx context.Context, days int) ([]ScanRecord, error)

	Close() error
}

// Config bounds the store. Zero values fall back to defaults.
type Config struct {
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries   int           `yaml:"cache_max_entries"`
	HistoryMaxEntries int           `yaml:"history_max_entries"`

	FrequentVisitThreshold int `yaml:"frequent_visit_threshold"`
	FrequentVisitReduction int `yaml:"frequent_visit_reduction"`
}

// DefaultConfig returns the production bounds.
func DefaultConfig() Config {
	return Config{
		CacheTTL:               24 * time.Hour,
		CacheMaxEntries:        200,
		HistoryMaxEntries:      500,
		FrequentVisitThreshold: 5,
		FrequentVisitReduction: -15,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = def.CacheMaxEntries
	}
	if c.HistoryMaxEntries <= 0 {
		c.HistoryMaxEntries = def.HistoryMaxEntries
	}
	if c.FrequentVisitThreshold <= 0 {
		c.FrequentVisitThreshold = def.FrequentVisitThreshold
	}
	if c.FrequentVisitReduction == 0 {
		c.FrequentVisitReduction = def.FrequentVisitReduction
	}
}
