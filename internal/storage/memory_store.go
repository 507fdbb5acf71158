package storage

import (
	"context"
	"sync"
	"time"

	"github.com/sentineltk/sentinel/internal/model"
)

// MemoryStore implements Store entirely in memory. It mirrors the SQLite
// semantics (TTL eviction, capacity eviction, history cap) and is used in
// tests and diskless runs. A mutex is enough: values are idempotent
// counters and overwrites.
type MemoryStore struct {
	mu  sync.Mutex
	cfg Config

	whitelist map[string]struct{}
	cache     map[string]cacheEntry
	visits    map[string]visitEntry
	history   []ScanRecord
}

type cacheEntry struct {
	result   *model.ScoreResult
	storedAt time.Time
}

type visitEntry struct {
	count     int
	lastVisit time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(cfg Config) *MemoryStore {
	cfg.applyDefaults()
	return &MemoryStore{
		cfg:       cfg,
		whitelist: make(map[string]struct{}),
		cache:     make(map[string]cacheEntry),
		visits:    make(map[string]visitEntry),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) IsWhitelisted(_ context.Context, domain string) (bool, error) {
	if domain == "" {
		return false, ErrEmptyDomain
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.whitelist[domain]
	return ok, nil
}

func (m *MemoryStore) AddToWhitelist(_ context.Context, domain string) error {
	if domain == "" {
		return ErrEmptyDomain
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.whitelist[domain] = struct{}{}
	return nil
}

func (m *MemoryStore) RemoveFromWhitelist(_ context.Context, domain string) error {
	if domain == "" {
		return ErrEmptyDomain
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.whitelist, domain)
	return nil
}

func (m *MemoryStore) ListWhitelist(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	domains := make([]string, 0, len(m.whitelist))
	for d := range m.whitelist {
		domains = append(domains, d)
	}
	return domains, nil
}

func (m *MemoryStore) GetCachedScore(_ context.Context, domain string) (*model.ScoreResult, error) {
	if domain == "" {
		return nil, ErrEmptyDomain
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.cache[domain]
	if !ok {
		return nil, nil
	}
	if time.Since(entry.storedAt) > m.cfg.CacheTTL {
		delete(m.cache, domain)
		return nil, nil
	}
	return entry.result, nil
}

func (m *MemoryStore) SetCachedScore(_ context.Context, domain string, result *model.ScoreResult) error {
	if domain == "" {
		return ErrEmptyDomain
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.cache[domain]; !exists && len(m.cache) >= m.cfg.CacheMaxEntries {
		oldest := ""
		for d, e := range m.cache {
			if oldest == "" || e.storedAt.Before(m.cache[oldest].storedAt) {
				oldest = d
			}
		}
		delete(m.cache, oldest)
	}

	m.cache[domain] = cacheEntry{result: result, storedAt: time.Now()}
	return nil
}

func (m *MemoryStore) RecordVisit(_ context.Context, domain string) (int, error) {
	if domain == "" {
		return 0, ErrEmptyDomain
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.visits[domain]
	entry.count++
	entry.lastVisit = time.Now()
	m.visits[domain] = entry
	return entry.count, nil
}

func (m *MemoryStore) GetVisitCount(_ context.Context, domain string) (int, error) {
	if domain == "" {
		return 0, ErrEmptyDomain
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visits[domain].count, nil
}

func (m *MemoryStore) GetFrequentVisitReduction(ctx context.Context, domain string) (int, error) {
	count, err := m.GetVisitCount(ctx, domain)
	if err != nil {
		return 0, err
	}
	if count >= m.cfg.FrequentVisitThreshold {
		return m.cfg.FrequentVisitReduction, nil
	}
	return 0, nil
}

func (m *MemoryStore) RecordScanHistory(_ context.Context, domain string, score int, level model.Level) error {
	if domain == "" {
		return ErrEmptyDomain
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]ScanRecord{{
		Domain:    domain,
		Score:     score,
		Level:     level,
		Timestamp: time.Now().UTC(),
	}}, m.history...)
	if len(m.history) > m.cfg.HistoryMaxEntries {
		m.history = m.history[:m.cfg.HistoryMaxEntries]
	}
	return nil
}

func (m *MemoryStore) GetScanHistory(_ context.Context, days int) ([]ScanRecord, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()
	var records []ScanRecord
	for _, rec := range m.history {
		if rec.Timestamp.After(cutoff) {
			records = append(records, rec)
		}
	}
	return records, nil
}
