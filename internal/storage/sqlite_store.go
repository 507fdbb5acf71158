package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sentineltk/sentinel/internal/logging"
	"github.com/sentineltk/sentinel/internal/model"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	cfg    Config
	logger logging.Logger
}

// Ensure SQLiteStore implements Store at compile-time.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies the schema.
func NewSQLiteStore(dbPath string, cfg Config, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		return nil, errors.New("storage: nil logger provided")
	}
	cfg.applyDefaults()

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure storage dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	l := logger.With(logging.Field{Key: "component", Value: "sqlite-store"})
	l.Info("sqlite store opened", logging.Field{Key: "path", Value: dbPath})

	return &SQLiteStore{db: db, cfg: cfg, logger: l}, nil
}

// DB exposes the underlying handle (tests, maintenance).
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ─── Whitelist ─────────────────────────────────────────────────────────

func (s *SQLiteStore) IsWhitelisted(ctx context.Context, domain string) (bool, error) {
	if domain == "" {
		return false, ErrEmptyDomain
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM whitelist WHERE domain = ?`, domain).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query whitelist: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) AddToWhitelist(ctx context.Context, domain string) error {
	if domain == "" {
		return ErrEmptyDomain
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO whitelist (domain, added_at) VALUES (?, ?) ON CONFLICT(domain) DO NOTHING`,
		domain, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert whitelist: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveFromWhitelist(ctx context.Context, domain string) error {
	if domain == "" {
		return ErrEmptyDomain
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM whitelist WHERE domain = ?`, domain); err != nil {
		return fmt.Errorf("delete whitelist: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListWhitelist(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM whitelist ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("list whitelist: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan whitelist row: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// ─── Score cache ───────────────────────────────────────────────────────

func (s *SQLiteStore) GetCachedScore(ctx context.Context, domain string) (*model.ScoreResult, error) {
	if domain == "" {
		return nil, ErrEmptyDomain
	}

	var (
		score       int
		level       string
		factorsJSON string
		computedAt  int64
		storedAt    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT score, level, factors, computed_at, stored_at FROM score_cache WHERE domain = ?`,
		domain).Scan(&score, &level, &factorsJSON, &computedAt, &storedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query score cache: %w", err)
	}

	if time.Since(time.UnixMilli(storedAt)) > s.cfg.CacheTTL {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM score_cache WHERE domain = ?`, domain); err != nil {
			s.logger.Warn("evicting expired cache entry",
				logging.Field{Key: "domain", Value: domain},
				logging.Field{Key: "error", Value: err.Error()})
		}
		return nil, nil
	}

	var factors []model.ScoreFactor
	if err := json.Unmarshal([]byte(factorsJSON), &factors); err != nil {
		// Corrupt entry; treat as a miss rather than failing the caller.
		s.logger.Warn("corrupt cached factors, dropping entry",
			logging.Field{Key: "domain", Value: domain},
			logging.Field{Key: "error", Value: err.Error()})
		_, _ = s.db.ExecContext(ctx, `DELETE FROM score_cache WHERE domain = ?`, domain)
		return nil, nil
	}

	return &model.ScoreResult{
		Score:     score,
		Level:     model.Level(level),
		Factors:   factors,
		Timestamp: time.UnixMilli(computedAt).UTC(),
	}, nil
}

func (s *SQLiteStore) SetCachedScore(ctx context.Context, domain string, result *model.ScoreResult) error {
	if domain == "" {
		return ErrEmptyDomain
	}
	if result == nil {
		return errors.New("storage: nil score result")
	}

	factorsJSON, err := json.Marshal(result.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Evict the single oldest entry when inserting a new domain into a full
	// cache. LRU by storage timestamp, not access order.
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM score_cache WHERE domain = ?`, domain).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query cache membership: %w", err)
	}
	if err == sql.ErrNoRows {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM score_cache`).Scan(&count); err != nil {
			return fmt.Errorf("count cache: %w", err)
		}
		if count >= s.cfg.CacheMaxEntries {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM score_cache WHERE domain = (
					SELECT domain FROM score_cache ORDER BY stored_at ASC, domain ASC LIMIT 1
				)`)
			if err != nil {
				return fmt.Errorf("evict oldest cache entry: %w", err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO score_cache (domain, score, level, factors, computed_at, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET
		   score = excluded.score,
		   level = excluded.level,
		   factors = excluded.factors,
		   computed_at = excluded.computed_at,
		   stored_at = excluded.stored_at`,
		domain, result.Score, string(result.Level), string(factorsJSON),
		result.Timestamp.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert score cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ─── Visit tracking ────────────────────────────────────────────────────

func (s *SQLiteStore) RecordVisit(ctx context.Context, domain string) (int, error) {
	if domain == "" {
		return 0, ErrEmptyDomain
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO visits (domain, count, last_visit) VALUES (?, 1, ?)
		 ON CONFLICT(domain) DO UPDATE SET count = count + 1, last_visit = excluded.last_visit
		 RETURNING count`,
		domain, time.Now().UnixMilli()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("record visit: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) GetVisitCount(ctx context.Context, domain string) (int, error) {
	if domain == "" {
		return 0, ErrEmptyDomain
	}
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count FROM visits WHERE domain = ?`, domain).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query visits: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) GetFrequentVisitReduction(ctx context.Context, domain string) (int, error) {
	count, err := s.GetVisitCount(ctx, domain)
	if err != nil {
		return 0, err
	}
	if count >= s.cfg.FrequentVisitThreshold {
		return s.cfg.FrequentVisitReduction, nil
	}
	return 0, nil
}

// ─── Scan history ──────────────────────────────────────────────────────

func (s *SQLiteStore) RecordScanHistory(ctx context.Context, domain string, score int, level model.Level) error {
	if domain == "" {
		return ErrEmptyDomain
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scan_history (domain, score, level, created_at) VALUES (?, ?, ?, ?)`,
		domain, score, string(level), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM scan_history WHERE id NOT IN (
			SELECT id FROM scan_history ORDER BY id DESC LIMIT ?
		)`, s.cfg.HistoryMaxEntries)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetScanHistory(ctx context.Context, days int) ([]ScanRecord, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()

	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, score, level, created_at FROM scan_history
		 WHERE created_at > ? ORDER BY id DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		var (
			rec       ScanRecord
			level     string
			createdAt int64
		)
		if err := rows.Scan(&rec.Domain, &rec.Score, &level, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.Level = model.Level(level)
		rec.Timestamp = time.UnixMilli(createdAt).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}
