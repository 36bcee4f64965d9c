// Package retention manages the crawl lifecycle ledger: which
// businesses exist, which crawl versions are retained, when data
// expires, and when re-crawls come due.
package retention

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// Config holds the retention policy. Defaults: crawls are kept 18
// months, re-crawls come due after 6 months, and at most 3 versions
// are retained per business.
type Config struct {
	DatabasePath  string `mapstructure:"database_path" yaml:"database_path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
	RecrawlDays   int    `mapstructure:"recrawl_days" yaml:"recrawl_days"`
	MaxVersions   int    `mapstructure:"max_versions" yaml:"max_versions"`
}

// DefaultConfig returns the standard retention policy.
func DefaultConfig() Config {
	return Config{
		DatabasePath:  "./pawtrawl.db",
		RetentionDays: 540,
		RecrawlDays:   180,
		MaxVersions:   3,
	}
}

// Business is a registered business and its crawl schedule. Nil time
// pointers mean the event has not happened yet.
type Business struct {
	BusinessID     string     `json:"business_id"`
	BusinessURL    string     `json:"business_url"`
	BusinessType   string     `json:"business_type"`
	BusinessName   string     `json:"business_name,omitempty"`
	FirstCrawledAt *time.Time `json:"first_crawled_at,omitempty"`
	LastCrawledAt  *time.Time `json:"last_crawled_at,omitempty"`
	NextCrawlDue   *time.Time `json:"next_crawl_due,omitempty"`
	CrawlCount     int        `json:"crawl_count"`
}

// CrawlRecord is one retained crawl version.
type CrawlRecord struct {
	CrawlID      string    `json:"crawl_id"`
	BusinessID   string    `json:"business_id"`
	Version      int       `json:"version"`
	CrawlFile    string    `json:"crawl_file,omitempty"`
	PagesCrawled int       `json:"pages_crawled"`
	CreditsUsed  int       `json:"credits_used"`
	FileSize     int64     `json:"file_size_bytes"`
	CrawledAt    time.Time `json:"crawled_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CleanupSummary reports what an expiry sweep removed.
type CleanupSummary struct {
	CrawlsDeleted int       `json:"crawls_deleted"`
	FilesDeleted  int       `json:"files_deleted"`
	BytesFreed    int64     `json:"bytes_freed"`
	Timestamp     time.Time `json:"cleanup_timestamp"`
}

// Stats summarizes the ledger state and echoes the active policy.
type Stats struct {
	TotalBusinesses       int    `json:"total_businesses"`
	TotalCrawls           int    `json:"total_crawls"`
	ActiveCrawls          int    `json:"active_crawls"`
	ExpiringSoon30d       int    `json:"expiring_soon_30d"`
	BusinessesDueForCrawl int    `json:"businesses_due_for_crawl"`
	StorageUsedBytes      int64  `json:"storage_used_bytes"`
	RetentionPeriodDays   int    `json:"retention_period_days"`
	RecrawlIntervalDays   int    `json:"recrawl_interval_days"`
	MaxVersions           int    `json:"max_versions_per_business"`
	LastCleanup           string `json:"last_cleanup,omitempty"`
}

// Ledger is the SQLite-backed retention index. Safe for concurrent
// use; writes are serialized through a mutex on top of the
// single-connection pool.
type Ledger struct {
	db  *sql.DB
	cfg Config
	mu  sync.Mutex
	now func() time.Time
}

// NewLedger opens (or creates) the ledger database.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 540
	}
	if cfg.RecrawlDays <= 0 {
		cfg.RecrawlDays = 180
	}
	if cfg.MaxVersions <= 0 {
		cfg.MaxVersions = 3
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	l := &Ledger{db: db, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}

	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return l, nil
}

func (l *Ledger) initSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := l.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := l.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// NormalizeURL reduces a business URL to its ledger identity:
// lowercase, scheme and www prefix stripped, trailing slash removed.
func NormalizeURL(url string) string {
	url = strings.ToLower(url)
	for _, prefix := range []string{"https://", "http://", "www."} {
		url = strings.TrimPrefix(url, prefix)
	}
	return strings.TrimRight(url, "/")
}

// Register adds a business to the ledger, or returns the existing id
// when the normalized URL is already registered. Idempotent.
func (l *Ledger) Register(businessURL, businessType, businessName string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	businessID := NormalizeURL(businessURL)

	_, err := l.db.Exec(`
		INSERT OR IGNORE INTO businesses (
			business_id, business_url, business_type, business_name, registered_at
		) VALUES (?, ?, ?, ?, ?)
	`, businessID, businessURL, businessType, businessName, l.now().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to register business: %w", err)
	}

	return businessID, nil
}

// RecordCrawl registers a completed crawl: assigns the next version
// number, stamps expiry, advances the re-crawl schedule, and evicts
// the oldest versions beyond the retention cap. Version numbers grow
// monotonically from crawl_count, so eviction never reuses a version.
func (l *Ledger) RecordCrawl(crawlID, businessURL, businessType, crawlFilePath string, pagesCrawled, creditsUsed int) (*CrawlRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	businessID := NormalizeURL(businessURL)
	now := l.now()

	var fileSize int64
	if crawlFilePath != "" {
		if info, err := os.Stat(crawlFilePath); err == nil {
			fileSize = info.Size()
		}
	}

	tx, err := l.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Ensure the business exists (idempotent with Register).
	_, err = tx.Exec(`
		INSERT OR IGNORE INTO businesses (
			business_id, business_url, business_type, business_name, registered_at
		) VALUES (?, ?, ?, '', ?)
	`, businessID, businessURL, businessType, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to register business: %w", err)
	}

	var crawlCount int
	var firstCrawled sql.NullString
	err = tx.QueryRow(`
		SELECT crawl_count, first_crawled_at FROM businesses WHERE business_id = ?
	`, businessID).Scan(&crawlCount, &firstCrawled)
	if err != nil {
		return nil, fmt.Errorf("failed to read business: %w", err)
	}

	version := crawlCount + 1
	expiresAt := now.Add(time.Duration(l.cfg.RetentionDays) * 24 * time.Hour)
	nextDue := now.Add(time.Duration(l.cfg.RecrawlDays) * 24 * time.Hour)

	record := &CrawlRecord{
		CrawlID:      crawlID,
		BusinessID:   businessID,
		Version:      version,
		CrawlFile:    crawlFilePath,
		PagesCrawled: pagesCrawled,
		CreditsUsed:  creditsUsed,
		FileSize:     fileSize,
		CrawledAt:    now,
		ExpiresAt:    expiresAt,
	}

	_, err = tx.Exec(`
		INSERT INTO crawl_versions (
			crawl_id, business_id, version, crawl_file,
			pages_crawled, credits_used, file_size_bytes, crawled_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, crawlID, businessID, version, crawlFilePath,
		pagesCrawled, creditsUsed, fileSize,
		now.Format(time.RFC3339), expiresAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to insert crawl version: %w", err)
	}

	firstCrawledAt := now.Format(time.RFC3339)
	if firstCrawled.Valid && firstCrawled.String != "" {
		firstCrawledAt = firstCrawled.String
	}

	_, err = tx.Exec(`
		UPDATE businesses SET
			crawl_count = ?,
			last_crawled_at = ?,
			next_crawl_due = ?,
			first_crawled_at = ?
		WHERE business_id = ?
	`, version, now.Format(time.RFC3339), nextDue.Format(time.RFC3339), firstCrawledAt, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to update business: %w", err)
	}

	evictedFiles, err := l.enforceMaxVersions(tx, businessID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	// Backing files are removed after commit so a rollback never
	// loses content the ledger still references.
	for _, path := range evictedFiles {
		if path != "" {
			_ = os.Remove(path)
		}
	}

	return record, nil
}

// enforceMaxVersions deletes the oldest version rows beyond the cap
// and returns their backing file paths for removal after commit.
func (l *Ledger) enforceMaxVersions(tx *sql.Tx, businessID string) ([]string, error) {
	rows, err := tx.Query(`
		SELECT crawl_id, crawl_file FROM crawl_versions
		WHERE business_id = ?
		ORDER BY version ASC
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	type versionRow struct {
		crawlID string
		file    sql.NullString
	}
	var versions []versionRow
	for rows.Next() {
		var v versionRow
		if err := rows.Scan(&v.crawlID, &v.file); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}

	excess := len(versions) - l.cfg.MaxVersions
	if excess <= 0 {
		return nil, nil
	}

	var files []string
	for _, v := range versions[:excess] {
		if _, err := tx.Exec(`DELETE FROM crawl_versions WHERE crawl_id = ?`, v.crawlID); err != nil {
			return nil, fmt.Errorf("failed to evict version %s: %w", v.crawlID, err)
		}
		if v.file.Valid {
			files = append(files, v.file.String)
		}
	}

	return files, nil
}

// DueForCrawl lists businesses whose re-crawl is due: never-crawled
// businesses first, then the longest overdue.
func (l *Ledger) DueForCrawl() ([]Business, error) {
	now := l.now().Format(time.RFC3339)

	rows, err := l.db.Query(`
		SELECT business_id, business_url, business_type, business_name,
			first_crawled_at, last_crawled_at, next_crawl_due, crawl_count
		FROM businesses
		WHERE next_crawl_due IS NULL OR next_crawl_due <= ?
		ORDER BY next_crawl_due IS NULL DESC, next_crawl_due ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due businesses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanBusinesses(rows)
}

// GetBusiness returns the business record, or nil when the URL is
// not registered.
func (l *Ledger) GetBusiness(businessURL string) (*Business, error) {
	row := l.db.QueryRow(`
		SELECT business_id, business_url, business_type, business_name,
			first_crawled_at, last_crawled_at, next_crawl_due, crawl_count
		FROM businesses WHERE business_id = ?
	`, NormalizeURL(businessURL))

	b, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read business: %w", err)
	}
	return b, nil
}

// ExpireOldCrawls deletes crawl versions past their expiry, removes
// their backing files, and reports what was freed.
func (l *Ledger) ExpireOldCrawls() (*CleanupSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	summary := &CleanupSummary{Timestamp: now}

	rows, err := l.db.Query(`
		SELECT crawl_id, crawl_file, file_size_bytes FROM crawl_versions
		WHERE expires_at <= ?
	`, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query expired crawls: %w", err)
	}

	type expiredRow struct {
		crawlID string
		file    sql.NullString
		size    int64
	}
	var expired []expiredRow
	for rows.Next() {
		var e expiredRow
		if err := rows.Scan(&e.crawlID, &e.file, &e.size); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan expired crawl: %w", err)
		}
		expired = append(expired, e)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}

	if len(expired) == 0 {
		if err := l.setMeta("last_cleanup", now.Format(time.RFC3339)); err != nil {
			return nil, err
		}
		return summary, nil
	}

	tx, err := l.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range expired {
		if _, err := tx.Exec(`DELETE FROM crawl_versions WHERE crawl_id = ?`, e.crawlID); err != nil {
			return nil, fmt.Errorf("failed to delete expired crawl %s: %w", e.crawlID, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO ledger_meta (key, value) VALUES ('last_cleanup', ?)
	`, now.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("failed to record cleanup time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	for _, e := range expired {
		summary.CrawlsDeleted++
		if e.file.Valid && e.file.String != "" {
			if err := os.Remove(e.file.String); err == nil {
				summary.FilesDeleted++
				summary.BytesFreed += e.size
			}
		}
	}

	return summary, nil
}

// History returns all retained crawl versions for a business, oldest
// first. An unknown business yields an empty history, not an error.
func (l *Ledger) History(businessURL string) ([]CrawlRecord, error) {
	rows, err := l.db.Query(`
		SELECT crawl_id, business_id, version, crawl_file,
			pages_crawled, credits_used, file_size_bytes, crawled_at, expires_at
		FROM crawl_versions
		WHERE business_id = ?
		ORDER BY version ASC
	`, NormalizeURL(businessURL))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []CrawlRecord
	for rows.Next() {
		var r CrawlRecord
		var file sql.NullString
		var crawledAt, expiresAt string
		if err := rows.Scan(&r.CrawlID, &r.BusinessID, &r.Version, &file,
			&r.PagesCrawled, &r.CreditsUsed, &r.FileSize, &crawledAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan crawl record: %w", err)
		}
		r.CrawlFile = file.String
		r.CrawledAt, _ = time.Parse(time.RFC3339, crawledAt)
		r.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
		history = append(history, r)
	}

	return history, rows.Err()
}

// Latest returns the most recent retained crawl for a business, or
// nil when none exists.
func (l *Ledger) Latest(businessURL string) (*CrawlRecord, error) {
	history, err := l.History(businessURL)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return &history[len(history)-1], nil
}

// ScheduleRecrawl moves a business's next crawl date. priority
// schedules it for immediate crawl; otherwise the date is recomputed
// from the last crawl. Returns nil for an unregistered business.
func (l *Ledger) ScheduleRecrawl(businessURL string, priority bool) (*time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	businessID := NormalizeURL(businessURL)

	var lastCrawled sql.NullString
	err := l.db.QueryRow(`
		SELECT last_crawled_at FROM businesses WHERE business_id = ?
	`, businessID).Scan(&lastCrawled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read business: %w", err)
	}

	var newDue time.Time
	if priority || !lastCrawled.Valid || lastCrawled.String == "" {
		newDue = l.now()
	} else {
		last, err := time.Parse(time.RFC3339, lastCrawled.String)
		if err != nil {
			return nil, fmt.Errorf("invalid last_crawled_at: %w", err)
		}
		newDue = last.Add(time.Duration(l.cfg.RecrawlDays) * 24 * time.Hour)
	}

	_, err = l.db.Exec(`
		UPDATE businesses SET next_crawl_due = ? WHERE business_id = ?
	`, newDue.Format(time.RFC3339), businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule recrawl: %w", err)
	}

	return &newDue, nil
}

// Stats reports ledger-wide counts and the active policy.
func (l *Ledger) Stats() (*Stats, error) {
	now := l.now()
	stats := &Stats{
		RetentionPeriodDays: l.cfg.RetentionDays,
		RecrawlIntervalDays: l.cfg.RecrawlDays,
		MaxVersions:         l.cfg.MaxVersions,
	}

	err := l.db.QueryRow(`SELECT COUNT(*) FROM businesses`).Scan(&stats.TotalBusinesses)
	if err != nil {
		return nil, fmt.Errorf("failed to count businesses: %w", err)
	}

	soon := now.Add(30 * 24 * time.Hour).Format(time.RFC3339)
	err = l.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN expires_at > ? AND expires_at <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(file_size_bytes), 0)
		FROM crawl_versions
	`, now.Format(time.RFC3339), now.Format(time.RFC3339), soon).Scan(
		&stats.TotalCrawls, &stats.ActiveCrawls, &stats.ExpiringSoon30d, &stats.StorageUsedBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to count crawls: %w", err)
	}

	due, err := l.DueForCrawl()
	if err != nil {
		return nil, err
	}
	stats.BusinessesDueForCrawl = len(due)

	stats.LastCleanup, err = l.getMeta("last_cleanup")
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (l *Ledger) getMeta(key string) (string, error) {
	var value string
	err := l.db.QueryRow(`SELECT value FROM ledger_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

func (l *Ledger) setMeta(key, value string) error {
	_, err := l.db.Exec(`
		INSERT OR REPLACE INTO ledger_meta (key, value) VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBusiness(row rowScanner) (*Business, error) {
	var b Business
	var name, first, last, due sql.NullString
	if err := row.Scan(&b.BusinessID, &b.BusinessURL, &b.BusinessType, &name,
		&first, &last, &due, &b.CrawlCount); err != nil {
		return nil, err
	}
	b.BusinessName = name.String
	b.FirstCrawledAt = parseNullTime(first)
	b.LastCrawledAt = parseNullTime(last)
	b.NextCrawlDue = parseNullTime(due)
	return &b, nil
}

func scanBusinesses(rows *sql.Rows) ([]Business, error) {
	var out []Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan business: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
