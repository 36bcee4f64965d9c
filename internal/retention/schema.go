package retention

// Ledger schema. Businesses are keyed by their normalized URL; crawl
// versions reference the business and carry their own expiry.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS businesses (
	business_id TEXT PRIMARY KEY,
	business_url TEXT NOT NULL,
	business_type TEXT NOT NULL,
	business_name TEXT,
	first_crawled_at TEXT,
	last_crawled_at TEXT,
	next_crawl_due TEXT,
	crawl_count INTEGER NOT NULL DEFAULT 0,
	registered_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_versions (
	crawl_id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(business_id),
	version INTEGER NOT NULL,
	crawl_file TEXT,
	pages_crawled INTEGER NOT NULL DEFAULT 0,
	credits_used INTEGER NOT NULL DEFAULT 0,
	file_size_bytes INTEGER NOT NULL DEFAULT 0,
	crawled_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_versions_business ON crawl_versions(business_id, version);
CREATE INDEX IF NOT EXISTS idx_versions_expiry ON crawl_versions(expires_at);
CREATE INDEX IF NOT EXISTS idx_businesses_due ON businesses(next_crawl_due);

CREATE TABLE IF NOT EXISTS ledger_meta (
	key TEXT PRIMARY KEY,
	value TEXT
);
`
