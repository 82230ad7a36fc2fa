package storage

// schema is applied on every open; all statements are idempotent
const schema = `
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	score       REAL NOT NULL DEFAULT 0,
	verdict     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'discovered',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);

CREATE TABLE IF NOT EXISTS built_records (
	item_id       TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	slug          TEXT NOT NULL,
	output_path   TEXT NOT NULL,
	quality_score REAL NOT NULL DEFAULT 0,
	deploy_url    TEXT NOT NULL DEFAULT '',
	deployed      INTEGER NOT NULL DEFAULT 0,
	built_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_built_records_path ON built_records(output_path);

CREATE TABLE IF NOT EXISTS failures (
	item_id         TEXT PRIMARY KEY,
	count           INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT NOT NULL DEFAULT '',
	last_failure_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS status (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
