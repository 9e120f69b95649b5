package store

// schemaVersionV1 is the original decision log: one row per decision,
// identified only by its sequence number.
const schemaVersionV1 = 1

// schemaVersionV2 adds stable entry ids, timestamps and the merged-record
// archive.
const schemaVersionV2 = 2

// schemaV1 is the original DDL (kept for reference and migration tests).
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS decisions (
	seq          INTEGER PRIMARY KEY,
	kind         TEXT NOT NULL,
	guideline_id TEXT NOT NULL,
	context      TEXT,
	scope        TEXT,
	target_id    TEXT,
	decision     TEXT,
	reason       TEXT,
	via_bulk     INTEGER NOT NULL DEFAULT 0
);
`

// schemaV2 is the current DDL (fresh install).
var schemaV2 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

-- Append-only decision log. Rows are never updated or deleted; a reset is
-- itself a row.
CREATE TABLE IF NOT EXISTS decisions (
	seq          INTEGER PRIMARY KEY,
	entry_id     TEXT NOT NULL UNIQUE,
	kind         TEXT NOT NULL,
	guideline_id TEXT NOT NULL,
	context      TEXT,
	scope        TEXT,
	target_id    TEXT,
	decision     TEXT,
	reason       TEXT,
	via_bulk     INTEGER NOT NULL DEFAULT 0,
	recorded_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_guideline ON decisions(guideline_id);

-- Merged records, one row per merge.
CREATE TABLE IF NOT EXISTS merged_records (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	guideline_id  TEXT NOT NULL,
	review_state  TEXT NOT NULL,
	bypassed      INTEGER NOT NULL DEFAULT 0,
	payload       BLOB NOT NULL,
	merged_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_merged_guideline ON merged_records(guideline_id);
`

// migrationV1ToV2 upgrades a v1 log in place. Existing rows get generated
// entry ids and an empty timestamp.
// Executed as a transaction in DecisionLog.migrate().
var migrationV1ToV2 = `
ALTER TABLE decisions ADD COLUMN entry_id TEXT;
ALTER TABLE decisions ADD COLUMN recorded_at TEXT NOT NULL DEFAULT '';
UPDATE decisions SET entry_id = lower(hex(randomblob(16))) WHERE entry_id IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_decisions_entry ON decisions(entry_id);
CREATE INDEX IF NOT EXISTS idx_decisions_guideline ON decisions(guideline_id);

CREATE TABLE IF NOT EXISTS merged_records (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	guideline_id  TEXT NOT NULL,
	review_state  TEXT NOT NULL,
	bypassed      INTEGER NOT NULL DEFAULT 0,
	payload       BLOB NOT NULL,
	merged_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_merged_guideline ON merged_records(guideline_id);

UPDATE schema_version SET version = 2;
`
