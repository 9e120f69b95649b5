// Package store persists the review decision log and the archive of merged
// records in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullIfEmpty stores empty strings as NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV2

// SqlStore implements override.Log with SQLite and archives merged records.
type SqlStore struct {
	db *sql.DB
}

var _ override.Log = (*SqlStore)(nil)

// Open opens or creates a SQLite DB at path and runs migrations. Creates
// the parent directory if it does not exist. ":memory:" opens a private
// in-memory database.
func Open(path string) (*SqlStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SqlStore) Close() error { return s.db.Close() }

// SchemaVersion returns the on-disk schema version.
func (s *SqlStore) SchemaVersion() (int, error) {
	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func (s *SqlStore) migrate() error {
	// Check if schema_version table exists to detect database state.
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		// schema_version exists but is empty: treat as v1.
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}

	switch v {
	case currentSchemaVersion:
		return nil
	case schemaVersionV1:
		return s.migrateV1ToV2()
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV2); err != nil {
		return fmt.Errorf("create v2 schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV2); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// migrateV1ToV2 migrates an existing v1 database to the v2 schema.
// Runs inside a transaction to ensure atomicity.
func (s *SqlStore) migrateV1ToV2() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migrationV1ToV2); err != nil {
		return fmt.Errorf("v1→v2 migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

// Append implements override.Log. All entries are written in one
// transaction.
func (s *SqlStore) Append(entries ...override.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO decisions
		(seq, entry_id, kind, guideline_id, context, scope, target_id, decision, reason, via_bulk, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		d := e.Decision
		viaBulk := 0
		if d.ViaBulk {
			viaBulk = 1
		}
		_, err := stmt.Exec(e.Seq, e.ID, string(e.Kind), d.GuidelineID,
			nullIfEmpty(string(d.Context)), nullIfEmpty(string(d.Scope)), nullIfEmpty(d.TargetID),
			nullIfEmpty(string(d.Verdict)), nullIfEmpty(d.Reason), viaBulk,
			e.RecordedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("append entry %d: %w", e.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

// Entries implements override.Log, returning entries in sequence order.
func (s *SqlStore) Entries() ([]override.Entry, error) {
	rows, err := s.db.Query(`SELECT seq, entry_id, kind, guideline_id, context, scope, target_id,
		decision, reason, via_bulk, recorded_at FROM decisions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []override.Entry
	for rows.Next() {
		var (
			e                   override.Entry
			kind, gid, recorded string
			entryID, ctx, scope sql.NullString
			target, verdict     sql.NullString
			reason              sql.NullString
			viaBulk             int
		)
		if err := rows.Scan(&e.Seq, &entryID, &kind, &gid, &ctx, &scope, &target,
			&verdict, &reason, &viaBulk, &recorded); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.ID = nullStr(entryID)
		e.Kind = override.EntryKind(kind)
		e.Decision = override.Decision{
			Key: override.Key{
				GuidelineID: gid,
				Context:     guideline.Context(nullStr(ctx)),
				Scope:       override.Scope(nullStr(scope)),
				TargetID:    nullStr(target),
			},
			Verdict: override.Verdict(nullStr(verdict)),
			Reason:  nullStr(reason),
			ViaBulk: viaBulk != 0,
		}
		if recorded != "" {
			t, err := time.Parse(time.RFC3339Nano, recorded)
			if err != nil {
				return nil, fmt.Errorf("entry %d: recorded_at: %w", e.Seq, err)
			}
			e.RecordedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MergedRecord is one archived merge result.
type MergedRecord struct {
	ID          int64
	GuidelineID string
	ReviewState string
	Bypassed    bool
	Payload     []byte
	MergedAt    string
}

// SaveMerged archives the canonical encoding of a final record.
func (s *SqlStore) SaveMerged(f *guideline.FinalRecord, payload []byte) (int64, error) {
	bypassed := 0
	if f.Review.Bypassed {
		bypassed = 1
	}
	res, err := s.db.Exec(`INSERT INTO merged_records (guideline_id, review_state, bypassed, payload, merged_at)
		VALUES (?, ?, ?, ?, ?)`, f.ID, f.Review.State, bypassed, payload, nowUTC())
	if err != nil {
		return 0, fmt.Errorf("save merged %s: %w", f.ID, err)
	}
	return res.LastInsertId()
}

// LatestMerged returns the most recent archived merge for a guideline, or
// nil if there is none.
func (s *SqlStore) LatestMerged(guidelineID string) (*MergedRecord, error) {
	var (
		m        MergedRecord
		bypassed int
	)
	err := s.db.QueryRow(`SELECT id, guideline_id, review_state, bypassed, payload, merged_at
		FROM merged_records WHERE guideline_id = ? ORDER BY id DESC LIMIT 1`, guidelineID).
		Scan(&m.ID, &m.GuidelineID, &m.ReviewState, &bypassed, &m.Payload, &m.MergedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load merged %s: %w", guidelineID, err)
	}
	m.Bypassed = bypassed != 0
	return &m, nil
}
