package main

import (
	"context"
	"fmt"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/batch"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/migrate"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/store"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/workspace"
)

// session is an opened review cycle: the workspace, its comparisons and
// the decision store replayed from the database.
type session struct {
	ws    *workspace.Workspace
	db    *store.SqlStore
	store *override.Store
	items []batch.Item
}

func (s *session) Close() error { return s.db.Close() }

func (s *session) runner() (*batch.Runner, error) {
	exp, err := loadExpectations(cfg.Expectations)
	if err != nil {
		return nil, err
	}
	return &batch.Runner{Workers: cfg.Workers, Expectations: exp}, nil
}

// openSession compares every proposed record in the workspace and
// registers the comparisons with the decision store.
func openSession(ctx context.Context) (*session, error) {
	ws, err := workspace.Open(cfg.RecordsDir, cfg.ProposedDir, cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.DecisionsDB)
	if err != nil {
		return nil, fmt.Errorf("open decisions: %w", err)
	}
	st, err := override.Open(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("replay decisions: %w", err)
	}
	s := &session{ws: ws, db: db, store: st}

	pairs, err := ws.Pairs(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	r, err := s.runner()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if s.items, err = r.Compare(ctx, pairs); err != nil {
		_ = db.Close()
		return nil, err
	}
	batch.Register(st, s.items)
	return s, nil
}

// Save writes a merged record to the output directory and archives it in
// the decisions database.
func (s *session) Save(ctx context.Context, f *guideline.FinalRecord, encoded []byte) (string, error) {
	path, err := s.ws.Output.Save(ctx, f.ID, encoded)
	if err != nil {
		return "", err
	}
	if _, err := s.db.SaveMerged(f, encoded); err != nil {
		return "", err
	}
	return path, nil
}

func loadExpectations(path string) (*diff.Expectations, error) {
	if path == "" {
		return nil, nil
	}
	return diff.LoadExpectations(path)
}

// loadRecord reads a record file of any known version and decodes it at
// the latest version.
func loadRecord(path string) (*guideline.Record, error) {
	doc, err := workspace.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	up, err := migrate.Migrate(doc, schema.Latest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return guideline.Decode(up)
}
