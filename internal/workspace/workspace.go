// Package workspace reads and writes guideline records on disk. A review
// workspace is three directories: persisted baseline records, proposed
// updates, and the merged output.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
)

// Workspace locates the directories of one review cycle.
type Workspace struct {
	Baseline *Dir
	Proposed *Dir
	Output   *Dir
}

// Open returns a workspace over the three directories. The output directory
// is created if needed; the input directories must exist.
func Open(baselineDir, proposedDir, outputDir string) (*Workspace, error) {
	for _, d := range []string{baselineDir, proposedDir} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			return nil, fmt.Errorf("workspace: %s is not a directory", d)
		}
	}
	out, err := NewDir(outputDir)
	if err != nil {
		return nil, err
	}
	return &Workspace{Baseline: &Dir{Path: baselineDir}, Proposed: &Dir{Path: proposedDir}, Output: out}, nil
}

// Pair is the baseline and proposed document of one guideline. Baseline is
// nil for a guideline with no persisted history.
type Pair struct {
	ID       string
	Baseline schema.Document
	Proposed schema.Document
}

// Pairs matches proposed documents with baseline documents by guideline id,
// sorted by id. Baselines without a proposed update are skipped.
func (w *Workspace) Pairs(ctx context.Context) ([]Pair, error) {
	base, err := w.Baseline.ByID(ctx)
	if err != nil {
		return nil, err
	}
	prop, err := w.Proposed.ByID(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Pair, 0, len(prop))
	for id, doc := range prop {
		out = append(out, Pair{ID: id, Baseline: base[id], Proposed: doc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Dir holds one record file per guideline.
type Dir struct {
	Path string
}

// NewDir returns a Dir rooted at path, creating it if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create dir: %w", err)
	}
	return &Dir{Path: path}, nil
}

// List returns the record file names in the directory, sorted.
func (d *Dir) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("workspace: list: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !recordExt(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Load reads one record file by name.
func (d *Dir) Load(_ context.Context, name string) (schema.Document, error) {
	return LoadFromPath(filepath.Join(d.Path, name))
}

// ByID loads every record in the directory, keyed by its "id" field. Two
// files for the same guideline are an error.
func (d *Dir) ByID(ctx context.Context) (map[string]schema.Document, error) {
	names, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]schema.Document, len(names))
	from := make(map[string]string, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := d.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		id, _ := doc["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("workspace: %s: record without id", name)
		}
		if prev, dup := from[id]; dup {
			return nil, fmt.Errorf("workspace: guideline %s in both %s and %s", id, prev, name)
		}
		out[id] = doc
		from[id] = name
	}
	return out, nil
}

// Save writes data as the record file for a guideline.
func (d *Dir) Save(_ context.Context, guidelineID string, data []byte) (string, error) {
	path := filepath.Join(d.Path, FileName(guidelineID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("workspace: write %q: %w", guidelineID, err)
	}
	return path, nil
}

// FileName maps a guideline id such as "Rule 10.1" to "rule_10_1.json".
func FileName(guidelineID string) string {
	r := strings.NewReplacer(" ", "_", ".", "_", "/", "_")
	return strings.ToLower(r.Replace(guidelineID)) + ".json"
}
