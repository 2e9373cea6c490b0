package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jsenna/acquire/internal/measure"
)

// Store is the durable sink for datasets: one directory per run under
// baseDir, holding a dataset.json that is replaced atomically on every
// checkpoint, plus a sqlite catalog of finished runs for fast listing.
type Store struct {
	baseDir string
	catalog *catalog
}

// Open prepares the data directory and its catalog.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	cat, err := openCatalog(filepath.Join(baseDir, "index.db"))
	if err != nil {
		return nil, err
	}
	return &Store{baseDir: baseDir, catalog: cat}, nil
}

func (s *Store) Close() error {
	return s.catalog.close()
}

// Checkpoint writes the snapshot to the run's dataset.json. The write
// goes through a temp file and a rename, so a crash mid-checkpoint
// leaves the previous complete file in place, never a truncated one.
func (s *Store) Checkpoint(ds *measure.Dataset) error {
	dir := s.runDir(ds)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "dataset-*.json.tmp")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, "dataset.json"))
}

// Finalize persists the terminal dataset and records it in the catalog.
func (s *Store) Finalize(ds *measure.Dataset) error {
	if err := s.Checkpoint(ds); err != nil {
		return err
	}
	return s.catalog.upsert(ds)
}

// Load reads a run's dataset back by TUID.
func (s *Store) Load(tuid string) (*measure.Dataset, error) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, tuid+"-*", "dataset.json"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("storage: no run %s", tuid)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, err
	}
	var ds measure.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("storage: run %s: %w", tuid, err)
	}
	return &ds, nil
}

// List returns catalog entries, newest first.
func (s *Store) List() ([]RunInfo, error) {
	return s.catalog.list()
}

func (s *Store) runDir(ds *measure.Dataset) string {
	return filepath.Join(s.baseDir, ds.TUID+"-"+slug(ds.Name))
}

// slug makes a run name safe as a directory suffix.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "run"
	}
	return b.String()
}
