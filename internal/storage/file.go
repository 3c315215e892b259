package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hombenai/herd-bot/internal/models"
)

const (
	usersFile   = "users.json"
	animalsFile = "animals.json"
	missingFile = "missing.json"
)

// FileStore keeps the three documents as JSON files in a directory. Each
// write goes to a temp file first and is moved into place with os.Rename,
// so readers never see a half-written document.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Load(ctx context.Context) (*models.Snapshot, error) {
	snap := models.NewSnapshot()

	if err := s.readJSON(usersFile, &snap.Users); err != nil {
		return nil, err
	}
	if err := s.readJSON(animalsFile, &snap.Animals); err != nil {
		return nil, err
	}
	if err := s.readJSON(missingFile, &snap.Missing); err != nil {
		return nil, err
	}

	for id, u := range snap.Users {
		u.ID = id
	}
	for id, a := range snap.Animals {
		a.ID = id
	}
	snap.Missing = dedupe(snap.Missing)
	return snap, nil
}

func (s *FileStore) Save(ctx context.Context, snap *models.Snapshot) error {
	if err := s.writeJSON(usersFile, snap.Users); err != nil {
		return err
	}
	if err := s.writeJSON(animalsFile, snap.Animals); err != nil {
		return err
	}
	return s.writeJSON(missingFile, dedupe(snap.Missing))
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		// First run: the document simply doesn't exist yet.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
