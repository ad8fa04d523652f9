package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
)

// Summary is a short description of a stored project.
type Summary struct {
	ID         uuid.UUID
	Name       string
	AppVersion string
	SavedAt    time.Time
}

type Store interface {
	Save(ctx context.Context, p *Project) error
	Load(ctx context.Context, id uuid.UUID) (*Project, error)
	// List returns the stored projects, the most recently saved first.
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SaveFile writes the project to a file.
func SaveFile(ctx context.Context, path string, p *Project) error {
	b, err := Marshal(p)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("unable to create directory '%s': %w", dir, err)
		}
	}
	// write-then-rename, so an interrupted save does not destroy the previous version
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("unable to rename '%s' to '%s': %w", tmp, path, err)
	}
	logger.Debugf(ctx, "project %s saved to '%s' (%d bytes)", p.ID, path, len(b))
	return nil
}

// LoadFile reads a project file of any supported version.
func LoadFile(ctx context.Context, path string) (*Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: '%s'", ErrNotFound, path)
		}
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	p, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("unable to load '%s': %w", path, err)
	}
	logger.Debugf(ctx, "project %s loaded from '%s': %d tracks", p.ID, path, len(p.Tracks))
	return p, nil
}

// FileStore keeps every project as <id>.audiosync in a directory.
type FileStore struct {
	Dir string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.Dir, id.String()+FileExtension)
}

func (s *FileStore) Save(ctx context.Context, p *Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return SaveFile(ctx, s.path(p.ID), p)
}

func (s *FileStore) Load(ctx context.Context, id uuid.UUID) (*Project, error) {
	return LoadFile(ctx, s.path(id))
}

func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to list '%s': %w", s.Dir, err)
	}

	var result []Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, FileExtension) {
			continue
		}
		if _, err := uuid.Parse(strings.TrimSuffix(name, FileExtension)); err != nil {
			continue
		}
		p, err := LoadFile(ctx, filepath.Join(s.Dir, name))
		if err != nil {
			logger.Warnf(ctx, "skipping '%s': %v", name, err)
			continue
		}
		result = append(result, Summary{ID: p.ID, Name: p.Name, AppVersion: p.AppVersion, SavedAt: p.SavedAt})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SavedAt.After(result[j].SavedAt)
	})
	return result, nil
}

func (s *FileStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
