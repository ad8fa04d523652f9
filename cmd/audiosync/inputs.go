package main

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/xaionaro-go/audiosync/pkg/engine"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/project"
	"github.com/xaionaro-go/audiosync/pkg/source"
)

// session is the state the analyze and sync commands work on.
type session struct {
	Engine   *engine.Engine
	Project  *project.Project
	Warnings []string
}

func newSession(ctx context.Context, common *commonFlags, args []string) (*session, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no input files given")
	}
	s := &session{
		Engine: engine.New(source.NewAuto()),
	}

	if len(args) == 1 && strings.HasSuffix(args[0], project.FileExtension) {
		p, err := project.LoadFile(ctx, args[0])
		if err != nil {
			return nil, err
		}
		s.Project = p
	} else {
		paths, err := expandPaths(args)
		if err != nil {
			return nil, err
		}
		tracks, warnings, err := s.Engine.ImportFiles(ctx, paths)
		if err != nil {
			return nil, fmt.Errorf("unable to import the files: %w", err)
		}
		s.Warnings = append(s.Warnings, warnings...)
		s.Project = project.New("")
		s.Project.Tracks = tracks
	}

	if len(s.Project.Tracks) == 0 {
		return nil, fmt.Errorf("none of the given files is usable")
	}
	if common.Reference != "" {
		if err := pinReference(s.Project.Tracks, common.Reference); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// expandPaths replaces directories with the supported media files inside them.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path != arg && !source.IsSupported(path) {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("unable to read '%s': %w", arg, err)
		}
	}
	return paths, nil
}

func pinReference(tracks []*model.Track, name string) error {
	found := false
	for _, t := range tracks {
		t.PinnedReference = strings.EqualFold(t.Name, name)
		found = found || t.PinnedReference
	}
	if found {
		return nil
	}
	names := make([]string, 0, len(tracks))
	for _, t := range tracks {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return fmt.Errorf("there is no track '%s'; available tracks: %s", name, strings.Join(names, ", "))
}

func (s *session) Analyze(ctx context.Context, cfg model.AnalysisConfig, common *commonFlags) error {
	result, err := s.Engine.RunAnalysis(ctx, s.Project.Tracks, cfg, newProgressPrinter(common.JSON))
	if err != nil {
		return fmt.Errorf("unable to analyze: %w", err)
	}
	s.Project.Config = &cfg
	s.Project.Result = result
	return nil
}

// Save stores the project into the file and/or the library, whichever is requested.
func (s *session) Save(ctx context.Context, path string, common *commonFlags) error {
	if path != "" {
		if s.Project.Name == "" {
			s.Project.Name = strings.TrimSuffix(filepath.Base(path), project.FileExtension)
		}
		if err := project.SaveFile(ctx, path, s.Project); err != nil {
			return err
		}
		logger.Infof(ctx, "the project is saved to '%s'", path)
	}
	if common.Store == "" {
		return nil
	}
	store, closeStore, err := openStore(common.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := store.Save(ctx, s.Project); err != nil {
		return err
	}
	logger.Infof(ctx, "the project %s is saved to the library '%s'", s.Project.ID, common.Store)
	return nil
}

func openStore(location string) (project.Store, func(), error) {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".sqlite3", ".sqlite", ".db":
		s, err := project.OpenSQLiteStore(location)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return project.NewFileStore(location), func() {}, nil
	}
}

// loadProject loads the project by its file path, or by its id from the library.
func loadProject(ctx context.Context, ref string, common *commonFlags) (*project.Project, error) {
	id, err := uuid.Parse(ref)
	if err != nil || common.Store == "" {
		return project.LoadFile(ctx, ref)
	}
	store, closeStore, err := openStore(common.Store)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	return store.Load(ctx, id)
}
