// Package project persists the state of a synchronization session: the
// tracks with their analysis results, the last config and the last result.
// Samples are never persisted; they are decoded from the source files again.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xaionaro-go/audiosync/pkg/model"
)

const (
	// SchemaVersion is the version of the documents written by this package.
	SchemaVersion = 3

	// MinSchemaVersion is the oldest version that can still be loaded.
	MinSchemaVersion = 2

	FileExtension = ".audiosync"
)

// AppVersion is recorded in every saved document.
var AppVersion = "dev"

var (
	ErrNewerVersion       = errors.New("the project was saved by a newer version")
	ErrUnsupportedVersion = errors.New("unsupported project version")
	ErrNotFound           = errors.New("project not found")
)

type Project struct {
	SchemaVersion int                   `json:"schema_version"`
	ID            uuid.UUID             `json:"id"`
	Name          string                `json:"name,omitempty"`
	AppVersion    string                `json:"app_version"`
	SavedAt       time.Time             `json:"saved_at"`
	Tracks        []*model.Track        `json:"tracks"`
	Config        *model.AnalysisConfig `json:"config,omitempty"`
	Result        *model.SyncResult     `json:"result,omitempty"`
}

func New(name string) *Project {
	return &Project{
		SchemaVersion: SchemaVersion,
		ID:            uuid.New(),
		Name:          name,
		AppVersion:    AppVersion,
	}
}

// Marshal serializes the project, stamping the schema and the app version
// and the save time.
func Marshal(p *Project) ([]byte, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.SchemaVersion = SchemaVersion
	p.AppVersion = AppVersion
	p.SavedAt = time.Now().UTC()
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("unable to serialize the project: %w", err)
	}
	return b, nil
}

type versionProbe struct {
	SchemaVersion *int            `json:"schema_version"`
	Version       json.RawMessage `json:"version"`
}

// DetectVersion returns the schema version of the document. Documents of
// version 2 carry it in the numeric field "version"; anything else
// (including the string versions of older files) is reported as 0.
func DetectVersion(b []byte) (int, error) {
	var probe versionProbe
	if err := json.Unmarshal(b, &probe); err != nil {
		return 0, fmt.Errorf("unable to parse the project: %w", err)
	}
	if probe.SchemaVersion != nil {
		return *probe.SchemaVersion, nil
	}
	var v int
	if len(probe.Version) > 0 && json.Unmarshal(probe.Version, &v) == nil {
		return v, nil
	}
	return 0, nil
}

// Unmarshal parses a project document of any supported version.
func Unmarshal(b []byte) (*Project, error) {
	version, err := DetectVersion(b)
	if err != nil {
		return nil, err
	}
	switch {
	case version > SchemaVersion:
		return nil, fmt.Errorf("%w: %d > %d", ErrNewerVersion, version, SchemaVersion)
	case version < MinSchemaVersion:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	case version == 2:
		return migrateV2(b)
	}

	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("unable to parse the project: %w", err)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return &p, nil
}
