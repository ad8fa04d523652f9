package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultLibraryFile is the default database of SQLiteStore.
const DefaultLibraryFile = "audiosync.sqlite3"

type projectRecord struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	Name          string `gorm:"index"`
	SchemaVersion int
	AppVersion    string
	SavedAt       time.Time `gorm:"index"`
	Document      []byte
}

func (projectRecord) TableName() string {
	return "projects"
}

// SQLiteStore is a library of projects in a single SQLite database.
type SQLiteStore struct {
	DB *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create directory '%s': %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open the sqlite db '%s': %w", dbPath, err)
	}
	if err := db.AutoMigrate(&projectRecord{}); err != nil {
		return nil, fmt.Errorf("unable to migrate the sqlite db '%s': %w", dbPath, err)
	}
	return &SQLiteStore{DB: db}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, p *Project) error {
	b, err := Marshal(p)
	if err != nil {
		return err
	}
	rec := projectRecord{
		ID:            p.ID.String(),
		Name:          p.Name,
		SchemaVersion: p.SchemaVersion,
		AppVersion:    p.AppVersion,
		SavedAt:       p.SavedAt,
		Document:      b,
	}
	if err := s.DB.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("unable to save project %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id uuid.UUID) (*Project, error) {
	var rec projectRecord
	err := s.DB.WithContext(ctx).First(&rec, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query project %s: %w", id, err)
	}
	return Unmarshal(rec.Document)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	var recs []projectRecord
	err := s.DB.WithContext(ctx).
		Select("id", "name", "app_version", "saved_at").
		Order("saved_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("unable to list the projects: %w", err)
	}
	result := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid project id '%s': %w", rec.ID, err)
		}
		result = append(result, Summary{ID: id, Name: rec.Name, AppVersion: rec.AppVersion, SavedAt: rec.SavedAt})
	}
	return result, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Delete(&projectRecord{}, "id = ?", id.String())
	if res.Error != nil {
		return fmt.Errorf("unable to delete project %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
