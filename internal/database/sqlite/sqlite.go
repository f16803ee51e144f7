// Package sqlite provides a single-file report store on top of gorm and the pure Go SQLite driver.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	driver "github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"

	"github.com/kozaktomas/lost-trace/internal/database"
)

// BackendName identifies this backend in the database registry.
const BackendName = "sqlite"

// Store wraps a gorm connection to a SQLite file.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database file at path and migrates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	gormLogger := gormlog.New(
		log.StandardLogger(),
		gormlog.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  gormlog.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(driver.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sqlite handle: %w", err)
	}
	// SQLite allows one writer; a single connection serializes writes.
	sqlDB.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the reports table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&reportRow{}); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sqlite handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing sqlite database: %w", err)
	}
	return nil
}

// Initialize opens the database file and registers it as the active report store.
func Initialize(ctx context.Context, path string) (*Store, error) {
	s, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	log.WithField("path", path).Info("SQLite report store ready")

	database.RegisterBackend(BackendName, func() database.ReportWriter {
		return NewReportRepository(s)
	})
	return s, nil
}
