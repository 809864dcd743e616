package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SQLiteDatabase struct {
	db *gorm.DB
}

func NewSQLiteDatabase() *SQLiteDatabase {
	return &SQLiteDatabase{}
}

// Init opens (creating if needed) the journal at path. ":memory:" is accepted.
func (s *SQLiteDatabase) Init(path string) error {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return fmt.Errorf("failed to access connection pool: %w", dbErr)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s.db = db

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logutils.Log.WithField("path", path).Info("Database initialized successfully")
	return nil
}

func (s *SQLiteDatabase) runMigrations() error {
	if err := s.db.AutoMigrate(&Delivery{}, &DeliveredFile{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
