// Package database provides GORM connection management for sqlite and postgres.
package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps a GORM instance.
type DB struct {
	GORM *gorm.DB
}

// New opens a database connection. A postgres:// or postgresql:// URL selects
// the postgres driver, anything else is treated as a sqlite file path
// (":memory:" works for tests).
func New(databaseURL string) (*DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		dialector = postgres.Open(databaseURL)
	} else {
		dialector = sqlite.Open(databaseURL)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &DB{GORM: gormDB}, nil
}

// Migrate applies the schema for the given models.
func (db *DB) Migrate(models ...any) error {
	if err := db.GORM.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the underlying sql.DB.
func (db *DB) Close() error {
	sqlDB, err := db.GORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
