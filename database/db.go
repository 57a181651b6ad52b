// Package database owns the gorm connection, schema migration and seed data.
package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taskboard/taskboard/config"
	"github.com/taskboard/taskboard/database/model"
)

var db *gorm.DB

var defaultStatuses = []string{"todo", "in progress", "done"}

func initModels() error {
	// One call so gorm orders tables by their foreign keys.
	return db.AutoMigrate(
		&model.User{},
		&model.Status{},
		&model.Task{},
		&model.RefreshToken{},
		&model.OutboundEmail{},
		&model.AuditLog{},
	)
}

func initStatuses() error {
	empty, err := isTableEmpty(&model.Status{})
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}
	statuses := make([]model.Status, 0, len(defaultStatuses))
	for _, name := range defaultStatuses {
		statuses = append(statuses, model.Status{Name: name})
	}
	return db.Create(&statuses).Error
}

func isTableEmpty(m any) (bool, error) {
	var count int64
	err := db.Model(m).Count(&count).Error
	return count == 0, err
}

func sqliteDSN(path string) string {
	params := []string{"_foreign_keys=on", "_busy_timeout=5000"}
	if path != ":memory:" {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
	}
	return path + "?" + strings.Join(params, "&")
}

// InitDB opens the configured database, migrates the schema and seeds the
// default statuses.
func InitDB(cfg *config.DatabaseConfig) error {
	if err := cfg.ValidateConfig(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectoryExists(); err != nil {
		return err
	}

	var gormLogger logger.Interface
	if config.IsDebug() {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}

	var dialector gorm.Dialector
	if cfg.IsPostgreSQL() {
		dialector = postgres.Open(cfg.GetDSN())
	} else {
		dialector = sqlite.Open(sqliteDSN(cfg.SQLite.Path))
	}

	var err error
	db, err = gorm.Open(dialector, c)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if cfg.IsSQLite() {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if cfg.SQLite.Path == ":memory:" {
			// every pooled connection would otherwise see its own empty database
			sqlDB.SetMaxOpenConns(1)
		}
		if _, err := sqlDB.Exec("PRAGMA temp_store = MEMORY;"); err != nil {
			return err
		}
	}

	if err := initModels(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return initStatuses()
}

// InitMemoryDB opens a fresh in-memory SQLite database; used by tests.
func InitMemoryDB() error {
	cfg := config.GetDefaultDatabaseConfig()
	cfg.Type = config.DatabaseTypeSQLite
	cfg.SQLite.Path = ":memory:"
	if db != nil {
		_ = CloseDB()
	}
	return InitDB(cfg)
}

func CloseDB() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports unique constraint violations from either driver.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
