package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgres"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type     DatabaseType
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// SQLiteConfig holds SQLite specific configuration
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// PostgresConfig holds PostgreSQL specific configuration
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	SSLMode  string `toml:"ssl_mode"`
	TimeZone string `toml:"time_zone"`
}

type dbFile struct {
	Type     string         `toml:"type"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
}

// GetDSN returns the data source name for the database
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case DatabaseTypePostgreSQL:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			c.Postgres.Host,
			c.Postgres.Username,
			c.Postgres.Password,
			c.Postgres.Database,
			c.Postgres.Port,
			c.Postgres.SSLMode,
			c.Postgres.TimeZone,
		)
	default:
		return c.SQLite.Path
	}
}

// GetDefaultDatabaseConfig returns default database configuration
func GetDefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: getDefaultSQLitePath(),
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "taskboard",
			Username: "taskboard",
			SSLMode:  "disable",
			TimeZone: "UTC",
		},
	}
}

func getDefaultSQLitePath() string {
	if IsDebug() {
		return "db/taskboard.db"
	}
	return "/var/lib/taskboard/taskboard.db"
}

// LoadDatabaseConfig layers the config file and TASKBOARD_DB_* variables over the defaults.
func LoadDatabaseConfig() (*DatabaseConfig, error) {
	fc, err := readFileConfig(GetConfigFile())
	if err != nil {
		return nil, err
	}
	c := GetDefaultDatabaseConfig()
	c.applyFile(fc.Database)
	c.applyEnv()
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DatabaseConfig) applyFile(f dbFile) {
	if f.Type != "" {
		c.Type = DatabaseType(f.Type)
	}
	setString(&c.SQLite.Path, f.SQLite.Path)
	setString(&c.Postgres.Host, f.Postgres.Host)
	setInt(&c.Postgres.Port, f.Postgres.Port)
	setString(&c.Postgres.Database, f.Postgres.Database)
	setString(&c.Postgres.Username, f.Postgres.Username)
	setString(&c.Postgres.Password, f.Postgres.Password)
	setString(&c.Postgres.SSLMode, f.Postgres.SSLMode)
	setString(&c.Postgres.TimeZone, f.Postgres.TimeZone)
}

func (c *DatabaseConfig) applyEnv() {
	if v := getEnv("DB_TYPE"); v != "" {
		c.Type = DatabaseType(v)
	}
	setString(&c.SQLite.Path, getEnv("DB_PATH"))
	setString(&c.Postgres.Host, getEnv("DB_HOST"))
	c.Postgres.Port = getEnvInt("DB_PORT", c.Postgres.Port)
	setString(&c.Postgres.Database, getEnv("DB_NAME"))
	setString(&c.Postgres.Username, getEnv("DB_USER"))
	setString(&c.Postgres.Password, getEnv("DB_PASSWORD"))
	setString(&c.Postgres.SSLMode, getEnv("DB_SSLMODE"))
}

// ValidateConfig validates the database configuration
func (c *DatabaseConfig) ValidateConfig() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLite path cannot be empty")
		}
	case DatabaseTypePostgreSQL:
		if c.Postgres.Host == "" {
			return fmt.Errorf("PostgreSQL host cannot be empty")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("PostgreSQL database name cannot be empty")
		}
		if c.Postgres.Username == "" {
			return fmt.Errorf("PostgreSQL username cannot be empty")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			return fmt.Errorf("PostgreSQL port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// IsPostgreSQL returns true if the database type is PostgreSQL
func (c *DatabaseConfig) IsPostgreSQL() bool {
	return c.Type == DatabaseTypePostgreSQL
}

// IsSQLite returns true if the database type is SQLite
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Type == DatabaseTypeSQLite
}

// EnsureDirectoryExists ensures the directory for SQLite database exists
func (c *DatabaseConfig) EnsureDirectoryExists() error {
	if c.Type == DatabaseTypeSQLite && c.SQLite.Path != ":memory:" {
		dir := filepath.Dir(c.SQLite.Path)
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
