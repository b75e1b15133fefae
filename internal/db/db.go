package db

import (
	"database/sql" // Transaction options
	"fmt"          // Error wrapping
	"os"           // Directory creation for SQLite
	"path/filepath"
	"time"

	"payment_gateway/internal/config" // Custom import path (Config)

	"gorm.io/driver/mysql"    // MySQL driver for GORM
	"gorm.io/driver/postgres" // Postgres driver for GORM
	"gorm.io/driver/sqlite"   // SQLite driver for GORM
	"gorm.io/gorm"            // GORM ORM library
	"gorm.io/gorm/logger"     // GORM logger
)

// Supported values of DB_DRIVER
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DSN builds the connection string for the configured driver
func DSN(cfg *config.Config) (string, error) {
	switch cfg.DBDriver {
	case DriverMySQL, "":
		// Data Source Name (DSN) for MySQL connection
		return cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true&loc=UTC", nil
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName), nil
	case DriverSQLite:
		return cfg.DBPath, nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

// Open connects to the configured database
func Open(cfg *config.Config) (*gorm.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	gormCfg := &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() }, // Store every timestamp in UTC
	}
	if cfg.IsProd {
		gormCfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	switch cfg.DBDriver {
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), gormCfg)
	case DriverSQLite:
		return OpenSQLite(dsn, gormCfg)
	default:
		return gorm.Open(mysql.Open(dsn), gormCfg)
	}
}

// OpenSQLite opens a SQLite file with WAL and a single writer connection.
func OpenSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	if gormCfg == nil {
		gormCfg = &gorm.Config{}
	}
	if gormCfg.NowFunc == nil {
		gormCfg.NowFunc = func() time.Time { return time.Now().UTC() }
	}
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	// SQLite allows one writer; funnel everything through one connection
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	_, _ = sqlDB.Exec("PRAGMA journal_mode = WAL;")
	return db, nil
}

// SnapshotOptions returns the options for a read-only transaction that sees
// one consistent instant. SQLite's single connection already guarantees that.
func SnapshotOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector.Name() == DriverSQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
