package db

import (
	"fmt"                         // Error formatting
	"fund_ledger/internal/config" // Custom package for configuration
	"time"                        // Slow query threshold

	"github.com/glebarez/sqlite" // Pure Go SQLite driver for GORM
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM logger
)

// MySQLDSN builds the Data Source Name for the configured MySQL server.
// clientFoundRows makes UPDATE report matched rows, which the repository relies on.
func MySQLDSN(cfg *config.Config) string {
	return cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName +
		"?parseTime=true&clientFoundRows=true"
}

// Open connects to the database selected by cfg.DBDriver
func Open(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "mysql", "":
		return gorm.Open(mysql.Open(MySQLDSN(cfg)), gormConfig())
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", cfg.DBDriver)
	}
}

// OpenSQLite opens a SQLite database. A single connection keeps ":memory:"
// databases shared across the pool and serializes writers.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// slowQueryThreshold is the duration past which gorm logs a query as slow
const slowQueryThreshold = 200 * time.Millisecond

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,                                   // Map driver errors to gorm.ErrDuplicatedKey etc.
		Logger:         newGormLogger(logrus.StandardLogger()), // Only slow queries and errors
	}
}

// newGormLogger writes slow queries and query errors to w. Lookups that match
// no row are expected (name checks, logins) and are not logged.
func newGormLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             slowQueryThreshold, // Slow query cutoff
		LogLevel:                  logger.Warn,        // Slow queries and errors
		IgnoreRecordNotFoundError: true,               // Misses are not failures
		Colorful:                  false,              // Plain text for logrus
	})
}
