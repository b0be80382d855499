package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/internal/logging"
)

var DB *gorm.DB

func init() {
	// timestamps are compared as text by sqlite, keep them in one zone
	gorm.NowFunc = func() time.Time {
		return time.Now().UTC()
	}
}

// GetDB returns the global connection (used by tests)
func GetDB() *gorm.DB {
	return DB
}

// InitDB opens the configured database and sets the global DB.
func InitDB(cfg config.DatabaseConfig) error {
	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open("sqlite3", cfg.SQLitePath)
	default:
		db, err = gorm.Open("postgres", cfg.DSN())
	}
	if err != nil {
		return fmt.Errorf("failed to connect to the database: %v", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite allows one writer, transactions are serialized on a single connection
		db.DB().SetMaxOpenConns(1)
		db.Exec("PRAGMA foreign_keys = ON")
	}

	logger := slog.Default()
	db.SetLogger(logging.GormLogger{Logger: logger})
	db.LogMode(logger.Enabled(context.Background(), slog.LevelDebug))

	DB = db
	slog.Info("Successfully connected to the database", "driver", cfg.Driver)
	return nil
}

// CloseDB closes the global connection.
func CloseDB() error {
	if DB == nil {
		return nil
	}

	err := DB.Close()
	if err != nil {
		return fmt.Errorf("failed to close the database connection: %v", err)
	}

	slog.Info("Database connection closed")
	return nil
}

// InitDBWithConnection injects an open connection (used by tests)
func InitDBWithConnection(db *gorm.DB) {
	DB = db
}
