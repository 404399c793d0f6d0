package datastore

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/errors"
)

// SQLiteStore implements Interface on a SQLite database.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return errors.Newf("output.sqlite.path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	gormLogger := logger.New(
		gormLogWriter{},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open_sqlite").
			Build()
	}

	if err := db.AutoMigrate(&Event{}, &DispatchAttempt{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Build()
	}

	store.DB = db
	return nil
}

// gormLogWriter routes GORM log output to the structured logger.
type gormLogWriter struct{}

func (gormLogWriter) Printf(format string, args ...any) {
	// gorm formats its own messages, keep them as a single attribute
	logPrintf(format, args...)
}
