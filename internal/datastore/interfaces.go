// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/errors"
	"github.com/soundsentry/screamdet-go/internal/logging"
)

// Interface abstracts the underlying database implementation and defines
// the operations the pipeline needs. It also satisfies the alert
// dispatcher's delivery ledger.
type Interface interface {
	Open() error
	Close() error
	Save(event *Event, attempts []DispatchAttempt) error
	AttachOutcomes(eventID, outcomes string, attempts []DispatchAttempt) error
	Get(id string) (Event, error)
	GetAllEvents() ([]Event, error)
	GetRecentEvents(limit int) ([]Event, error)
	CountScreamsSince(sessionID string, since time.Time) (int64, error)
	WasDelivered(eventID, channel string) (bool, error)
	MarkDelivered(eventID, channel string) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// New creates a datastore based on the output configuration. Returns nil
// when no persistence backend is enabled; callers fall back to in-memory
// operation.
func New(settings *conf.Settings) Interface {
	if settings.Output.SQLite.Enabled {
		return &SQLiteStore{Settings: settings}
	}
	return nil
}

func (ds *DataStore) log() *slog.Logger {
	if ds.logger == nil {
		ds.logger = logging.ForService("datastore")
		if ds.logger == nil {
			ds.logger = slog.Default().With("service", "datastore")
		}
	}
	return ds.logger
}

// Save stores an event and any dispatch attempts as a single transaction.
func (ds *DataStore) Save(event *Event, attempts []DispatchAttempt) error {
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return errors.New(tx.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "begin_transaction").
			Build()
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(event).Error; err != nil {
		tx.Rollback()
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_event").
			Build()
	}
	for i := range attempts {
		attempts[i].EventID = event.ID
		if err := tx.Create(&attempts[i]).Error; err != nil {
			tx.Rollback()
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "save_dispatch_attempt").
				Build()
		}
	}

	if err := tx.Commit().Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "commit_transaction").
			Build()
	}
	return nil
}

// AttachOutcomes writes the final dispatch outcome set onto an event,
// exactly once. Used when dispatch completes after the event row was
// already written.
func (ds *DataStore) AttachOutcomes(eventID, outcomes string, attempts []DispatchAttempt) error {
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return errors.New(tx.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	if err := tx.Model(&Event{}).Where("id = ? AND outcomes = ''", eventID).
		Update("outcomes", outcomes).Error; err != nil {
		tx.Rollback()
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "attach_outcomes").
			Build()
	}
	for i := range attempts {
		attempts[i].EventID = eventID
		if err := tx.Create(&attempts[i]).Error; err != nil {
			tx.Rollback()
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "save_dispatch_attempt").
				Build()
		}
	}
	return tx.Commit().Error
}

// Get retrieves an event by its id.
func (ds *DataStore) Get(id string) (Event, error) {
	var event Event
	if err := ds.DB.First(&event, "id = ?", id).Error; err != nil {
		return Event{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("event_id", id).
			Build()
	}
	return event, nil
}

// GetAllEvents retrieves all events ordered by detection time.
func (ds *DataStore) GetAllEvents() ([]Event, error) {
	var events []Event
	if err := ds.DB.Order("timestamp").Find(&events).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return events, nil
}

// GetRecentEvents retrieves the most recent events, newest first. Used for
// the audit trail and threshold tuning queries.
func (ds *DataStore) GetRecentEvents(limit int) ([]Event, error) {
	var events []Event
	if err := ds.DB.Order("timestamp desc").Limit(limit).Find(&events).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return events, nil
}

// CountScreamsSince counts unsuppressed positive detections for a session
// within the escalation window.
func (ds *DataStore) CountScreamsSince(sessionID string, since time.Time) (int64, error) {
	var count int64
	err := ds.DB.Model(&Event{}).
		Where("session_id = ? AND is_scream = ? AND debounced = ? AND timestamp >= ?",
			sessionID, true, false, since).
		Count(&count).Error
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count, nil
}

// WasDelivered reports whether a successful dispatch attempt exists for the
// event and channel.
func (ds *DataStore) WasDelivered(eventID, channel string) (bool, error) {
	var count int64
	err := ds.DB.Model(&DispatchAttempt{}).
		Where("event_id = ? AND channel = ? AND succeeded = ?", eventID, channel, true).
		Count(&count).Error
	if err != nil {
		return false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return count > 0, nil
}

// MarkDelivered records a successful delivery for the event and channel.
// The unique index makes concurrent duplicate marks harmless.
func (ds *DataStore) MarkDelivered(eventID, channel string) error {
	attempt := DispatchAttempt{
		EventID:   eventID,
		Channel:   channel,
		Attempted: true,
		Succeeded: true,
		CreatedAt: time.Now(),
	}
	if err := ds.DB.Where("event_id = ? AND channel = ?", eventID, channel).
		FirstOrCreate(&attempt).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// Close closes the database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	ds.log().Debug("closing database connection")
	return sqlDB.Close()
}
