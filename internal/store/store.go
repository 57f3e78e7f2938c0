package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

// PersistenceError wraps a failed read or write against the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Store persists per-user template settings and generation history.
// Every call is scoped to an opaque user id.
type Store interface {
	// GetSettings returns the user's settings, creating the defaults on
	// first access.
	GetSettings(ctx context.Context, userID string) (*models.Settings, error)
	// SaveSettings merges patch into the stored settings. Last writer wins.
	SaveSettings(ctx context.Context, userID string, patch models.SettingsPatch) (*models.Settings, error)

	AddHistory(ctx context.Context, item *models.HistoryItem) error
	// ListHistory returns the user's items newest first, without their
	// stored student records.
	ListHistory(ctx context.Context, userID string) ([]models.HistoryItem, error)
	GetHistory(ctx context.Context, userID string, id uuid.UUID) (*models.HistoryItem, error)
	DeleteHistory(ctx context.Context, userID string, id uuid.UUID) error
	ClearHistory(ctx context.Context, userID string) (int64, error)
	// PruneHistory removes every user's items created before cutoff.
	PruneHistory(ctx context.Context, cutoff time.Time) (int64, error)

	Close(ctx context.Context) error
}

// Open builds the store selected by cfg.Driver. db is used by the sql
// driver and may be nil otherwise.
func Open(ctx context.Context, cfg config.StoreConfig, db *gorm.DB, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "sql":
		if db == nil {
			return nil, errors.New("sql store needs a database connection")
		}
		return NewGormStore(db), nil
	case "mongo":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, log)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
}

func newHistoryID(item *models.HistoryItem) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
}
