package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/models"
	"gorm.io/gorm"
)

// GormStore keeps settings and history in the SQL database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	settings, err := firstOrCreateSettings(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, wrap("get settings", err)
	}
	return settings, nil
}

func (s *GormStore) SaveSettings(ctx context.Context, userID string, patch models.SettingsPatch) (*models.Settings, error) {
	var saved *models.Settings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settings, err := firstOrCreateSettings(tx, userID)
		if err != nil {
			return err
		}
		patch.Apply(settings)
		if err := tx.Save(settings).Error; err != nil {
			return err
		}
		saved = settings
		return nil
	})
	if err != nil {
		return nil, wrap("save settings", err)
	}
	return saved, nil
}

func firstOrCreateSettings(tx *gorm.DB, userID string) (*models.Settings, error) {
	var settings models.Settings
	err := tx.Where("user_id = ?", userID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	settings = models.DefaultSettings(userID)
	if err := tx.Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *GormStore) AddHistory(ctx context.Context, item *models.HistoryItem) error {
	newHistoryID(item)
	return wrap("add history", s.db.WithContext(ctx).Create(item).Error)
}

func (s *GormStore) ListHistory(ctx context.Context, userID string) ([]models.HistoryItem, error) {
	items := make([]models.HistoryItem, 0)
	err := s.db.WithContext(ctx).
		Omit("students").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, wrap("list history", err)
	}
	return items, nil
}

func (s *GormStore) GetHistory(ctx context.Context, userID string, id uuid.UUID) (*models.HistoryItem, error) {
	var item models.HistoryItem
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get history", err)
	}
	return &item, nil
}

func (s *GormStore) DeleteHistory(ctx context.Context, userID string, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.HistoryItem{})
	if result.Error != nil {
		return wrap("delete history", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ClearHistory(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.HistoryItem{})
	if result.Error != nil {
		return 0, wrap("clear history", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) PruneHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.HistoryItem{})
	if result.Error != nil {
		return 0, wrap("prune history", result.Error)
	}
	return result.RowsAffected, nil
}

// Close leaves the shared connection open; its owner closes it.
func (s *GormStore) Close(ctx context.Context) error { return nil }
