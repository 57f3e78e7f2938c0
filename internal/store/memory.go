package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/models"
)

// MemoryStore keeps everything in process memory. Used for local runs and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]models.Settings
	history  map[uuid.UUID]models.HistoryItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings: make(map[string]models.Settings),
		history:  make(map[uuid.UUID]models.HistoryItem),
	}
}

func (m *MemoryStore) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.loadSettings(userID)
	return &s, nil
}

func (m *MemoryStore) SaveSettings(ctx context.Context, userID string, patch models.SettingsPatch) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.loadSettings(userID)
	patch.Apply(&s)
	s.UpdatedAt = time.Now().UTC()
	m.settings[userID] = s
	return &s, nil
}

// loadSettings must be called with mu held.
func (m *MemoryStore) loadSettings(userID string) models.Settings {
	s, ok := m.settings[userID]
	if !ok {
		s = models.DefaultSettings(userID)
		s.CreatedAt = time.Now().UTC()
		s.UpdatedAt = s.CreatedAt
		m.settings[userID] = s
	}
	return s
}

func (m *MemoryStore) AddHistory(ctx context.Context, item *models.HistoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	newHistoryID(item)
	m.history[item.ID] = *item
	return nil
}

func (m *MemoryStore) ListHistory(ctx context.Context, userID string) ([]models.HistoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]models.HistoryItem, 0)
	for _, h := range m.history {
		if h.UserID == userID {
			h.Students = nil
			items = append(items, h)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (m *MemoryStore) GetHistory(ctx context.Context, userID string, id uuid.UUID) (*models.HistoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.history[id]
	if !ok || h.UserID != userID {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (m *MemoryStore) DeleteHistory(ctx context.Context, userID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[id]
	if !ok || h.UserID != userID {
		return ErrNotFound
	}
	delete(m.history, id)
	return nil
}

func (m *MemoryStore) ClearHistory(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, h := range m.history {
		if h.UserID == userID {
			delete(m.history, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) PruneHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, h := range m.history {
		if h.CreatedAt.Before(cutoff) {
			delete(m.history, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close(ctx context.Context) error { return nil }
