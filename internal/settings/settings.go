// Package settings persists the user's search preferences.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"news_search/internal/models"
	"news_search/internal/query"
)

// ErrNotFound means nothing was saved yet; callers fall back to defaults.
var ErrNotFound = errors.New("preferences not found")

// Store persists a single set of preferences. Load returns ErrNotFound
// until the first Save.
type Store interface {
	Load(ctx context.Context) (models.Preferences, error)
	Save(ctx context.Context, p models.Preferences) error
}

// Validate trims the subject and checks the order value.
func Validate(p models.Preferences) (models.Preferences, error) {
	p.Subject = strings.TrimSpace(p.Subject)
	if p.Subject == "" {
		return p, errors.New("subject must not be empty")
	}
	if p.OrderBy == "" {
		p.OrderBy = query.DefaultOrderBy
	}
	if !query.ValidOrder(p.OrderBy) {
		return p, fmt.Errorf("%w: %q (want one of %s)", query.ErrInvalidOrder, p.OrderBy, strings.Join(query.OrderByValues, ", "))
	}
	return p, nil
}

// LoadOrDefault returns the saved preferences, or def when none exist.
func LoadOrDefault(ctx context.Context, s Store, def models.Preferences) (models.Preferences, error) {
	p, err := s.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return p, nil
}

// MemoryStore keeps preferences for the life of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs *models.Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (models.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.prefs == nil {
		return models.Preferences{}, ErrNotFound
	}
	return *m.prefs, nil
}

func (m *MemoryStore) Save(_ context.Context, p models.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = &p
	return nil
}
