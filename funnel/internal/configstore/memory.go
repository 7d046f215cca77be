package configstore

import (
	"context"
	"sync"
	"time"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

// Memory is an in-process Repository for development and tests.
type Memory struct {
	mu      sync.RWMutex
	configs map[string]*models.TrackingConfiguration
	now     func() time.Time
}

// NewMemory returns an empty Memory repository.
func NewMemory() *Memory {
	return &Memory{configs: make(map[string]*models.TrackingConfiguration), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, operatorID string) (*models.TrackingConfiguration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[operatorID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(cfg), nil
}

func (m *Memory) Put(ctx context.Context, cfg *models.TrackingConfiguration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := clone(cfg)
	stored.UpdatedAt = m.now().UTC()
	cfg.UpdatedAt = stored.UpdatedAt

	m.mu.Lock()
	m.configs[cfg.OperatorID] = stored
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, operatorID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[operatorID]; !ok {
		return ErrNotFound
	}
	delete(m.configs, operatorID)
	return nil
}
