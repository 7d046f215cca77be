package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

// Memory is an in-process Repository.
type Memory struct {
	mu    sync.RWMutex
	leads map[string]*models.Lead
	now   func() time.Time
}

// NewMemory returns an empty Memory repository.
func NewMemory() *Memory {
	return &Memory{leads: make(map[string]*models.Lead), now: time.Now}
}

func (m *Memory) Save(ctx context.Context, lead *models.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leads[lead.ID]; ok {
		return ErrDuplicate
	}
	for _, l := range m.leads {
		if lead.EventID != "" && l.EventID == lead.EventID {
			return ErrDuplicate
		}
	}

	stored := *lead
	if stored.Status == "" {
		stored.Status = models.LeadStatusNew
	}
	now := m.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.leads[lead.ID] = &stored

	lead.Status, lead.CreatedAt, lead.UpdatedAt = stored.Status, stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (m *Memory) Get(ctx context.Context, operatorID, leadID string) (*models.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leads[leadID]
	if !ok || (operatorID != "" && l.OperatorID != operatorID) {
		return nil, ErrNotFound
	}
	out := *l
	return &out, nil
}

func (m *Memory) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	filter = normalizeFilter(filter)

	m.mu.RLock()
	all := make([]models.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		if matches(l, filter) {
			all = append(all, *l)
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if filter.Offset >= total {
		return []models.Lead{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

func (m *Memory) UpdateStatus(ctx context.Context, operatorID, leadID string, status models.LeadStatus) (*models.Lead, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[leadID]
	if !ok || (operatorID != "" && l.OperatorID != operatorID) {
		return nil, ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = m.now().UTC()
	out := *l
	return &out, nil
}

func (m *Memory) Delete(ctx context.Context, operatorID, leadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[leadID]
	if !ok || (operatorID != "" && l.OperatorID != operatorID) {
		return ErrNotFound
	}
	delete(m.leads, leadID)
	return nil
}
