// Package leads persists completed funnel signups.
package leads

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

var (
	// ErrNotFound is returned when a lead does not exist for the operator.
	ErrNotFound = errors.New("lead not found")
	// ErrDuplicate is returned when a lead id or event id is reused.
	ErrDuplicate = errors.New("lead already exists")
	// ErrInvalidStatus is returned for statuses outside new|contacted|converted.
	ErrInvalidStatus = errors.New("invalid lead status")
)

// Sink receives leads once the purchase event cycle has finished.
type Sink interface {
	Save(ctx context.Context, lead *models.Lead) error
}

// Repository is the operator console's view of leads.
type Repository interface {
	Sink
	Get(ctx context.Context, operatorID, leadID string) (*models.Lead, error)
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error)
	UpdateStatus(ctx context.Context, operatorID, leadID string, status models.LeadStatus) (*models.Lead, error)
	Delete(ctx context.Context, operatorID, leadID string) error
}

// NewID returns a lead identifier.
func NewID() string {
	return "lead_" + uuid.NewString()
}

// DefaultLimit and MaxLimit bound List page sizes.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

func normalizeFilter(f models.LeadFilter) models.LeadFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func matches(l *models.Lead, f models.LeadFilter) bool {
	if f.OperatorID != "" && l.OperatorID != f.OperatorID {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(l.Name), q) ||
		strings.Contains(strings.ToLower(l.Email), q) ||
		strings.Contains(l.Phone, f.Search)
}
