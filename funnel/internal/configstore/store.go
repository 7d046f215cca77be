// Package configstore looks up operators' tracking configurations.
package configstore

import (
	"context"
	"errors"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

// ErrNotFound is returned when an operator has no configuration.
var ErrNotFound = errors.New("tracking configuration not found")

// Store is the read side used while a funnel step runs.
type Store interface {
	Get(ctx context.Context, operatorID string) (*models.TrackingConfiguration, error)
}

// Repository adds the operator console's write side.
type Repository interface {
	Store
	Put(ctx context.Context, cfg *models.TrackingConfiguration) error
	Delete(ctx context.Context, operatorID string) error
}

// Lookup returns the configuration when it is usable for server-side
// emission. Missing and inactive configurations both report nil, nil.
func Lookup(ctx context.Context, s Store, operatorID string) (*models.TrackingConfiguration, error) {
	if s == nil {
		return nil, nil
	}
	cfg, err := s.Get(ctx, operatorID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !cfg.Active() {
		return nil, nil
	}
	return cfg, nil
}

func clone(cfg *models.TrackingConfiguration) *models.TrackingConfiguration {
	if cfg == nil {
		return nil
	}
	out := *cfg
	if cfg.Plans != nil {
		out.Plans = append([]models.Plan(nil), cfg.Plans...)
	}
	return &out
}
