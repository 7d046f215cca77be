// Package sessions keeps funnel session state between steps and serializes
// concurrent steps on the same session.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

var (
	// ErrNotFound is returned for unknown or expired sessions.
	ErrNotFound = errors.New("session not found")
	// ErrBusy is returned by Lock when another step holds the session.
	ErrBusy = errors.New("session busy")
)

// Default lifetimes.
const (
	DefaultTTL     = 24 * time.Hour
	DefaultLockTTL = 30 * time.Second
)

// Unlock releases a lease taken with Lock. It is safe to call more than once.
type Unlock func()

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
	// Lock takes an exclusive lease on the session for at most ttl.
	Lock(ctx context.Context, id string, ttl time.Duration) (Unlock, error)
}

// NewID returns a fresh session id.
func NewID() string {
	return "ses_" + uuid.NewString()
}
