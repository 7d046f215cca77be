package configstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

func sampleConfig(operatorID string) *models.TrackingConfiguration {
	return &models.TrackingConfiguration{
		OperatorID:  operatorID,
		PixelID:     "1234567890",
		AccessToken: "EAAB-token",
		UserName:    "Prime TV",
		Plans:       []models.Plan{{ID: "promo", Name: "Promo (1 Tela)", Price: 19.9, Screens: 1}},
	}
}

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "op-1")
	assert.ErrorIs(t, err, ErrNotFound)

	cfg := sampleConfig("op-1")
	require.NoError(t, m.Put(ctx, cfg))
	assert.False(t, cfg.UpdatedAt.IsZero())

	got, err := m.Get(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "EAAB-token", got.AccessToken)
	assert.Equal(t, "Prime TV", got.UserName)

	require.NoError(t, m.Delete(ctx, "op-1"))
	assert.ErrorIs(t, m.Delete(ctx, "op-1"), ErrNotFound)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	cfg := sampleConfig("op-1")
	require.NoError(t, m.Put(ctx, cfg))

	cfg.Plans[0].Price = 0
	got, _ := m.Get(ctx, "op-1")
	got.PixelID = "changed"

	again, _ := m.Get(ctx, "op-1")
	assert.Equal(t, 19.9, again.Plans[0].Price)
	assert.Equal(t, "1234567890", again.PixelID)
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (*models.TrackingConfiguration, error) {
	return nil, f.err
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, sampleConfig("active")))
	require.NoError(t, m.Put(ctx, &models.TrackingConfiguration{OperatorID: "plans-only", UserName: "No Pixel"}))

	tests := []struct {
		name     string
		store    Store
		operator string
		wantCfg  bool
		wantErr  bool
	}{
		{"active", m, "active", true, false},
		{"missing", m, "ghost", false, false},
		{"inactive", m, "plans-only", false, false},
		{"nil store", nil, "active", false, false},
		{"backend failure", failingStore{err: errors.New("db down")}, "active", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Lookup(ctx, tt.store, tt.operator)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantCfg, cfg != nil)
		})
	}
}
