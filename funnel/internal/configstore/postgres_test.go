package configstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/techview-systems/leadpixel-stack/common/database"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/secrets"
)

// setupTestDatabase starts a PostgreSQL testcontainer and applies migrations.
func setupTestDatabase(t *testing.T, sealer secrets.Sealer) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("leadpixel_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	_, _, err = database.Migrate("file://../../migrations", connStr)
	require.NoError(t, err)

	pool, err := database.Connect(ctx, connStr, database.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewPostgres(pool, sealer)
}

func TestPostgres_CRUD(t *testing.T) {
	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	sealer, err := secrets.New(key)
	require.NoError(t, err)

	repo := setupTestDatabase(t, sealer)
	ctx := context.Background()

	_, err = repo.Get(ctx, "op-1")
	assert.ErrorIs(t, err, ErrNotFound)

	cfg := sampleConfig("op-1")
	require.NoError(t, repo.Put(ctx, cfg))
	assert.False(t, cfg.UpdatedAt.IsZero())

	var stored string
	require.NoError(t, repo.pool.QueryRow(ctx, `SELECT access_token FROM tracking_configs WHERE operator_id = $1`, "op-1").Scan(&stored))
	assert.NotEqual(t, "EAAB-token", stored)

	got, err := repo.Get(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "EAAB-token", got.AccessToken)
	assert.Equal(t, []models.Plan{{ID: "promo", Name: "Promo (1 Tela)", Price: 19.9, Screens: 1}}, got.Plans)

	cfg.UserName = "Prime TV Plus"
	cfg.Plans = nil
	require.NoError(t, repo.Put(ctx, cfg))
	got, err = repo.Get(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "Prime TV Plus", got.UserName)
	assert.Empty(t, got.Plans)

	require.NoError(t, repo.Delete(ctx, "op-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "op-1"), ErrNotFound)
}

func TestPostgres_EmptyToken(t *testing.T) {
	repo := setupTestDatabase(t, nil)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, &models.TrackingConfiguration{OperatorID: "op-2", UserName: "Plans Only"}))
	got, err := repo.Get(ctx, "op-2")
	require.NoError(t, err)
	assert.False(t, got.Active())
	assert.Equal(t, "Plans Only", got.UserName)
}
