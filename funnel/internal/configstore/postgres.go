package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/techview-systems/leadpixel-stack/common/database"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/secrets"
)

// Postgres stores configurations in the tracking_configs table. Access
// tokens are sealed before they are written.
type Postgres struct {
	pool   *pgxpool.Pool
	sealer secrets.Sealer
}

// NewPostgres wraps an open pool. A nil sealer stores tokens as-is.
func NewPostgres(pool *pgxpool.Pool, sealer secrets.Sealer) *Postgres {
	if sealer == nil {
		sealer = secrets.Passthrough{}
	}
	return &Postgres{pool: pool, sealer: sealer}
}

func (p *Postgres) Get(ctx context.Context, operatorID string) (*models.TrackingConfiguration, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT operator_id, pixel_id, access_token, user_name, plans, updated_at
		FROM tracking_configs
		WHERE operator_id = $1
	`

	var (
		cfg       models.TrackingConfiguration
		sealed    string
		plansJSON []byte
	)
	err := p.pool.QueryRow(ctx, query, operatorID).Scan(
		&cfg.OperatorID, &cfg.PixelID, &sealed, &cfg.UserName, &plansJSON, &cfg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking config: %w", err)
	}

	if len(plansJSON) > 0 {
		if err := json.Unmarshal(plansJSON, &cfg.Plans); err != nil {
			return nil, fmt.Errorf("failed to decode plans: %w", err)
		}
	}
	token, err := p.sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}
	cfg.AccessToken = token
	return &cfg, nil
}

func (p *Postgres) Put(ctx context.Context, cfg *models.TrackingConfiguration) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	sealed := ""
	if cfg.AccessToken != "" {
		var err error
		if sealed, err = p.sealer.Seal(cfg.AccessToken); err != nil {
			return fmt.Errorf("failed to seal access token: %w", err)
		}
	}
	plans := cfg.Plans
	if plans == nil {
		plans = []models.Plan{}
	}
	plansJSON, err := json.Marshal(plans)
	if err != nil {
		return fmt.Errorf("failed to encode plans: %w", err)
	}

	query := `
		INSERT INTO tracking_configs (operator_id, pixel_id, access_token, user_name, plans, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (operator_id) DO UPDATE SET
			pixel_id = EXCLUDED.pixel_id,
			access_token = EXCLUDED.access_token,
			user_name = EXCLUDED.user_name,
			plans = EXCLUDED.plans,
			updated_at = NOW()
		RETURNING updated_at
	`
	if err := p.pool.QueryRow(ctx, query,
		cfg.OperatorID, cfg.PixelID, sealed, cfg.UserName, plansJSON,
	).Scan(&cfg.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save tracking config: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, operatorID string) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := p.pool.Exec(ctx, `DELETE FROM tracking_configs WHERE operator_id = $1`, operatorID)
	if err != nil {
		return fmt.Errorf("failed to delete tracking config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
