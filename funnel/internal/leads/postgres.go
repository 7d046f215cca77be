package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/techview-systems/leadpixel-stack/common/database"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

// Postgres stores leads in the leads table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const leadColumns = `id, operator_id, name, email, phone, postal_code, plan_id, plan_name,
	value, source, status, event_id, utm_source, utm_medium, utm_campaign, created_at, updated_at`

func scanLead(row pgx.Row) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(
		&l.ID, &l.OperatorID, &l.Name, &l.Email, &l.Phone, &l.PostalCode, &l.PlanID, &l.PlanName,
		&l.Value, &l.Source, &l.Status, &l.EventID, &l.UTM.Source, &l.UTM.Medium, &l.UTM.Campaign,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *Postgres) Save(ctx context.Context, lead *models.Lead) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	query := `
		INSERT INTO leads (id, operator_id, name, email, phone, postal_code, plan_id, plan_name,
			value, source, status, event_id, utm_source, utm_medium, utm_campaign)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	err := p.pool.QueryRow(ctx, query,
		lead.ID, lead.OperatorID, lead.Name, lead.Email, lead.Phone, lead.PostalCode, lead.PlanID, lead.PlanName,
		lead.Value, lead.Source, lead.Status, lead.EventID, lead.UTM.Source, lead.UTM.Medium, lead.UTM.Campaign,
	).Scan(&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save lead: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, operatorID, leadID string) (*models.Lead, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND ($2 = '' OR operator_id = $2)`
	l, err := scanLead(p.pool.QueryRow(ctx, query, leadID, operatorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

func (p *Postgres) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	filter = normalizeFilter(filter)
	where, args := buildWhere(filter)

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM leads%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		leadColumns, where, len(args)+1, len(args)+2)
	rows, err := p.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	out := make([]models.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan lead: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate leads: %w", err)
	}
	return out, total, nil
}

func buildWhere(f models.LeadFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.OperatorID != "" {
		args = append(args, f.OperatorID)
		clauses = append(clauses, fmt.Sprintf("operator_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone LIKE $%d)", n, n, n))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (p *Postgres) UpdateStatus(ctx context.Context, operatorID, leadID string, status models.LeadStatus) (*models.Lead, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		UPDATE leads SET status = $3, updated_at = NOW()
		WHERE id = $1 AND ($2 = '' OR operator_id = $2)
		RETURNING ` + leadColumns
	l, err := scanLead(p.pool.QueryRow(ctx, query, leadID, operatorID, string(status)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update lead status: %w", err)
	}
	return l, nil
}

func (p *Postgres) Delete(ctx context.Context, operatorID, leadID string) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := p.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1 AND ($2 = '' OR operator_id = $2)`, leadID, operatorID)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
