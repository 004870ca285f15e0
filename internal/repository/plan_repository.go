package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/imagine-it/storefront/internal/models"
)

// PlanRepository stores the credit packs offered for sale.
type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const selectPlan = `SELECT id, title, COALESCE(description, ''), currency, price_minor_units, credits, is_active, created_at, updated_at FROM pricing_plans`

func scanPlan(row rowScanner) (*models.Plan, error) {
	p := new(models.Plan)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Currency, &p.PriceMinorUnits, &p.Credits, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	query := selectPlan + ` ORDER BY id`
	if activeOnly {
		query = selectPlan + ` WHERE is_active = 1 ORDER BY id`
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return collect(rows, scanPlan)
}

// GetDefault returns the oldest active plan.
func (r *PlanRepository) GetDefault(ctx context.Context) (*models.Plan, error) {
	plan, err := scanPlan(r.db.QueryRowContext(ctx, selectPlan+` WHERE is_active = 1 ORDER BY id LIMIT 1`))
	if err != nil {
		return nil, lookupErr("default plan", err)
	}
	return plan, nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	plan, err := scanPlan(r.db.QueryRowContext(ctx, selectPlan+` WHERE id = ?`, id))
	if err != nil {
		return nil, lookupErr("plan by id", err)
	}
	return plan, nil
}

func (r *PlanRepository) Create(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO pricing_plans (title, description, currency, price_minor_units, credits, is_active) VALUES (?, NULLIF(?, ''), ?, ?, ?, ?)`,
		plan.Title, plan.Description, plan.Currency, plan.PriceMinorUnits, plan.Credits, plan.IsActive)
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}
	id, err := insertedID(res)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *PlanRepository) Update(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pricing_plans SET title = ?, description = NULLIF(?, ''), currency = ?, price_minor_units = ?, credits = ?, is_active = ?, updated_at = NOW() WHERE id = ?`,
		plan.Title, plan.Description, plan.Currency, plan.PriceMinorUnits, plan.Credits, plan.IsActive, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("update plan %d: %w", plan.ID, err)
	}
	return r.GetByID(ctx, plan.ID)
}

func (r *PlanRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pricing_plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plan %d: %w", id, err)
	}
	return requireRow(res, ErrNotFound)
}
