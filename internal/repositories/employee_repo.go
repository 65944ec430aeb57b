package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lunchdesk/internal/models"
)

type EmployeeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	GetJobTitle(ctx context.Context, id uuid.UUID) (*models.JobTitle, error)
	DebitBudget(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	ResetDailyBudgets(ctx context.Context) (int64, error)
}

type employeeRepo struct {
	db DBTX
}

func NewEmployeeRepo(db DBTX) EmployeeRepository {
	return &employeeRepo{db: db}
}

func (r *employeeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	query := `
		SELECT id, organization_id, job_title_id, first_name, last_name, email, role,
			daily_budget_limit, daily_budget_remaining, status, created_at, updated_at
		FROM employees
		WHERE id = $1
	`
	e := &models.Employee{}
	err := r.db.QueryRow(ctx, query, id).Scan(&e.ID, &e.OrganizationID, &e.JobTitleID, &e.FirstName, &e.LastName,
		&e.Email, &e.Role, &e.DailyBudgetLimit, &e.DailyBudgetRemaining, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (r *employeeRepo) GetJobTitle(ctx context.Context, id uuid.UUID) (*models.JobTitle, error) {
	query := `
		SELECT id, organization_id, name, daily_budget_limit, monthly_budget_limit, approval_threshold
		FROM job_titles
		WHERE id = $1
	`
	jt := &models.JobTitle{}
	err := r.db.QueryRow(ctx, query, id).Scan(&jt.ID, &jt.OrganizationID, &jt.Name, &jt.DailyBudgetLimit,
		&jt.MonthlyBudgetLimit, &jt.ApprovalThreshold)
	if err != nil {
		return nil, notFound(err)
	}
	return jt, nil
}

// DebitBudget lowers the remaining daily budget, never below zero.
func (r *employeeRepo) DebitBudget(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE employees
		SET daily_budget_remaining = GREATEST(daily_budget_remaining - $1, 0), updated_at = NOW()
		WHERE id = $2
	`
	tag, err := r.db.Exec(ctx, query, amount, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *employeeRepo) ResetDailyBudgets(ctx context.Context) (int64, error) {
	query := `
		UPDATE employees
		SET daily_budget_remaining = daily_budget_limit, updated_at = NOW()
		WHERE status = 'active' AND daily_budget_remaining <> daily_budget_limit
	`
	tag, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
