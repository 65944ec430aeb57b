package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lunchdesk/internal/models"
)

// ErrInsufficientFunds is returned by DebitWallet when the balance does not
// cover the amount. Nothing is debited in that case.
var ErrInsufficientFunds = errors.New("insufficient wallet balance")

type OrganizationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	UpdateSettings(ctx context.Context, org *models.Organization) error
	DebitWallet(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

type organizationRepo struct {
	db DBTX
}

func NewOrganizationRepo(db DBTX) OrganizationRepository {
	return &organizationRepo{db: db}
}

const organizationColumns = `id, name, wallet_balance, order_cutoff_time, default_delivery_time_window,
		auto_approve_employees, timezone, stripe_customer_id, default_payment_method_id, created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(&org.ID, &org.Name, &org.WalletBalance, &org.OrderCutoffTime, &org.DeliveryWindowMinutes,
		&org.AutoApproveEmployees, &org.Timezone, &org.StripeCustomerID, &org.DefaultPaymentMethodID,
		&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return org, nil
}

func (r *organizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	return scanOrganization(r.db.QueryRow(ctx, query, id))
}

func (r *organizationRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1 FOR UPDATE`
	return scanOrganization(r.db.QueryRow(ctx, query, id))
}

func (r *organizationRepo) UpdateSettings(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations
		SET order_cutoff_time = $1, default_delivery_time_window = $2, auto_approve_employees = $3, timezone = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, org.OrderCutoffTime, org.DeliveryWindowMinutes, org.AutoApproveEmployees,
		org.Timezone, org.ID).Scan(&org.UpdatedAt)
	return notFound(err)
}

func (r *organizationRepo) DebitWallet(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE organizations
		SET wallet_balance = wallet_balance - $1, updated_at = NOW()
		WHERE id = $2 AND wallet_balance >= $1
	`
	tag, err := r.db.Exec(ctx, query, amount, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	return nil
}
