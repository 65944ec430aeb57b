package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lunchdesk/internal/models"
)

// Approval is the state written when a corporate order is approved.
type Approval struct {
	ManagerID            uuid.UUID
	ApprovedAt           time.Time
	PaymentMethod        models.PaymentMethod
	PaymentReference     *string
	DeliveryAddressID    uuid.UUID
	DeliveryInstructions *string
	Notes                *string
	TotalAmount          decimal.Decimal
}

// Rejection is the state written when an order or sub-orders are rejected.
type Rejection struct {
	ManagerID  uuid.UUID
	Reason     string
	Notes      *string
	RejectedAt time.Time
}

type CorporateOrderRepository interface {
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.CorporateOrder, error)
	GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (*models.CorporateOrder, error)
	// EnsurePending returns the organization's PENDING_APPROVAL order for
	// the delivery date, creating it when none exists.
	EnsurePending(ctx context.Context, orgID uuid.UUID, deliveryDate time.Time) (*models.CorporateOrder, error)
	// NextPending returns the earliest PENDING_APPROVAL order delivering on
	// or after from.
	NextPending(ctx context.Context, orgID uuid.UUID, from time.Time) (*models.CorporateOrder, error)
	UpdateTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
	// MarkApproved and MarkRejected only move orders that are still
	// PENDING_APPROVAL and report false otherwise.
	MarkApproved(ctx context.Context, id uuid.UUID, a Approval) (bool, error)
	MarkRejected(ctx context.Context, id uuid.UUID, r Rejection) (bool, error)
	// ExpireStale cancels PENDING_APPROVAL orders delivering before cutoff.
	ExpireStale(ctx context.Context, before time.Time) ([]uuid.UUID, error)
}

type corporateOrderRepo struct {
	db DBTX
}

func NewCorporateOrderRepo(db DBTX) CorporateOrderRepository {
	return &corporateOrderRepo{db: db}
}

const corporateOrderColumns = `id, organization_id, delivery_date, status, total_amount, approved_by, approved_at,
		rejected_by, rejected_at, rejection_reason, notes, payment_method, payment_reference,
		delivery_address_id, delivery_instructions, created_at, updated_at`

func scanCorporateOrder(row interface{ Scan(...any) error }) (*models.CorporateOrder, error) {
	o := &models.CorporateOrder{}
	var status string
	var method *string
	err := row.Scan(&o.ID, &o.OrganizationID, &o.DeliveryDate, &status, &o.TotalAmount, &o.ApprovedBy, &o.ApprovedAt,
		&o.RejectedBy, &o.RejectedAt, &o.RejectionReason, &o.Notes, &method, &o.PaymentReference,
		&o.DeliveryAddressID, &o.DeliveryInstructions, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if o.Status, err = models.ParseAggregatedOrderStatus(status); err != nil {
		return nil, err
	}
	if method != nil {
		pm, err := models.ParsePaymentMethod(*method)
		if err != nil {
			return nil, err
		}
		o.PaymentMethod = &pm
	}
	return o, nil
}

func (r *corporateOrderRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.CorporateOrder, error) {
	query := `SELECT ` + corporateOrderColumns + ` FROM corporate_orders WHERE organization_id = $1 AND id = $2`
	return scanCorporateOrder(r.db.QueryRow(ctx, query, orgID, id))
}

func (r *corporateOrderRepo) GetForUpdate(ctx context.Context, orgID, id uuid.UUID) (*models.CorporateOrder, error) {
	query := `SELECT ` + corporateOrderColumns + ` FROM corporate_orders WHERE organization_id = $1 AND id = $2 FOR UPDATE`
	return scanCorporateOrder(r.db.QueryRow(ctx, query, orgID, id))
}

func (r *corporateOrderRepo) EnsurePending(ctx context.Context, orgID uuid.UUID, deliveryDate time.Time) (*models.CorporateOrder, error) {
	query := `
		INSERT INTO corporate_orders (id, organization_id, delivery_date, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, 'PENDING_APPROVAL', 0, NOW(), NOW())
		ON CONFLICT (organization_id, delivery_date) WHERE status = 'PENDING_APPROVAL'
		DO UPDATE SET updated_at = corporate_orders.updated_at
		RETURNING ` + corporateOrderColumns
	return scanCorporateOrder(r.db.QueryRow(ctx, query, uuid.New(), orgID, deliveryDate))
}

func (r *corporateOrderRepo) NextPending(ctx context.Context, orgID uuid.UUID, from time.Time) (*models.CorporateOrder, error) {
	query := `
		SELECT ` + corporateOrderColumns + `
		FROM corporate_orders
		WHERE organization_id = $1 AND status = 'PENDING_APPROVAL' AND delivery_date >= $2
		ORDER BY delivery_date ASC
		LIMIT 1
	`
	return scanCorporateOrder(r.db.QueryRow(ctx, query, orgID, from))
}

func (r *corporateOrderRepo) UpdateTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	query := `UPDATE corporate_orders SET total_amount = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, total, id)
	return err
}

func (r *corporateOrderRepo) MarkApproved(ctx context.Context, id uuid.UUID, a Approval) (bool, error) {
	query := `
		UPDATE corporate_orders
		SET status = 'APPROVED', approved_by = $1, approved_at = $2, payment_method = $3, payment_reference = $4,
			delivery_address_id = $5, delivery_instructions = $6, notes = $7, total_amount = $8, updated_at = NOW()
		WHERE id = $9 AND status = 'PENDING_APPROVAL'
	`
	tag, err := r.db.Exec(ctx, query, a.ManagerID, a.ApprovedAt, string(a.PaymentMethod), a.PaymentReference,
		a.DeliveryAddressID, a.DeliveryInstructions, a.Notes, a.TotalAmount, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *corporateOrderRepo) MarkRejected(ctx context.Context, id uuid.UUID, rej Rejection) (bool, error) {
	query := `
		UPDATE corporate_orders
		SET status = 'REJECTED', rejected_by = $1, rejected_at = $2, rejection_reason = $3, notes = $4, updated_at = NOW()
		WHERE id = $5 AND status = 'PENDING_APPROVAL'
	`
	tag, err := r.db.Exec(ctx, query, rej.ManagerID, rej.RejectedAt, rej.Reason, rej.Notes, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *corporateOrderRepo) ExpireStale(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE corporate_orders
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE status = 'PENDING_APPROVAL' AND delivery_date < $1
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
