package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lunchdesk/internal/models"
)

type SubOrderRepository interface {
	// FindActive returns the employee's non-cancelled sub-order for the
	// delivery date. With forUpdate the row stays locked until the
	// surrounding transaction ends.
	FindActive(ctx context.Context, employeeID uuid.UUID, deliveryDate time.Time, forUpdate bool) (*models.SubOrder, error)
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.SubOrder, error)
	Create(ctx context.Context, so *models.SubOrder) error
	// Replace overwrites the line items of an existing sub-order, moves it
	// to corporateOrderID and resets it to PENDING.
	Replace(ctx context.Context, so *models.SubOrder) error
	ListByCorporateOrder(ctx context.Context, corporateOrderID uuid.UUID) ([]models.SubOrder, error)
	ListByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]models.SubOrder, error)
	ConfirmPending(ctx context.Context, corporateOrderID uuid.UUID) (int64, error)
	RejectPending(ctx context.Context, corporateOrderID uuid.UUID, rej Rejection) ([]uuid.UUID, error)
	// Reject rejects the given sub-orders of orgID that are still PENDING
	// and returns the ids actually moved.
	Reject(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID, rej Rejection) ([]uuid.UUID, error)
	CancelPendingByOrders(ctx context.Context, corporateOrderIDs []uuid.UUID) (int64, error)
}

type subOrderRepo struct {
	db DBTX
}

func NewSubOrderRepo(db DBTX) SubOrderRepository {
	return &subOrderRepo{db: db}
}

const subOrderColumns = `so.id, so.corporate_order_id, so.employee_id, so.organization_id, so.delivery_date, so.status,
		so.restaurant_orders, so.total_amount, so.rejected_by, so.rejection_reason, so.notes, so.created_at, so.updated_at`

func scanSubOrder(row interface{ Scan(...any) error }, extra ...any) (*models.SubOrder, error) {
	so := &models.SubOrder{}
	var status string
	var lines []byte
	dest := []any{&so.ID, &so.CorporateOrderID, &so.EmployeeID, &so.OrganizationID, &so.DeliveryDate, &status,
		&lines, &so.TotalAmount, &so.RejectedBy, &so.RejectionReason, &so.Notes, &so.CreatedAt, &so.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, notFound(err)
	}
	var err error
	if so.Status, err = models.ParseSubOrderStatus(status); err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &so.RestaurantOrders); err != nil {
			return nil, fmt.Errorf("decode restaurant orders of %s: %w", so.ID, err)
		}
	}
	return so, nil
}

func (r *subOrderRepo) FindActive(ctx context.Context, employeeID uuid.UUID, deliveryDate time.Time, forUpdate bool) (*models.SubOrder, error) {
	query := `
		SELECT ` + subOrderColumns + `
		FROM sub_orders so
		WHERE so.employee_id = $1 AND so.delivery_date = $2 AND so.status <> 'CANCELLED'`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanSubOrder(r.db.QueryRow(ctx, query, employeeID, deliveryDate))
}

func (r *subOrderRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.SubOrder, error) {
	query := `SELECT ` + subOrderColumns + ` FROM sub_orders so WHERE so.organization_id = $1 AND so.id = $2`
	return scanSubOrder(r.db.QueryRow(ctx, query, orgID, id))
}

func (r *subOrderRepo) Create(ctx context.Context, so *models.SubOrder) error {
	lines, err := json.Marshal(so.RestaurantOrders)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO sub_orders (id, corporate_order_id, employee_id, organization_id, delivery_date, status, restaurant_orders, total_amount, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query, so.ID, so.CorporateOrderID, so.EmployeeID, so.OrganizationID, so.DeliveryDate,
		string(so.Status), lines, so.TotalAmount, so.Notes).Scan(&so.CreatedAt, &so.UpdatedAt)
	return duplicate(err)
}

func (r *subOrderRepo) Replace(ctx context.Context, so *models.SubOrder) error {
	lines, err := json.Marshal(so.RestaurantOrders)
	if err != nil {
		return err
	}
	query := `
		UPDATE sub_orders
		SET corporate_order_id = $1, status = 'PENDING', restaurant_orders = $2, total_amount = $3,
			rejected_by = NULL, rejection_reason = NULL, updated_at = NOW()
		WHERE id = $4 AND status IN ('PENDING', 'REJECTED')
		RETURNING updated_at
	`
	err = r.db.QueryRow(ctx, query, so.CorporateOrderID, lines, so.TotalAmount, so.ID).Scan(&so.UpdatedAt)
	if err != nil {
		return notFound(err)
	}
	so.Status = models.SubOrderPending
	so.RejectedBy = nil
	so.RejectionReason = nil
	return nil
}

// ListByCorporateOrder joins employee names and job titles for the manager
// view.
func (r *subOrderRepo) ListByCorporateOrder(ctx context.Context, corporateOrderID uuid.UUID) ([]models.SubOrder, error) {
	query := `
		SELECT ` + subOrderColumns + `,
			TRIM(e.first_name || ' ' || e.last_name), COALESCE(jt.name, '')
		FROM sub_orders so
		JOIN employees e ON e.id = so.employee_id
		LEFT JOIN job_titles jt ON jt.id = e.job_title_id
		WHERE so.corporate_order_id = $1
		ORDER BY so.created_at ASC
	`
	rows, err := r.db.Query(ctx, query, corporateOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subOrders := []models.SubOrder{}
	for rows.Next() {
		var name, title string
		so, err := scanSubOrder(rows, &name, &title)
		if err != nil {
			return nil, err
		}
		so.EmployeeName = name
		so.JobTitle = title
		subOrders = append(subOrders, *so)
	}
	return subOrders, rows.Err()
}

func (r *subOrderRepo) ListByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]models.SubOrder, error) {
	query := `SELECT ` + subOrderColumns + ` FROM sub_orders so WHERE so.organization_id = $1 AND so.id = ANY($2)`
	rows, err := r.db.Query(ctx, query, orgID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subOrders := []models.SubOrder{}
	for rows.Next() {
		so, err := scanSubOrder(rows)
		if err != nil {
			return nil, err
		}
		subOrders = append(subOrders, *so)
	}
	return subOrders, rows.Err()
}

func (r *subOrderRepo) ConfirmPending(ctx context.Context, corporateOrderID uuid.UUID) (int64, error) {
	query := `
		UPDATE sub_orders
		SET status = 'CONFIRMED', updated_at = NOW()
		WHERE corporate_order_id = $1 AND status = 'PENDING'
	`
	tag, err := r.db.Exec(ctx, query, corporateOrderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *subOrderRepo) RejectPending(ctx context.Context, corporateOrderID uuid.UUID, rej Rejection) ([]uuid.UUID, error) {
	query := `
		UPDATE sub_orders
		SET status = 'REJECTED', rejected_by = $1, rejection_reason = $2, notes = COALESCE($3, notes), updated_at = NOW()
		WHERE corporate_order_id = $4 AND status = 'PENDING'
		RETURNING id
	`
	return r.collectIDs(ctx, query, rej.ManagerID, rej.Reason, rej.Notes, corporateOrderID)
}

func (r *subOrderRepo) Reject(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID, rej Rejection) ([]uuid.UUID, error) {
	query := `
		UPDATE sub_orders
		SET status = 'REJECTED', rejected_by = $1, rejection_reason = $2, notes = COALESCE($3, notes), updated_at = NOW()
		WHERE organization_id = $4 AND id = ANY($5) AND status = 'PENDING'
		RETURNING id
	`
	return r.collectIDs(ctx, query, rej.ManagerID, rej.Reason, rej.Notes, orgID, ids)
}

func (r *subOrderRepo) CancelPendingByOrders(ctx context.Context, corporateOrderIDs []uuid.UUID) (int64, error) {
	if len(corporateOrderIDs) == 0 {
		return 0, nil
	}
	query := `
		UPDATE sub_orders
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE corporate_order_id = ANY($1) AND status = 'PENDING'
	`
	tag, err := r.db.Exec(ctx, query, corporateOrderIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *subOrderRepo) collectIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
