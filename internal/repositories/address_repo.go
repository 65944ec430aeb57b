package repositories

import (
	"context"

	"github.com/google/uuid"

	"lunchdesk/internal/models"
)

type AddressRepository interface {
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationAddress, error)
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.OrganizationAddress, error)
}

type addressRepo struct {
	db DBTX
}

func NewAddressRepo(db DBTX) AddressRepository {
	return &addressRepo{db: db}
}

const addressColumns = `id, organization_id, label, line1, line2, city, postcode, is_default, created_at`

// ListByOrganization returns the default address first, then by label.
func (r *addressRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationAddress, error) {
	query := `SELECT ` + addressColumns + ` FROM organization_addresses WHERE organization_id = $1 ORDER BY is_default DESC, label ASC`
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	addresses := []models.OrganizationAddress{}
	for rows.Next() {
		var a models.OrganizationAddress
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.Label, &a.Line1, &a.Line2, &a.City, &a.Postcode, &a.IsDefault, &a.CreatedAt); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

func (r *addressRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.OrganizationAddress, error) {
	query := `SELECT ` + addressColumns + ` FROM organization_addresses WHERE organization_id = $1 AND id = $2`
	a := &models.OrganizationAddress{}
	err := r.db.QueryRow(ctx, query, orgID, id).
		Scan(&a.ID, &a.OrganizationID, &a.Label, &a.Line1, &a.Line2, &a.City, &a.Postcode, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}
