package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/caching"
	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
	"lunchdesk/internal/ordering"
	"lunchdesk/internal/repositories"
)

const maxDeliveryWindowMinutes = 720

// OrganizationService defines the interface for organization settings operations
type OrganizationService interface {
	// Settings loads an organization through the cache. It performs no
	// caller checks and is meant for other services.
	Settings(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	GetSettings(ctx context.Context, caller common.Identity, orgID uuid.UUID) (*models.Organization, error)
	UpdateSettings(ctx context.Context, caller common.Identity, orgID uuid.UUID, update *models.OrganizationSettingsUpdate) (*models.Organization, error)
	ListAddresses(ctx context.Context, caller common.Identity, orgID uuid.UUID) ([]models.OrganizationAddress, error)
}

type organizationService struct {
	store repositories.Store
	cache caching.CacheService
	ttl   time.Duration
	log   *zap.Logger
}

// NewOrganizationService creates a new organization service instance
func NewOrganizationService(store repositories.Store, cache caching.CacheService, ttl time.Duration, log *zap.Logger) OrganizationService {
	return &organizationService{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

func (s *organizationService) Settings(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	cached, err := s.cache.GetOrganization(ctx, orgID)
	if err != nil {
		s.log.Warn("organization cache read failed", zap.String("organization_id", orgID.String()), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	org, err := s.store.Organizations().GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("organization")
		}
		return nil, apperrors.Internal("load organization", err)
	}

	if err := s.cache.SetOrganization(ctx, org, s.ttl); err != nil {
		s.log.Warn("organization cache write failed", zap.String("organization_id", orgID.String()), zap.Error(err))
	}
	return org, nil
}

func (s *organizationService) GetSettings(ctx context.Context, caller common.Identity, orgID uuid.UUID) (*models.Organization, error) {
	if caller.OrganizationID != orgID {
		return nil, apperrors.Forbidden("You do not belong to this organization")
	}
	return s.Settings(ctx, orgID)
}

// UpdateSettings applies the non-nil fields of update. Only managers of the
// organization may change its settings.
func (s *organizationService) UpdateSettings(ctx context.Context, caller common.Identity, orgID uuid.UUID, update *models.OrganizationSettingsUpdate) (*models.Organization, error) {
	if caller.OrganizationID != orgID || !caller.IsManager() {
		return nil, apperrors.Forbidden("Only managers of this organization can change its settings")
	}

	var org *models.Organization
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		current, err := tx.Organizations().GetForUpdate(ctx, orgID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.NotFound("organization")
			}
			return apperrors.Internal("load organization", err)
		}
		if err := applySettingsUpdate(current, update); err != nil {
			return err
		}
		if err := tx.Organizations().UpdateSettings(ctx, current); err != nil {
			return apperrors.Internal("update organization settings", err)
		}
		org = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.DeleteOrganization(ctx, orgID); err != nil {
		s.log.Warn("organization cache invalidation failed", zap.String("organization_id", orgID.String()), zap.Error(err))
	}
	s.log.Info("organization settings updated",
		zap.String("organization_id", orgID.String()),
		zap.String("manager_id", caller.UserID.String()),
		zap.String("order_cutoff_time", org.OrderCutoffTime))
	return org, nil
}

func applySettingsUpdate(org *models.Organization, update *models.OrganizationSettingsUpdate) error {
	if update == nil {
		return apperrors.Validation("body", "settings update is required")
	}
	if update.OrderCutoffTime != nil {
		cutoff, err := ordering.ParseCutoffTime(*update.OrderCutoffTime)
		if err != nil {
			return err
		}
		org.OrderCutoffTime = cutoff.String()
	}
	if update.DeliveryWindowMinutes != nil {
		minutes := *update.DeliveryWindowMinutes
		if minutes <= 0 || minutes > maxDeliveryWindowMinutes {
			return apperrors.Validation("default_delivery_time_window_minutes",
				fmt.Sprintf("delivery window must be between 1 and %d minutes", maxDeliveryWindowMinutes))
		}
		org.DeliveryWindowMinutes = minutes
	}
	if update.AutoApproveEmployees != nil {
		org.AutoApproveEmployees = *update.AutoApproveEmployees
	}
	if update.Timezone != nil {
		if _, err := time.LoadLocation(*update.Timezone); err != nil || *update.Timezone == "" {
			return apperrors.Validation("timezone", fmt.Sprintf("unknown timezone %q", *update.Timezone))
		}
		org.Timezone = *update.Timezone
	}
	return nil
}

func (s *organizationService) ListAddresses(ctx context.Context, caller common.Identity, orgID uuid.UUID) ([]models.OrganizationAddress, error) {
	if caller.OrganizationID != orgID {
		return nil, apperrors.Forbidden("You do not belong to this organization")
	}
	addresses, err := s.store.Addresses().ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, apperrors.Internal("list organization addresses", err)
	}
	return addresses, nil
}
