package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
	"lunchdesk/internal/services"
)

// OrganizationHandlers handles HTTP requests for organization settings
type OrganizationHandlers struct {
	orgService services.OrganizationService
}

func NewOrganizationHandlers(orgService services.OrganizationService) *OrganizationHandlers {
	return &OrganizationHandlers{orgService: orgService}
}

// GetSettings handles GET /organizations/:orgId
func (h *OrganizationHandlers) GetSettings(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	orgID, err := common.ParamUUID(c, "orgId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	org, err := h.orgService.GetSettings(c.Request().Context(), id, orgID)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, org)
}

// UpdateSettings handles PUT /organizations/:orgId
func (h *OrganizationHandlers) UpdateSettings(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	orgID, err := common.ParamUUID(c, "orgId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	var req models.OrganizationSettingsUpdate
	if err := bindBody(c, &req); err != nil {
		return common.SendAppError(c, err)
	}

	org, err := h.orgService.UpdateSettings(c.Request().Context(), id, orgID, &req)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, org)
}

// ListAddresses handles GET /organizations/address/:orgId
func (h *OrganizationHandlers) ListAddresses(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return common.SendAppError(c, err)
	}
	orgID, err := common.ParamUUID(c, "orgId")
	if err != nil {
		return common.SendAppError(c, err)
	}

	addresses, err := h.orgService.ListAddresses(c.Request().Context(), id, orgID)
	if err != nil {
		return common.SendAppError(c, err)
	}
	return c.JSON(http.StatusOK, addresses)
}
