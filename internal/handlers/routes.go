package handlers

import (
	"github.com/labstack/echo/v4"
)

// Routes bundles the handlers mounted by RegisterRoutes.
type Routes struct {
	Health        *HealthHandlers
	Organizations *OrganizationHandlers
	Orders        *OrderHandlers
	Approvals     *ApprovalHandlers

	// Auth authenticates every non-health route.
	Auth echo.MiddlewareFunc
	// Manager restricts a route to managers.
	Manager echo.MiddlewareFunc
	// Audit records mutating requests. Optional.
	Audit echo.MiddlewareFunc
}

func RegisterRoutes(e *echo.Echo, r Routes) {
	e.GET("/health", r.Health.LivenessCheck)
	e.GET("/health/ready", r.Health.ReadinessCheck)

	protected := e.Group("", r.Auth)
	if r.Audit != nil {
		protected.Use(r.Audit)
	}

	protected.GET("/organizations/:orgId", r.Organizations.GetSettings)
	protected.PUT("/organizations/:orgId", r.Organizations.UpdateSettings, r.Manager)
	protected.GET("/organizations/address/:orgId", r.Organizations.ListAddresses, r.Manager)

	orders := protected.Group("/corporate-orders")
	orders.POST("/my-order/:employeeId", r.Orders.SubmitMyOrder)
	orders.GET("/my-order/:employeeId", r.Orders.GetMyOrder)

	orders.GET("/pending/:managerId", r.Approvals.GetPending, r.Manager)
	orders.POST("/validate-approval/:orderId", r.Approvals.ValidateApproval, r.Manager)
	orders.GET("/payment-status/:orderId", r.Approvals.PaymentStatus, r.Manager)
	orders.POST("/:orderId/approve", r.Approvals.Approve, r.Manager)
	orders.POST("/:orderId/reject", r.Approvals.Reject, r.Manager)
	orders.POST("/sub-orders/bulk-reject", r.Approvals.BulkReject, r.Manager)
	orders.POST("/sub-orders/:subOrderId/reject", r.Approvals.RejectSubOrder, r.Manager)
}
