package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/events"
	"lunchdesk/internal/models"
	"lunchdesk/internal/ordering"
	"lunchdesk/internal/repositories"
)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// refreshOrderTotal recomputes the stored total of a corporate order from its
// live sub-orders.
func refreshOrderTotal(ctx context.Context, tx repositories.Store, orderID uuid.UUID, pricing ordering.Pricing) (decimal.Decimal, error) {
	subOrders, err := tx.SubOrders().ListByCorporateOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, apperrors.Internal("list sub-orders", err)
	}
	total := ordering.Aggregate(subOrders, pricing).TotalAmount
	if err := tx.CorporateOrders().UpdateTotal(ctx, orderID, total); err != nil {
		return decimal.Zero, apperrors.Internal("update order total", err)
	}
	return total, nil
}

func publishEvent(ctx context.Context, publisher events.Publisher, log *zap.Logger, event models.OrderEvent) {
	if err := publisher.Publish(ctx, event); err != nil {
		log.Error("failed to publish order event",
			zap.String("event_type", string(event.Type)),
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err))
	}
}
