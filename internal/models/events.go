package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	EventSubOrderSubmitted      OrderEventType = "sub_order.submitted"
	EventSubOrderRejected       OrderEventType = "sub_order.rejected"
	EventCorporateOrderApproved OrderEventType = "corporate_order.approved"
	EventCorporateOrderRejected OrderEventType = "corporate_order.rejected"
)

// OrderEvent is published after a committed state change.
type OrderEvent struct {
	ID             uuid.UUID       `json:"id"`
	Type           OrderEventType  `json:"type"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	SubOrderIDs    []uuid.UUID     `json:"sub_order_ids,omitempty"`
	ActorID        uuid.UUID       `json:"actor_id"`
	Reason         string          `json:"reason,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func NewOrderEvent(eventType OrderEventType, orgID, orderID, actorID uuid.UUID) OrderEvent {
	return OrderEvent{
		ID:             uuid.New(),
		Type:           eventType,
		OrganizationID: orgID,
		OrderID:        orderID,
		ActorID:        actorID,
		OccurredAt:     time.Now().UTC(),
	}
}
