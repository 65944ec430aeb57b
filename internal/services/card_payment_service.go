package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
)

// ChargeRequest describes a card capture for one corporate order. AttemptID
// identifies one approval attempt; a retried attempt must use a new one so a
// refunded or cancelled intent is never replayed.
type ChargeRequest struct {
	OrderID         uuid.UUID
	AttemptID       uuid.UUID
	OrganizationID  uuid.UUID
	Amount          decimal.Decimal
	PaymentMethodID string
	CustomerID      *string
}

type ChargeResult struct {
	Reference string
	Status    string
}

// CardPaymentService captures approval totals on a tokenized card.
type CardPaymentService interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, reference string) error
}

type stripeCardPaymentService struct {
	api      *client.API
	currency string
	log      *zap.Logger
}

// NewStripeCardPaymentService creates a card payment service backed by Stripe
func NewStripeCardPaymentService(secretKey, currency string, log *zap.Logger) CardPaymentService {
	return newStripeCardPaymentService(secretKey, nil, currency, log)
}

func newStripeCardPaymentService(secretKey string, backends *stripe.Backends, currency string, log *zap.Logger) *stripeCardPaymentService {
	sc := &client.API{}
	sc.Init(secretKey, backends)
	return &stripeCardPaymentService{
		api:      sc,
		currency: strings.ToLower(currency),
		log:      log,
	}
}

// ToMinorUnits converts an amount to the smallest currency unit, rounding
// half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func chargeIdempotencyKey(orderID, attemptID uuid.UUID) string {
	return "corporate-order-approve-" + orderID.String() + "-" + attemptID.String()
}

func (s *stripeCardPaymentService) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	amount := ToMinorUnits(req.Amount)
	if amount <= 0 {
		return nil, apperrors.Validation("total_amount", "amount to charge must be positive")
	}
	if req.AttemptID == uuid.Nil {
		req.AttemptID = uuid.New()
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(s.currency),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		Description:   stripe.String(fmt.Sprintf("Corporate order %s", req.OrderID)),
	}
	if req.CustomerID != nil && *req.CustomerID != "" {
		params.Customer = stripe.String(*req.CustomerID)
	}
	params.Context = ctx
	params.SetIdempotencyKey(chargeIdempotencyKey(req.OrderID, req.AttemptID))
	params.AddMetadata("corporate_order_id", req.OrderID.String())
	params.AddMetadata("organization_id", req.OrganizationID.String())

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, stripePaymentError(err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		s.log.Warn("card payment not completed",
			zap.String("payment_intent", pi.ID),
			zap.String("status", string(pi.Status)),
			zap.String("order_id", req.OrderID.String()))
		cancel := &stripe.PaymentIntentCancelParams{}
		cancel.Context = ctx
		if _, cerr := s.api.PaymentIntents.Cancel(pi.ID, cancel); cerr != nil {
			s.log.Error("failed to cancel incomplete payment intent", zap.String("payment_intent", pi.ID), zap.Error(cerr))
		}
		return nil, apperrors.Payment(fmt.Sprintf("Card payment was not completed (status %s)", pi.Status), nil)
	}

	s.log.Info("card payment captured",
		zap.String("payment_intent", pi.ID),
		zap.Int64("amount", amount),
		zap.String("order_id", req.OrderID.String()),
		zap.String("attempt_id", req.AttemptID.String()))

	return &ChargeResult{Reference: pi.ID, Status: string(pi.Status)}, nil
}

func (s *stripeCardPaymentService) Refund(ctx context.Context, reference string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(reference)}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + reference)
	if _, err := s.api.Refunds.New(params); err != nil {
		return stripePaymentError(err)
	}
	return nil
}

func stripePaymentError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return apperrors.Payment(stripeErr.Msg, err)
	}
	return apperrors.Payment("Card payment failed", err)
}

type disabledCardPaymentService struct{}

// NewDisabledCardPaymentService is used when no Stripe key is configured.
func NewDisabledCardPaymentService() CardPaymentService {
	return disabledCardPaymentService{}
}

func (disabledCardPaymentService) Charge(context.Context, ChargeRequest) (*ChargeResult, error) {
	return nil, apperrors.Payment("Card payments are not configured", nil)
}

func (disabledCardPaymentService) Refund(context.Context, string) error {
	return apperrors.Payment("Card payments are not configured", nil)
}
