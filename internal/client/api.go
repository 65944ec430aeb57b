package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lunchdesk/internal/apperrors"
	"lunchdesk/internal/common"
	"lunchdesk/internal/models"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10

	accountStatusMessage = "Your account is not permitted to perform this action. Check with your manager that your account is active."
)

// API is a typed client for the ordering REST surface.
type API struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	log        *zap.Logger
}

// NewAPI creates a client for baseURL. A nil httpClient gets one with the
// default request timeout.
func NewAPI(baseURL string, session *Session, httpClient *http.Client, log *zap.Logger) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		session:    session,
		log:        log.Named("api-client"),
	}
}

func (a *API) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := a.do(ctx, http.MethodGet, "/organizations/"+orgID.String(), nil, nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (a *API) UpdateOrganization(ctx context.Context, orgID uuid.UUID, update *models.OrganizationSettingsUpdate) (*models.Organization, error) {
	var org models.Organization
	if err := a.do(ctx, http.MethodPut, "/organizations/"+orgID.String(), nil, update, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (a *API) ListAddresses(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationAddress, error) {
	var addresses []models.OrganizationAddress
	if err := a.do(ctx, http.MethodGet, "/organizations/address/"+orgID.String(), nil, nil, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (a *API) SubmitMyOrder(ctx context.Context, employeeID uuid.UUID, req *models.SubmitOrderRequest) (*models.SubmitOrderResult, error) {
	var res models.SubmitOrderResult
	if err := a.do(ctx, http.MethodPost, "/corporate-orders/my-order/"+employeeID.String(), nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) GetMyOrder(ctx context.Context, employeeID uuid.UUID) (*models.MyOrder, error) {
	var res models.MyOrder
	if err := a.do(ctx, http.MethodGet, "/corporate-orders/my-order/"+employeeID.String(), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetPendingOrder returns nil without error when the organization has no
// order awaiting approval.
func (a *API) GetPendingOrder(ctx context.Context, managerID uuid.UUID) (*models.AggregatedOrder, error) {
	var order models.AggregatedOrder
	err := a.do(ctx, http.MethodGet, "/corporate-orders/pending/"+managerID.String(), nil, nil, &order)
	if apperrors.Is(err, apperrors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (a *API) ValidateApproval(ctx context.Context, orderID uuid.UUID) (*models.ApprovalValidation, error) {
	var res models.ApprovalValidation
	if err := a.do(ctx, http.MethodPost, "/corporate-orders/validate-approval/"+orderID.String(), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) PaymentStatus(ctx context.Context, orderID, managerID uuid.UUID) (*models.PaymentStatus, error) {
	query := url.Values{"managerId": {managerID.String()}}
	var res models.PaymentStatus
	if err := a.do(ctx, http.MethodGet, "/corporate-orders/payment-status/"+orderID.String(), query, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) Approve(ctx context.Context, orderID uuid.UUID, req *models.ApproveOrderRequest) (*models.PaymentOutcome, error) {
	var res models.PaymentOutcome
	if err := a.do(ctx, http.MethodPost, "/corporate-orders/"+orderID.String()+"/approve", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) Reject(ctx context.Context, orderID uuid.UUID, req *models.RejectOrderRequest) (*models.RejectOrderResult, error) {
	var res models.RejectOrderResult
	if err := a.do(ctx, http.MethodPost, "/corporate-orders/"+orderID.String()+"/reject", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) RejectSubOrder(ctx context.Context, subOrderID uuid.UUID, req *models.RejectOrderRequest) (*models.SubOrder, error) {
	var res models.SubOrder
	if err := a.do(ctx, http.MethodPost, "/corporate-orders/sub-orders/"+subOrderID.String()+"/reject", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *API) BulkReject(ctx context.Context, req *models.BulkRejectRequest) (*models.BulkRejectResult, error) {
	var res models.BulkRejectResult
	if err := a.do(ctx, http.MethodPost, "/corporate-orders/sub-orders/bulk-reject", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// do performs one request and decodes the JSON response into out. Error
// responses are mapped to *apperrors.AppError.
func (a *API) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	token, signedIn := a.session.bearer()
	if !signedIn {
		return apperrors.Unauthenticated("Not signed in")
	}
	if method != http.MethodGet && a.session.IsExpired() {
		return errSessionExpired
	}

	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	a.log.Debug("api request", zap.String("method", method), zap.String("path", path))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnknown, "Could not reach the server. Please try again.")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return a.decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		a.log.Warn("undecodable response", zap.String("path", path), zap.Error(err))
		return apperrors.Wrap(err, apperrors.CodeUnknown, "Unexpected response from the server")
	}
	return nil
}

func (a *API) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	appErr := &apperrors.AppError{Code: apperrors.FromHTTPStatus(resp.StatusCode)}
	var envelope common.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		appErr.Code = apperrors.Code(envelope.Error.Code)
		appErr.Message = envelope.Error.Message
		appErr.Details = envelope.Error.Details
	}
	serverMessage := appErr.Message
	if appErr.Message == "" {
		appErr.Message = http.StatusText(resp.StatusCode)
	}
	appErr.Err = &StatusError{StatusCode: resp.StatusCode}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		a.session.expire()
		appErr.Code = apperrors.CodeUnauthenticated
		appErr.Message = errSessionExpired.Message
	case http.StatusForbidden:
		if serverMessage != "" {
			if appErr.Details == nil {
				appErr.Details = map[string]string{}
			}
			appErr.Details["reason"] = serverMessage
		}
		appErr.Code = apperrors.CodeForbidden
		appErr.Message = accountStatusMessage
	}
	return appErr
}

// StatusError carries the HTTP status of a failed response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.StatusCode)
}

// HTTPStatusOf returns the HTTP status behind err, or 0.
func HTTPStatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
