// internal/api/handler/payment.go
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"readreward/internal/auth"
	"readreward/internal/domain"
	"readreward/internal/payment"
	"readreward/internal/reconciliation"
	"readreward/internal/util"
)

// OrderStatusReader returns an order to its owner, checking the provider when
// it is still pending.
type OrderStatusReader interface {
	OrderStatus(ctx context.Context, principal auth.Principal, externalID string) (*domain.PaymentOrder, error)
}

// NotificationSubmitter hands a provider callback off for reconciliation.
type NotificationSubmitter interface {
	Submit(ctx context.Context, n reconciliation.Notification) <-chan struct{}
}

// PaymentHandler handles plan checkout, order status and provider callbacks.
type PaymentHandler struct {
	responder
	gateway       payment.Gateway
	orders        OrderStatusReader
	notifications NotificationSubmitter
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(gateway payment.Gateway, orders OrderStatusReader, notifications NotificationSubmitter, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		responder:     responder{logger: logger},
		gateway:       gateway,
		orders:        orders,
		notifications: notifications,
	}
}

// CheckoutRequest represents the request body for a plan purchase.
type CheckoutRequest struct {
	Plan       string `json:"plan" validate:"omitempty,oneof=paid"`
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"omitempty,email"`
	NationalID string `json:"national_id" validate:"required"`
}

// OrderStatusResponse is what a polling client sees.
type OrderStatusResponse struct {
	ExternalID string               `json:"external_id"`
	Status     domain.PaymentStatus `json:"status"`
	Plan       domain.Plan          `json:"plan"`
	Amount     string               `json:"amount"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// Checkout opens a payment order for the caller.
// POST /payments/checkout
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	plan := domain.PlanPaid
	if req.Plan != "" {
		plan = domain.Plan(req.Plan)
	}

	result, err := h.gateway.Checkout(r.Context(), p, plan, domain.Customer{
		Name:       req.Name,
		Email:      req.Email,
		NationalID: req.NationalID,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, result)
}

// GetOrderStatus returns the caller's order status.
// GET /payments/{externalID}/status
func (h *PaymentHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	externalID := strings.TrimSpace(chi.URLParam(r, "externalID"))
	if externalID == "" {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	order, err := h.orders.OrderStatus(r.Context(), p, externalID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, OrderStatusResponse{
		ExternalID: order.ExternalID,
		Status:     order.Status,
		Plan:       order.Plan,
		Amount:     order.Amount.StringFixed(2),
		UpdatedAt:  order.UpdatedAt,
	})
}

// Webhook acknowledges a provider callback with 200, whatever its content.
// The notification is applied off the request.
// POST /webhooks/payments
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.WarnContext(r.Context(), "unreadable payment notification", "error", err)
		h.ack(w)
		return
	}

	var n reconciliation.Notification
	if err := json.Unmarshal(body, &n); err != nil || strings.TrimSpace(n.ExternalID) == "" {
		h.logger.WarnContext(r.Context(), "malformed payment notification ignored", "bytes", len(body))
		h.ack(w)
		return
	}
	n.ReceivedAt = time.Now().UTC()
	n.Tries = 0

	h.notifications.Submit(r.Context(), n)
	h.ack(w)
}

func (h *PaymentHandler) ack(w http.ResponseWriter) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
