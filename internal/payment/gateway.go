// internal/payment/gateway.go
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"readreward/internal/auth"
	"readreward/internal/domain"
	"readreward/internal/metrics"
	"readreward/internal/repository"
	"readreward/internal/util"
	"readreward/internal/validation"
)

const maxTxIDLen = 25

// Watcher starts the bounded status watch of a freshly created order.
type Watcher interface {
	Watch(ctx context.Context, externalID string)
}

// Merchant identifies the receiver in locally built payloads.
type Merchant struct {
	Key  string
	Name string
	City string
}

// Gateway turns a checkout into a pending payment order.
type Gateway interface {
	// Checkout prices plan server-side and creates the order for principal.
	Checkout(ctx context.Context, principal auth.Principal, plan domain.Plan, customer domain.Customer) (*domain.CheckoutResult, error)
	CreateOrder(ctx context.Context, plan domain.Plan, amount decimal.Decimal, customer domain.Customer) (*domain.CheckoutResult, error)
}

type gateway struct {
	dbExecutor repository.DBExecutor
	orderRepo  repository.PaymentOrderRepository
	provider   Provider
	watcher    Watcher
	prices     map[domain.Plan]decimal.Decimal
	merchant   Merchant
	now        func() time.Time
	logger     *slog.Logger
}

// NewGateway creates a new Gateway. watcher may be nil.
func NewGateway(
	dbExecutor repository.DBExecutor,
	orderRepo repository.PaymentOrderRepository,
	provider Provider,
	watcher Watcher,
	prices map[domain.Plan]decimal.Decimal,
	merchant Merchant,
	logger *slog.Logger,
) Gateway {
	return &gateway{
		dbExecutor: dbExecutor,
		orderRepo:  orderRepo,
		provider:   provider,
		watcher:    watcher,
		prices:     prices,
		merchant:   merchant,
		now:        time.Now,
		logger:     logger,
	}
}

func (g *gateway) Checkout(ctx context.Context, principal auth.Principal, plan domain.Plan, customer domain.Customer) (*domain.CheckoutResult, error) {
	if !principal.Valid() {
		return nil, util.ErrUnauthorized
	}
	price, ok := g.prices[plan]
	if !ok {
		return nil, fmt.Errorf("%w: plan %q is not for sale", util.ErrInvalidInput, plan)
	}
	customer.UserID = principal.UserID
	return g.CreateOrder(ctx, plan, price, customer)
}

// CreateOrder validates the payer, opens the charge and stores a pending order.
// Nothing is persisted when the provider fails.
func (g *gateway) CreateOrder(ctx context.Context, plan domain.Plan, amount decimal.Decimal, customer domain.Customer) (*domain.CheckoutResult, error) {
	if err := validation.ValidateDocument(customer.NationalID); err != nil {
		metrics.RecordPaymentOrder("invalid_document")
		return nil, err
	}
	if customer.UserID <= 0 || !plan.Valid() || !amount.IsPositive() || strings.TrimSpace(customer.Name) == "" {
		return nil, util.ErrInvalidInput
	}

	createdAt := g.now().UTC()
	reference := domain.BuildInternalReference(customer.UserID, plan, createdAt)
	req := ChargeRequest{
		Amount:      validation.FormatAmount(amount),
		Reference:   reference,
		Description: fmt.Sprintf("Plano %s", plan),
		Customer: ChargeCustomer{
			Name:     strings.TrimSpace(customer.Name),
			Email:    strings.TrimSpace(customer.Email),
			Document: validation.NormalizeDocument(customer.NationalID),
		},
	}

	charge, err := g.provider.CreateCharge(ctx, req, uuid.NewString())
	if err != nil {
		metrics.RecordPaymentOrder("provider_error")
		g.logger.ErrorContext(ctx, "payment order creation failed", "user_id", customer.UserID, "plan", plan, "error", err)
		return nil, fmt.Errorf("%w: could not create charge", util.ErrPaymentProvider)
	}

	payload, err := g.payloadFor(charge, amount)
	if err != nil {
		metrics.RecordPaymentOrder("provider_error")
		g.logger.ErrorContext(ctx, "provider returned an unusable payload", "external_id", charge.ID, "error", err)
		return nil, fmt.Errorf("%w: unusable payment payload", util.ErrPaymentProvider)
	}

	order := &domain.PaymentOrder{
		ExternalID:        charge.ID,
		InternalReference: reference,
		UserID:            customer.UserID,
		Plan:              plan,
		Amount:            amount,
		Status:            domain.PaymentStatusPending,
		Payload:           payload,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
	if err := g.orderRepo.CreateOrder(ctx, g.dbExecutor, order); err != nil {
		metrics.RecordPaymentOrder("orphaned")
		g.logger.ErrorContext(ctx, "charge created but order not stored",
			"user_id", order.UserID,
			"plan", order.Plan,
			"external_id", order.ExternalID,
			"internal_reference", order.InternalReference,
			"amount", validation.FormatAmount(amount),
			"error", err,
		)
		return nil, fmt.Errorf("create order: %w", err)
	}
	metrics.RecordPaymentOrder("created")

	g.logger.InfoContext(ctx, "payment order created",
		"user_id", order.UserID,
		"external_id", order.ExternalID,
		"internal_reference", order.InternalReference,
		"amount", validation.FormatAmount(amount),
	)

	if g.watcher != nil {
		g.watcher.Watch(context.WithoutCancel(ctx), order.ExternalID)
	}

	return &domain.CheckoutResult{
		ExternalID: order.ExternalID,
		Amount:     order.Amount,
		Payload:    order.Payload,
		Status:     order.Status,
	}, nil
}

// payloadFor verifies the provider's payload, or builds one when it sent none.
func (g *gateway) payloadFor(charge *Charge, amount decimal.Decimal) (string, error) {
	if charge.Payload == "" {
		return validation.EncodePix(validation.PixPayload{
			Key:          g.merchant.Key,
			MerchantName: g.merchant.Name,
			MerchantCity: g.merchant.City,
			Amount:       amount,
			TxID:         txIDFrom(charge.ID),
		})
	}

	decoded, err := validation.DecodePix(charge.Payload)
	if err != nil {
		return "", err
	}
	if !decoded.Amount.Equal(amount) {
		return "", fmt.Errorf("%w: payload amount %s, order amount %s",
			util.ErrInvalidPayload, validation.FormatAmount(decoded.Amount), validation.FormatAmount(amount))
	}
	return charge.Payload, nil
}

// txIDFrom keeps the alphanumeric characters of id, up to the field limit.
func txIDFrom(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == maxTxIDLen {
				break
			}
		}
	}
	return b.String()
}
