// internal/payment/provider.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"readreward/internal/domain"
	"readreward/internal/util"
)

const providerTimeout = 10 * time.Second

// ChargeRequest is the body sent to the provider to open an instant-payment charge.
type ChargeRequest struct {
	Amount      string         `json:"amount"`
	Reference   string         `json:"reference"`
	Description string         `json:"description"`
	Customer    ChargeCustomer `json:"customer"`
}

// ChargeCustomer identifies the payer to the provider.
type ChargeCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Document string `json:"document"`
}

// Charge is the provider's view of a charge.
type Charge struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Payload   string          `json:"payload"`
}

// Provider talks to the external payment provider. Implementations never
// retry on their own: a retried create could open a second charge.
type Provider interface {
	CreateCharge(ctx context.Context, req ChargeRequest, idempotencyKey string) (*Charge, error)
	GetCharge(ctx context.Context, externalID string) (*Charge, error)
}

// HTTPProvider is the REST client of the provider.
type HTTPProvider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	logger     *slog.Logger
}

// NewHTTPProvider creates a provider client with a bounded timeout.
func NewHTTPProvider(baseURL, apiKey string, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: providerTimeout},
		logger:     logger,
	}
}

// CreateCharge opens a charge. The idempotency key lets the provider
// deduplicate a request the network delivered twice.
func (p *HTTPProvider) CreateCharge(ctx context.Context, req ChargeRequest, idempotencyKey string) (*Charge, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/pix/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)

	return p.do(httpReq, "create charge")
}

// GetCharge fetches the current state of a charge.
func (p *HTTPProvider) GetCharge(ctx context.Context, externalID string) (*Charge, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/v1/pix/charges/"+url.PathEscape(externalID), nil)
	if err != nil {
		return nil, fmt.Errorf("build charge lookup: %w", err)
	}
	return p.do(httpReq, "get charge")
}

func (p *HTTPProvider) do(req *http.Request, op string) (*Charge, error) {
	req.Header.Set("Accept", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		p.logger.Warn("payment provider unreachable", "op", op, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", util.ErrPaymentProvider, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", util.ErrPaymentProvider, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The body may echo customer data, so only the status is surfaced.
		p.logger.Warn("payment provider rejected request", "op", op, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s: status %d", util.ErrPaymentProvider, op, resp.StatusCode)
	}

	var charge Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, fmt.Errorf("%w: %s: decode body: %v", util.ErrPaymentProvider, op, err)
	}
	if charge.ID == "" {
		return nil, fmt.Errorf("%w: %s: response without charge id", util.ErrPaymentProvider, op)
	}
	return &charge, nil
}

// NormalizeStatus maps provider statuses onto the internal state machine.
func NormalizeStatus(raw string) (domain.PaymentStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ACTIVE", "PENDING":
		return domain.PaymentStatusPending, nil
	case "COMPLETED", "PAID":
		return domain.PaymentStatusPaid, nil
	case "REMOVED_BY_USER", "REMOVED_BY_PSP", "EXPIRED", "FAILED":
		return domain.PaymentStatusFailed, nil
	default:
		return "", fmt.Errorf("%w: unknown provider status %q", util.ErrPaymentProvider, raw)
	}
}
