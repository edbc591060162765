// internal/api/handler/handler_test.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"readreward/internal/auth"
	"readreward/internal/domain"
	"readreward/internal/reconciliation"
	"readreward/internal/util"
)

const testUserID int64 = 7

func testLogger() *slog.Logger {
	return util.NewLogger(io.Discard, "error")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// serve routes a request through chi so URL params resolve, with an
// optional principal in the context.
func serve(t *testing.T, method, pattern, path, body string, userID int64, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID > 0 {
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: userID}))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRespondWithError(t *testing.T) {
	h := responder{logger: testLogger()}
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: bad", util.ErrInvalidInput), http.StatusBadRequest},
		{util.ErrInvalidDocument, http.StatusBadRequest},
		{util.ErrInvalidEngagement, http.StatusUnprocessableEntity},
		{util.ErrUnauthorized, http.StatusUnauthorized},
		{util.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("get: %w", util.ErrContentNotFound), http.StatusNotFound},
		{util.ErrOrderNotFound, http.StatusNotFound},
		{util.ErrAlreadyCompleted, http.StatusConflict},
		{util.ErrInsufficientBalance, http.StatusPaymentRequired},
		{util.ErrWithdrawalNotAllowed, http.StatusUnprocessableEntity},
		{util.ErrReconciliationConflict, http.StatusConflict},
		{util.ErrPaymentProvider, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		h.respondWithError(w, tc.err)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	}
}

func TestPagination(t *testing.T) {
	cases := map[string][2]int{
		"":                     {20, 0},
		"?limit=5&offset=10":   {5, 10},
		"?limit=-1&offset=-3":  {20, 0},
		"?limit=500":           {100, 0},
		"?limit=abc&offset=xy": {20, 0},
	}
	for query, want := range cases {
		limit, offset := pagination(httptest.NewRequest(http.MethodGet, "/me/transactions"+query, nil))
		assert.Equal(t, want[0], limit, query)
		assert.Equal(t, want[1], offset, query)
	}
}

func TestComplete(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockCompletionService)
		h := NewCompletionHandler(svc, testLogger())
		svc.On("Complete", mock.Anything, auth.Principal{UserID: testUserID}, int64(3), mock.MatchedBy(func(r domain.ClientReport) bool {
			return r.TimeSpent == 120 && r.Rating == 4
		})).Return(&domain.CompletionResult{CompletionID: 9, Reward: dec("15.00"), NewBalance: dec("15.00")}, nil).Once()

		w := serve(t, http.MethodPost, "/completions", "/completions",
			`{"contentId":3,"rating":4,"opinion":"good","timeSpent":120,"answers":[]}`, testUserID, h.Complete)

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(t, w)
		assert.EqualValues(t, 9, body["completionId"])
		assert.Equal(t, "15", body["reward"])
		assert.Equal(t, "15", body["newBalance"])
		svc.AssertExpectations(t)
	})

	t.Run("Validation", func(t *testing.T) {
		svc := new(MockCompletionService)
		h := NewCompletionHandler(svc, testLogger())
		for _, body := range []string{
			`{"contentId":0,"timeSpent":120}`,
			`{"contentId":3,"rating":9,"timeSpent":120}`,
			`{"contentId":3,"timeSpent":-1}`,
			`{"contentId":3,"reward":"100.00"}`,
			`not json`,
		} {
			w := serve(t, http.MethodPost, "/completions", "/completions", body, testUserID, h.Complete)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
		svc.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NoPrincipal", func(t *testing.T) {
		h := NewCompletionHandler(new(MockCompletionService), testLogger())
		w := serve(t, http.MethodPost, "/completions", "/completions", `{"contentId":3}`, 0, h.Complete)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("AlreadyCompleted", func(t *testing.T) {
		svc := new(MockCompletionService)
		h := NewCompletionHandler(svc, testLogger())
		svc.On("Complete", mock.Anything, mock.Anything, int64(3), mock.Anything).Return(nil, util.ErrAlreadyCompleted).Once()

		w := serve(t, http.MethodPost, "/completions", "/completions", `{"contentId":3,"timeSpent":90}`, testUserID, h.Complete)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ledger := new(MockLedgerService)
		h := NewAccountHandler(ledger, new(MockStatsService), testLogger())
		withdrawal := domain.NewWithdrawal(testUserID, dec("50.00"), "ana@example.com")
		ledger.On("Debit", mock.Anything, testUserID, mock.MatchedBy(func(a decimal.Decimal) bool { return a.Equal(dec("50")) }), "ana@example.com").
			Return(&domain.LedgerResult{
				User:        &domain.User{ID: testUserID, Balance: dec("10.00")},
				Transaction: &domain.Transaction{ID: 31},
			}, withdrawal, nil).Once()

		w := serve(t, http.MethodPost, "/withdrawals", "/withdrawals", `{"amount":"50.00","pix_key":"ana@example.com"}`, testUserID, h.Withdraw)

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, withdrawal.ID, body["withdrawal_id"])
		assert.Equal(t, "10", body["new_balance"])
		ledger.AssertExpectations(t)
	})

	t.Run("BadAmount", func(t *testing.T) {
		ledger := new(MockLedgerService)
		h := NewAccountHandler(ledger, new(MockStatsService), testLogger())
		for _, body := range []string{
			`{"amount":"0","pix_key":"k"}`,
			`{"amount":"-5","pix_key":"k"}`,
			`{"amount":"1.234","pix_key":"k"}`,
			`{"amount":"10"}`,
		} {
			w := serve(t, http.MethodPost, "/withdrawals", "/withdrawals", body, testUserID, h.Withdraw)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
		ledger.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Rejected", func(t *testing.T) {
		ledger := new(MockLedgerService)
		h := NewAccountHandler(ledger, new(MockStatsService), testLogger())
		ledger.On("Debit", mock.Anything, testUserID, mock.Anything, "k").Return(nil, nil, util.ErrWithdrawalNotAllowed).Once()
		ledger.On("Debit", mock.Anything, testUserID, mock.Anything, "k").Return(nil, nil, util.ErrInsufficientBalance).Once()

		w := serve(t, http.MethodPost, "/withdrawals", "/withdrawals", `{"amount":"10","pix_key":"k"}`, testUserID, h.Withdraw)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		w = serve(t, http.MethodPost, "/withdrawals", "/withdrawals", `{"amount":"10","pix_key":"k"}`, testUserID, h.Withdraw)
		assert.Equal(t, http.StatusPaymentRequired, w.Code)
	})
}

func TestAccountReads(t *testing.T) {
	ledger := new(MockLedgerService)
	stats := new(MockStatsService)
	h := NewAccountHandler(ledger, stats, testLogger())

	ledger.On("GetBalance", mock.Anything, testUserID).Return(&domain.User{
		ID: testUserID, Balance: dec("1234.5"), TotalEarnings: dec("2000"), CanWithdraw: true, Plan: domain.PlanPaid,
	}, nil).Once()
	w := serve(t, http.MethodGet, "/me/balance", "/me/balance", "", testUserID, h.GetBalance)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "R$ 1.234,50", body["balance_formatted"])
	assert.Equal(t, "paid", body["plan"])
	assert.Equal(t, true, body["can_withdraw"])

	ledger.On("GetTransactionHistory", mock.Anything, testUserID, 2, 4).Return([]domain.Transaction{{ID: 5}, {ID: 4}}, int64(9), nil).Once()
	w = serve(t, http.MethodGet, "/me/transactions", "/me/transactions?limit=2&offset=4", "", testUserID, h.GetTransactionHistory)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.EqualValues(t, 9, body["total_count"])
	assert.Len(t, body["data"], 2)

	ledger.On("VerifyBalance", mock.Anything, testUserID).Return(&domain.BalanceReport{UserID: testUserID, Consistent: true}, nil).Once()
	w = serve(t, http.MethodGet, "/me/ledger/verify", "/me/ledger/verify", "", testUserID, h.VerifyLedger)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["consistent"])

	snap := domain.NewStatsSnapshot(testUserID, time.Now())
	snap.TotalCount = 3
	stats.On("Refresh", mock.Anything, testUserID).Return(snap, nil).Once()
	stats.On("Recompute", mock.Anything, testUserID).Return(snap, nil).Once()
	w = serve(t, http.MethodGet, "/me/stats", "/me/stats", "", testUserID, h.GetStats)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decodeBody(t, w)["total_count"])
	w = serve(t, http.MethodPost, "/me/stats/recompute", "/me/stats/recompute", "", testUserID, h.RecomputeStats)
	require.Equal(t, http.StatusOK, w.Code)

	ledger.AssertExpectations(t)
	stats.AssertExpectations(t)
}

func newPaymentHandler() (*PaymentHandler, *MockGateway, *MockOrderStatusReader, *MockSubmitter) {
	gw := new(MockGateway)
	orders := new(MockOrderStatusReader)
	sub := new(MockSubmitter)
	return NewPaymentHandler(gw, orders, sub, testLogger()), gw, orders, sub
}

func TestCheckout(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		h, gw, _, _ := newPaymentHandler()
		gw.On("Checkout", mock.Anything, auth.Principal{UserID: testUserID}, domain.PlanPaid, domain.Customer{
			Name: "Ana", Email: "ana@example.com", NationalID: "529.982.247-25",
		}).Return(&domain.CheckoutResult{ExternalID: "ch_1", Amount: dec("19.90"), Payload: "000201", Status: domain.PaymentStatusPending}, nil).Once()

		w := serve(t, http.MethodPost, "/payments/checkout", "/payments/checkout",
			`{"name":"Ana","email":"ana@example.com","national_id":"529.982.247-25"}`, testUserID, h.Checkout)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "ch_1", decodeBody(t, w)["external_id"])
		gw.AssertExpectations(t)
	})

	t.Run("Validation", func(t *testing.T) {
		h, gw, _, _ := newPaymentHandler()
		for _, body := range []string{
			`{"national_id":"529.982.247-25"}`,
			`{"name":"Ana"}`,
			`{"name":"Ana","national_id":"529.982.247-25","plan":"gold"}`,
			`{"name":"Ana","national_id":"529.982.247-25","email":"nope"}`,
		} {
			w := serve(t, http.MethodPost, "/payments/checkout", "/payments/checkout", body, testUserID, h.Checkout)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
		gw.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ProviderDown", func(t *testing.T) {
		h, gw, _, _ := newPaymentHandler()
		gw.On("Checkout", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: could not create charge", util.ErrPaymentProvider)).Once()

		w := serve(t, http.MethodPost, "/payments/checkout", "/payments/checkout",
			`{"name":"Ana","national_id":"529.982.247-25"}`, testUserID, h.Checkout)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "Payment provider unavailable", decodeBody(t, w)["error"])
	})
}

func TestGetOrderStatus(t *testing.T) {
	h, _, orders, _ := newPaymentHandler()
	orders.On("OrderStatus", mock.Anything, auth.Principal{UserID: testUserID}, "ch_1").Return(&domain.PaymentOrder{
		ExternalID: "ch_1", Status: domain.PaymentStatusPaid, Plan: domain.PlanPaid, Amount: dec("19.9"),
	}, nil).Once()
	orders.On("OrderStatus", mock.Anything, auth.Principal{UserID: testUserID}, "ch_other").Return(nil, util.ErrForbidden).Once()

	w := serve(t, http.MethodGet, "/payments/{externalID}/status", "/payments/ch_1/status", "", testUserID, h.GetOrderStatus)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "paid", body["status"])
	assert.Equal(t, "19.90", body["amount"])

	w = serve(t, http.MethodGet, "/payments/{externalID}/status", "/payments/ch_other/status", "", testUserID, h.GetOrderStatus)
	assert.Equal(t, http.StatusForbidden, w.Code)
	orders.AssertExpectations(t)
}

func TestWebhook(t *testing.T) {
	t.Run("Queued", func(t *testing.T) {
		h, _, _, sub := newPaymentHandler()
		sub.On("Submit", mock.Anything, mock.MatchedBy(func(n reconciliation.Notification) bool {
			return n.ExternalID == "ch_1" && n.Status == "COMPLETED" && n.Amount.Equal(dec("19.90")) && !n.ReceivedAt.IsZero() && n.Tries == 0
		})).Once()

		w := serve(t, http.MethodPost, "/webhooks/payments", "/webhooks/payments",
			`{"externalId":"ch_1","internalReference":"rr.7.paid.1","status":"COMPLETED","amount":"19.90","tries":5}`, 0, h.Webhook)
		assert.Equal(t, http.StatusOK, w.Code)
		sub.AssertExpectations(t)
	})

	t.Run("GarbageIsAcknowledged", func(t *testing.T) {
		h, _, _, sub := newPaymentHandler()
		for _, body := range []string{`not json`, `{"status":"COMPLETED"}`, ``} {
			w := serve(t, http.MethodPost, "/webhooks/payments", "/webhooks/payments", body, 0, h.Webhook)
			assert.Equal(t, http.StatusOK, w.Code, body)
		}
		sub.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})
}
