// internal/api/handler/account.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"readreward/internal/api/types"
	"readreward/internal/domain"
	"readreward/internal/service"
	"readreward/internal/validation"
)

// AccountHandler serves the caller's balance, ledger, stats and withdrawals.
type AccountHandler struct {
	responder
	ledger service.LedgerService
	stats  service.StatsService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledger service.LedgerService, stats service.StatsService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		responder: responder{logger: logger},
		ledger:    ledger,
		stats:     stats,
	}
}

// WithdrawRequest represents the request body for a withdrawal.
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
	PixKey string          `json:"pix_key" validate:"required,max=77"`
}

// BalanceResponse is the caller's account summary.
type BalanceResponse struct {
	Balance                decimal.Decimal `json:"balance"`
	BalanceFormatted       string          `json:"balance_formatted"`
	TotalEarnings          decimal.Decimal `json:"total_earnings"`
	TotalEarningsFormatted string          `json:"total_earnings_formatted"`
	CanWithdraw            bool            `json:"can_withdraw"`
	Plan                   domain.Plan     `json:"plan"`
}

// Withdraw handles a withdrawal request.
// POST /withdrawals
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req WithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	amount, err := validation.ParsePositiveAmount(req.Amount.String())
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	result, withdrawal, err := h.ledger.Debit(r.Context(), p.UserID, amount, req.PixKey)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"withdrawal_id":  withdrawal.ID,
		"status":         withdrawal.Status,
		"amount":         withdrawal.Amount,
		"new_balance":    result.User.Balance,
		"transaction_id": result.Transaction.ID,
	})
}

// GetBalance handles the balance request.
// GET /me/balance
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	user, err := h.ledger.GetBalance(r.Context(), p.UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, BalanceResponse{
		Balance:                user.Balance,
		BalanceFormatted:       validation.FormatBRL(user.Balance),
		TotalEarnings:          user.TotalEarnings,
		TotalEarningsFormatted: validation.FormatBRL(user.TotalEarnings),
		CanWithdraw:            user.CanWithdraw,
		Plan:                   user.Plan,
	})
}

// GetTransactionHistory handles the ledger history request, newest first.
// GET /me/transactions
func (h *AccountHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	limit, offset := pagination(r)
	transactions, total, err := h.ledger.GetTransactionHistory(r.Context(), p.UserID, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}

// VerifyLedger compares the stored balance with the transaction log.
// GET /me/ledger/verify
func (h *AccountHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	report, err := h.ledger.VerifyBalance(r.Context(), p.UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, report)
}

// GetStats returns the caller's stats, refreshed to the current windows.
// GET /me/stats
func (h *AccountHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	snapshot, err := h.stats.Refresh(r.Context(), p.UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, snapshot)
}

// RecomputeStats rebuilds the caller's stats from the completion log.
// POST /me/stats/recompute
func (h *AccountHandler) RecomputeStats(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	snapshot, err := h.stats.Recompute(r.Context(), p.UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, snapshot)
}
