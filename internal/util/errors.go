// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input provided")
	ErrUserNotFound    = errors.New("user not found")
	ErrContentNotFound = errors.New("content not found")
	ErrOrderNotFound   = errors.New("payment order not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")

	// Completion guard rejections.
	ErrAlreadyCompleted  = errors.New("content already completed")
	ErrInvalidEngagement = errors.New("engagement below minimum threshold")

	// Ledger rejections.
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrWithdrawalNotAllowed = errors.New("withdrawal not allowed")

	// Payment and reconciliation.
	ErrInvalidDocument        = errors.New("invalid national id document")
	ErrPaymentProvider        = errors.New("payment provider error")
	ErrReconciliationConflict = errors.New("terminal payment status already recorded")
	ErrInvalidPayload         = errors.New("invalid payment payload")
	ErrChecksumMismatch       = errors.New("payment payload checksum mismatch")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
