package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

// ---- Ledger & Payment Business Logic (PAY) ----

const (
	CodeInsufficientFunds          = "PAY_001"
	CodeValidation                 = "PAY_002"
	CodeDuplicateTransaction       = "PAY_003"
	CodeNotFound                   = "PAY_004"
	CodePaymentNotRefundable       = "PAY_006"
	CodeRefundAmountExceedsPayment = "PAY_007"
	CodePaymentNotPending          = "PAY_008"
	CodePaymentNotCompleted        = "PAY_009"
	CodeTransactionAmountMismatch  = "PAY_010"
	CodeTransferSameProfile        = "PAY_011"
	CodeTransferDifferentUsers     = "PAY_012"
	CodeIdempotencyKeyReuse        = "PAY_013"
	CodeInvalidStateTransition     = "PAY_014"
	CodeInternal                   = "SYS_001"
	CodeLockTimeout                = "SYS_002"
)

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeValidation, "Invalid amount", http.StatusBadRequest)
}

func ErrDuplicateTransaction() *AppError {
	return New(CodeDuplicateTransaction, "Duplicate transaction", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrWalletNotFound() *AppError {
	return ErrNotFound("Wallet")
}

func ErrCashboxNotFound() *AppError {
	return ErrNotFound("Cashbox")
}

func ErrPaymentNotFound() *AppError {
	return ErrNotFound("Payment")
}

func ErrPaymentNotRefundable() *AppError {
	return New(CodePaymentNotRefundable, "Payment is not eligible for refund", http.StatusBadRequest)
}

func ErrRefundAmountExceedsPayment() *AppError {
	return New(CodeRefundAmountExceedsPayment, "Refund amount exceeds payment amount", http.StatusBadRequest)
}

func ErrPaymentNotPending() *AppError {
	return New(CodePaymentNotPending, "Payment is not pending", http.StatusConflict)
}

func ErrPaymentNotCompleted() *AppError {
	return New(CodePaymentNotCompleted, "Payment is not completed", http.StatusConflict)
}

// ErrTransactionAmountMismatch is a consistency failure: journal legs
// or a gateway report disagree with the payment amount.
func ErrTransactionAmountMismatch(detail string) *AppError {
	return New(CodeTransactionAmountMismatch, "Transaction amount mismatch: "+detail, http.StatusUnprocessableEntity)
}

func ErrTransferSameProfile() *AppError {
	return New(CodeTransferSameProfile, "Cannot transfer to the same profile", http.StatusBadRequest)
}

func ErrTransferDifferentUsers() *AppError {
	return New(CodeTransferDifferentUsers, "Transfers are only allowed between profiles of the same user", http.StatusBadRequest)
}

func ErrIdempotencyKeyReuse() *AppError {
	return New(CodeIdempotencyKeyReuse, "Idempotency key was already used with a different request", http.StatusUnprocessableEntity)
}

func ErrInvalidStateTransition(from, to string) *AppError {
	return New(CodeInvalidStateTransition, fmt.Sprintf("Cannot move payment from %s to %s", from, to), http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
