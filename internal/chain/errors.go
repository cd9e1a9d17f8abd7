package chain

import (
	"errors"
	"fmt"
)

// Code classifies why a transaction was rejected.
type Code string

const (
	// CodeUnknown marks errors raised outside the ledger taxonomy.
	CodeUnknown Code = "UNKNOWN"

	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeAlreadyDone       Code = "ALREADY_DONE"
	CodeSupplyCapExceeded Code = "SUPPLY_CAP_EXCEEDED"
	CodePaused            Code = "PAUSED"
	CodeNotFound          Code = "NOT_FOUND"
)

// Error is a rejected operation. Reason names the specific failure, for
// example "BelowThreshold"; Code groups it for callers that only care about
// the category.
type Error struct {
	Code   Code
	Reason string
}

// NewError returns a sentinel error. Compare against it with errors.Is.
func NewError(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s)", e.Reason, e.Code)
}

// CodeOf returns the category of err, or CodeUnknown if err is not a ledger error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ReasonOf returns the specific failure name of err, or "" if err is not a
// ledger error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Errors shared by every contract.
var (
	ErrUnauthorized       = NewError(CodeUnauthorized, "Unauthorized")
	ErrPaused             = NewError(CodePaused, "Paused")
	ErrNotPaused          = NewError(CodeInvalidState, "NotPaused")
	ErrReentrantCall      = NewError(CodeInvalidState, "ReentrantCall")
	ErrZeroAddress        = NewError(CodeInvalidInput, "ZeroAddress")
	ErrUnexpectedValue    = NewError(CodeInvalidInput, "UnexpectedValue")
	ErrInvalidAddress     = NewError(CodeInvalidInput, "InvalidAddress")
	ErrInvalidAmount      = NewError(CodeInvalidInput, "InvalidAmount")
	ErrInsufficientNative = NewError(CodeInsufficientFunds, "InsufficientNativeBalance")
	ErrBalanceOverflow    = NewError(CodeInvalidState, "BalanceOverflow")
	ErrReceiverRejected   = NewError(CodeInvalidState, "ReceiverRejected")
)
