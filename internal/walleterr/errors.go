// Package walleterr classifies errors surfaced by the wallet engine using
// the stable string codes from the payment-client specification, rather
// than leaking Go error types across component boundaries.
package walleterr

import "fmt"

// Classification groups an error by how a caller may react to it.
type Classification int

const (
	// NonRetryable errors will not succeed if the same call is repeated.
	NonRetryable Classification = iota
	// Retryable errors are transient; idempotent reads may be retried.
	Retryable
	// UserIntervention errors require the user to acknowledge or act.
	UserIntervention
)

func (c Classification) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case UserIntervention:
		return "user-intervention"
	default:
		return "non-retryable"
	}
}

// Stable error codes, matching spec.md §7 verbatim.
const (
	CodeRNGFailed           = "rng-failed"
	CodeKeystoreIO          = "keystore-io"
	CodeNoWallet            = "no-wallet"
	CodeInvalidKey          = "invalid-key"
	CodeInvalidAddress      = "invalid-address"
	CodeInvalidAmount       = "invalid-amount"
	CodeInsufficientFunds   = "insufficient-funds"
	CodeNoPool              = "no-pool"
	CodeRPCError            = "rpc-error"
	CodeGasEstimationFailed = "gas-estimation-failed"
	CodeReverted            = "reverted"
	CodeTimeout             = "timeout"
	CodeInvalidState        = "invalid-state"
	CodeBusy                = "busy"
	CodeCancelled           = "cancelled"
	CodeSigningFailed       = "signing-failed"
)

// Error is the single error type returned by every wallet-engine operation.
type Error struct {
	Code           string
	Message        string
	Classification Classification
	Cause          error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a non-retryable Error with the given code.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message, Classification: NonRetryable}
}

// Wrap creates a non-retryable Error wrapping cause.
func Wrap(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Classification: NonRetryable, Cause: cause}
}

// WrapRetryable creates a retryable Error wrapping cause.
func WrapRetryable(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Classification: Retryable, Cause: cause}
}

// WrapUserIntervention creates a user-intervention Error wrapping cause.
func WrapUserIntervention(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Classification: UserIntervention, Cause: cause}
}

// Code returns the stable code of err, or "" if err is not an *Error.
func Code(err error) string {
	var e *Error
	if asError(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether err is an *Error classified Retryable.
func IsRetryable(err error) bool {
	var e *Error
	return asError(err, &e) && e.Classification == Retryable
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
