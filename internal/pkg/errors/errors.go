package xerrors

import (
	"errors"
)

// Common reusable application errors
var (
	ErrNotFound             = errors.New("resource not found")
	ErrUnauthorized         = errors.New("unauthorized access")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConflict             = errors.New("conflict: resource already exists")
	ErrInternal             = errors.New("internal server error")
	ErrBadRequest           = errors.New("bad request")
	ErrDuplicateEntry       = errors.New("duplicate entry")
	ErrVerificationFailed   = errors.New("webhook signature verification failed")
	ErrAlreadyProcessed     = errors.New("event already processed")
	ErrInProgress           = errors.New("event is being processed")
	ErrInsufficientBalance  = errors.New("insufficient wallet balance")
	ErrWalletRestricted     = errors.New("wallet is restricted")
	ErrSubscriptionRequired = errors.New("active subscription required")
	ErrTrialAlreadyUsed     = errors.New("free trial already used")
)

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Code returns a machine-readable code for a sentinel error, for API responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "RESOURCE_NOT_FOUND"
	case errors.Is(err, ErrVerificationFailed):
		return "VERIFICATION_FAILED"
	case errors.Is(err, ErrAlreadyProcessed):
		return "ALREADY_PROCESSED"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrWalletRestricted):
		return "WALLET_RESTRICTED"
	case errors.Is(err, ErrSubscriptionRequired):
		return "SUBSCRIPTION_REQUIRED"
	case errors.Is(err, ErrTrialAlreadyUsed):
		return "TRIAL_ALREADY_USED"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return "INVALID_REQUEST_PARAMETERS"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrDuplicateEntry), errors.Is(err, ErrConflict):
		return "DUPLICATE_ENTRY"
	default:
		return "INTERNAL_ERROR"
	}
}
