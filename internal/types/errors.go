package types

import "errors"

// Sentinels identify the reason behind a typed error; match them with errors.Is.
var (
	ErrMalformedRequest     = errors.New("malformed request")
	ErrEmptyPortfolio       = errors.New("empty portfolio")
	ErrInvalidPercentageSum = errors.New("invalid percentage sum")
	ErrDuplicateInstrument  = errors.New("duplicate instrument")
	ErrUnknownInstrument    = errors.New("unknown instrument")
	ErrPriceBelowFloor      = errors.New("price below floor")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	ErrEmailTaken          = errors.New("email already registered")

	ErrOrderNotFound = errors.New("order not found")
	ErrUserNotFound  = errors.New("user not found")
)

// ValidationError reports a malformed or policy-violating submission
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.Err }

// ConflictError reports a well-formed request that clashes with current state:
// balances, holdings or a reused idempotency key.
type ConflictError struct {
	Err     error
	Message string
}

func (e *ConflictError) Error() string { return e.Message }
func (e *ConflictError) Unwrap() error { return e.Err }

// NotFoundError reports a missing resource. An order owned by another user is
// reported exactly like an unknown one.
type NotFoundError struct {
	Err     error
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }
func (e *NotFoundError) Unwrap() error { return e.Err }

func NewValidationError(reason error, message string) *ValidationError {
	return &ValidationError{Err: reason, Message: message}
}

func NewConflictError(reason error, message string) *ConflictError {
	return &ConflictError{Err: reason, Message: message}
}

func NewNotFoundError(reason error, message string) *NotFoundError {
	return &NotFoundError{Err: reason, Message: message}
}

// IsValidation reports whether err is, or wraps, a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is, or wraps, a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
