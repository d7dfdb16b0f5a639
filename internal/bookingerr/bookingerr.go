package bookingerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the failure classes of the quote-confirm protocol.
// The API layer maps kinds onto wire error codes and HTTP statuses.
type Kind int

const (
	Internal Kind = iota
	Validation
	QuoteExpired
	TokenInvalid
	PaymentFailed
	PaymentToken
	IdempotencyMismatch
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case QuoteExpired:
		return "quote_expired"
	case TokenInvalid:
		return "token_invalid"
	case PaymentFailed:
		return "payment_failed"
	case PaymentToken:
		return "payment_token_invalid"
	case IdempotencyMismatch:
		return "idempotency_mismatch"
	default:
		return "internal"
	}
}

// Error carries a failure kind across layer boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error with a plain message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errf builds an Error with a formatted message.
func Errf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an operation name to an unexpected failure.
func Wrap(op string, err error) *Error {
	return &Error{Kind: Internal, Message: op + " failed", Err: err}
}

// KindOf extracts the kind from err, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
