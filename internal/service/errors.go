package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
	ErrConflict   = errors.New("conflict")   // 409
)

type ErrorKind string

const (
	KindEmptyCart          ErrorKind = "EMPTY_CART"
	KindAddressNotFound    ErrorKind = "ADDRESS_NOT_FOUND"
	KindProductUnavailable ErrorKind = "PRODUCT_UNAVAILABLE"
	KindTransientStorage   ErrorKind = "TRANSIENT_STORAGE"
)

// Sentinels for errors.Is against a CheckoutError of the matching kind.
var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrAddressNotFound    = errors.New("address not found")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrTransientStorage   = errors.New("transient storage failure")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindEmptyCart:
		return ErrEmptyCart
	case KindAddressNotFound:
		return ErrAddressNotFound
	case KindProductUnavailable:
		return ErrProductUnavailable
	default:
		return ErrTransientStorage
	}
}

// CheckoutError is the single failure type of PlaceOrder. Validation kinds can
// be fixed by the user; TRANSIENT_STORAGE may be retried unchanged.
type CheckoutError struct {
	Kind      ErrorKind
	Message   string
	ProductID uuid.UUID
	Err       error
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *CheckoutError) Unwrap() error { return e.Err }

func (e *CheckoutError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *CheckoutError) Retryable() bool {
	return e.Kind == KindTransientStorage
}

func emptyCartError() *CheckoutError {
	return &CheckoutError{Kind: KindEmptyCart, Message: "your cart is empty"}
}

func addressNotFoundError() *CheckoutError {
	return &CheckoutError{Kind: KindAddressNotFound, Message: "shipping address not found"}
}

func productUnavailableError(id uuid.UUID, name, reason string) *CheckoutError {
	msg := "product " + id.String() + " is " + reason
	if name != "" {
		msg = "product " + name + " is " + reason
	}
	return &CheckoutError{Kind: KindProductUnavailable, Message: msg, ProductID: id}
}

// classifyStorageError wraps an error raised by the store. Anything that is not
// already a checkout error is treated as transient.
func classifyStorageError(err error) *CheckoutError {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce
	}
	return &CheckoutError{
		Kind:    KindTransientStorage,
		Message: "could not place the order right now, please try again",
		Err:     err,
	}
}

// storageReason labels a transient failure for logs.
func storageReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001":
			return "serialization_failure"
		case pgErr.Code == "40P01":
			return "deadlock"
		case strings.HasPrefix(pgErr.Code, "08"):
			return "connection"
		}
		return "sqlstate_" + pgErr.Code
	}
	if pgconn.SafeToRetry(err) {
		return "connection"
	}
	return "unknown"
}
