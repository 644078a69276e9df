package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error independent of its string code, per the
// gateway's error handling design: infrastructure layers retry on Kind,
// never on Code.
type Kind string

const (
	KindInvalid     Kind = "invalid"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindRateLimited Kind = "rate_limited"
	KindNetwork     Kind = "network"
	KindInternal    Kind = "internal"
	KindUnavailable Kind = "unavailable"
)

func (k Kind) httpStatus() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNetwork:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError is a structured error that maps to HTTP responses. Code is the
// stable, caller-facing taxonomy string (e.g. "invalid_memo"); Kind is the
// coarser class infrastructure code branches on (retry, surface, log-only).
type AppError struct {
	Kind       Kind   `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
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

// New creates an AppError with an explicit HTTP status, overriding the
// status that Kind would otherwise imply.
func New(kind Kind, code, message string, httpStatus int) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, HTTPStatus: httpStatus}
}

// Of creates an AppError whose HTTP status follows from Kind.
func Of(kind Kind, code, message string) *AppError {
	return New(kind, code, message, kind.httpStatus())
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code, message string, err error) *AppError {
	e := Of(kind, code, message)
	e.Err = err
	return e
}

// As reports whether err is (or wraps) an *AppError and returns it.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ---- §6.2 error taxonomy ----

func EmptyCart() *AppError       { return Of(KindInvalid, "empty_cart", "cart has no items") }
func CartTooLarge() *AppError    { return Of(KindInvalid, "cart_too_large", "cart exceeds the maximum number of items") }
func InvalidField(field string) *AppError {
	return Of(KindInvalid, "invalid_field", fmt.Sprintf("invalid value for field %q", field))
}
func InvalidCoupon() *AppError  { return Of(KindInvalid, "invalid_coupon", "coupon is invalid or expired") }
func InvalidResource() *AppError {
	return Of(KindInvalid, "invalid_resource", "resource_id is malformed")
}
func InvalidQuantity() *AppError {
	return Of(KindInvalid, "invalid_quantity", "quantity exceeds the maximum allowed per item")
}
func MissingField(field string) *AppError {
	return Of(KindInvalid, "missing_field", fmt.Sprintf("missing required field %q", field))
}
func InvalidPaymentProof() *AppError {
	return Of(KindInvalid, "invalid_payment_proof", "payment proof failed validation")
}
func InvalidSignature() *AppError {
	return Of(KindInvalid, "invalid_signature", "signature verification failed")
}
func QuoteExpired() *AppError {
	return Of(KindInvalid, "quote_expired", "cart quote has expired")
}
func CartNotFound() *AppError {
	return Of(KindNotFound, "cart_not_found", "cart not found")
}
func ProductNotFound() *AppError {
	return Of(KindNotFound, "product_not_found", "product not found")
}
func InvalidOperation(msg string) *AppError {
	return Of(KindInvalid, "invalid_operation", msg)
}
func ServiceUnavailable() *AppError {
	return Of(KindUnavailable, "service_unavailable", "dependency is unavailable")
}
func DatabaseError(err error) *AppError {
	return Wrap(KindInternal, "database_error", "an internal database error occurred", err)
}
func MissingMemo() *AppError {
	return Of(KindInvalid, "missing_memo", "no memo instruction bound the transaction to this resource")
}
func InvalidMemo() *AppError {
	return Of(KindInvalid, "invalid_memo", "memo does not bind to the expected resource")
}
func RateLimited() *AppError {
	return Of(KindRateLimited, "rate_limited", "too many requests")
}
func NotFound(entity string) *AppError {
	return Of(KindNotFound, "not_found", fmt.Sprintf("%s not found", entity))
}
func Conflict(code, msg string) *AppError {
	return Of(KindConflict, code, msg)
}
func Network(code, msg string, err error) *AppError {
	return Wrap(KindNetwork, code, msg, err)
}

// InternalError wraps an unclassified internal error.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "internal_error", "an internal error occurred", err)
}
