package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidPrice          = errors.New("invalid_price")
	ErrInvalidQuantity       = errors.New("invalid_quantity")
	ErrInvalidOwner          = errors.New("invalid_owner")
	ErrInvalidTemplate       = errors.New("invalid_template")
	ErrInsufficientStock     = errors.New("insufficient_stock")
	ErrInsufficientPayment   = errors.New("insufficient_payment")
	ErrNoProfit              = errors.New("no_profit")
	ErrArithmeticOverflow    = errors.New("arithmetic_overflow")
	ErrNotAuthorized         = errors.New("not_authorized")
	ErrNotMerchantController = errors.New("not_merchant_controller")
	ErrAlreadyInitialized    = errors.New("already_initialized")
	ErrNotInitialized        = errors.New("not_initialized")
	ErrItemNotActive         = errors.New("item_not_active")
	ErrReentrantCall         = errors.New("reentrant_call")
	ErrInstanceNotFound      = errors.New("instance_not_found")
	ErrMerchantNotFound      = errors.New("merchant_not_found")
	ErrItemNotFound          = errors.New("item_not_found")
	ErrWebhookNotFound       = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
