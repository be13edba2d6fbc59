package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies cart errors so transport layers can map them to
// status codes without matching on message text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotFound
	KindInsufficientInventory
	KindOutOfStock
	KindCartLimit
	KindDownstream
)

// CartError carries the error kind plus the structured quantities callers
// need to offer a "reduce to N" suggestion without parsing prose.
type CartError struct {
	Kind      ErrorKind
	Message   string
	ProductID string
	Requested int
	Available int
	Err       error
}

func (e *CartError) Error() string {
	return e.Message
}

func (e *CartError) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ce *CartError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// AsCartError returns the CartError in err's chain, if any.
func AsCartError(err error) (*CartError, bool) {
	var ce *CartError
	ok := errors.As(err, &ce)
	return ce, ok
}

func NewValidationError(format string, args ...interface{}) *CartError {
	return &CartError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(productID string) *CartError {
	return &CartError{
		Kind:      KindNotFound,
		Message:   fmt.Sprintf("product %s not found", productID),
		ProductID: productID,
	}
}

func NewInsufficientInventoryError(productID string, requested, available int) *CartError {
	return &CartError{
		Kind:      KindInsufficientInventory,
		Message:   fmt.Sprintf("insufficient inventory for product %s: only %d available, %d requested", productID, available, requested),
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}

func NewOutOfStockError(productID, productName string) *CartError {
	return &CartError{
		Kind:      KindOutOfStock,
		Message:   fmt.Sprintf("%s is currently out of stock", productName),
		ProductID: productID,
	}
}

func NewCartLimitError(format string, args ...interface{}) *CartError {
	return &CartError{Kind: KindCartLimit, Message: fmt.Sprintf(format, args...)}
}

// NewItemLimitError reports an add that would push an item past the
// per-item maximum. Available carries the remaining headroom so callers
// can offer "add up to N more" without parsing the message.
func NewItemLimitError(productID string, existing, requested, headroom int) *CartError {
	return &CartError{
		Kind:      KindCartLimit,
		Message:   fmt.Sprintf("you already have %d in your cart, only %d more can be added", existing, headroom),
		ProductID: productID,
		Requested: requested,
		Available: headroom,
	}
}

func NewDownstreamError(msg string, err error) *CartError {
	return &CartError{Kind: KindDownstream, Message: msg, Err: err}
}
