package service

import (
	"errors"
	"fmt"
	"strings"

	"techsolutions/backend/internal/store"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrIdentityMismatch = errors.New("customer identity mismatch")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrEmptyOrder       = errors.New("sale has no products")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrForbidden        = errors.New("forbidden")

	// ErrInsufficientStock is shared with the store so a CHECK constraint
	// failure and a reconciler rejection read the same to callers.
	ErrInsufficientStock = store.ErrInsufficientStock
)

// Violation is one business-rule failure, suitable for showing to the
// operator. Kind is one of the sentinel errors above.
type Violation struct {
	Kind      error  `json:"-"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	ProductID int64  `json:"product_id,omitempty"`
	Message   string `json:"message"`
}

func (v Violation) Error() string { return v.Message }

func (v Violation) Unwrap() error { return v.Kind }

// Violations carries every failure found in one submission. errors.Is
// matches the Kind of any member.
type Violations []Violation

func (vs Violations) Error() string {
	msgs := make([]string, 0, len(vs))
	for _, v := range vs {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}

func (vs Violations) Unwrap() []error {
	errs := make([]error, 0, len(vs))
	for _, v := range vs {
		errs = append(errs, v)
	}
	return errs
}

func newViolation(kind error, field string, productID int64, format string, args ...any) Violation {
	return Violation{
		Kind:      kind,
		Code:      codeOf(kind),
		Field:     field,
		ProductID: productID,
		Message:   fmt.Sprintf(format, args...),
	}
}

func codeOf(kind error) string {
	switch {
	case errors.Is(kind, ErrValidation):
		return "validation"
	case errors.Is(kind, ErrIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(kind, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(kind, ErrEmptyOrder):
		return "empty_order"
	case errors.Is(kind, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(kind, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(kind, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

// rejectionReason labels a failed submission for metrics.
func rejectionReason(err error) string {
	var vs Violations
	if errors.As(err, &vs) && len(vs) > 0 {
		return vs[0].Code
	}
	if errors.Is(err, store.ErrNotFound) {
		return "not_found"
	}
	return "error"
}
