package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidState    = errors.New("invalid order state for transition")
	ErrNotOwner        = errors.New("order belongs to another user")
	ErrSessionUnknown  = errors.New("client session not recognized")
	ErrVersionMismatch = errors.New("cart config version is outdated")
	ErrRedeemNotFound  = errors.New("redeem not found")
	ErrRedeemDisabled  = errors.New("redeem is disabled")
	ErrSKUMismatch     = errors.New("sku does not match redeem")
	ErrInvalidSKU      = errors.New("sku does not encode a cost")
	ErrInvalidToken    = errors.New("invalid transaction token")
	ErrInvalidReceipt  = errors.New("invalid receipt")
	ErrReceiptExpired  = errors.New("receipt expired")
	ErrReceiptUsed     = errors.New("receipt already used")
	ErrUserBanned      = errors.New("user is banned")
)

// ValidationError carries the specific rule a cart or argument violated, so
// rejections are never surfaced as a bare "invalid".
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Detail)
}

func Validationf(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}
