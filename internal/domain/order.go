package domain

import "time"

type OrderState string

const (
	OrderStateRejected    OrderState = "rejected"
	OrderStatePrepurchase OrderState = "prepurchase"
	OrderStateCancelled   OrderState = "cancelled"
	OrderStatePaid        OrderState = "paid"
	OrderStateFailed      OrderState = "failed"
	OrderStateSucceeded   OrderState = "succeeded"
)

// Terminal reports whether no further transition may leave the state.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateRejected, OrderStateCancelled, OrderStateFailed, OrderStateSucceeded:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving from s to
// next. States only advance forward; terminal states never change.
func (s OrderState) CanTransition(next OrderState) bool {
	switch s {
	case OrderStatePrepurchase:
		return next == OrderStateCancelled || next == OrderStatePaid
	case OrderStatePaid:
		return next == OrderStateSucceeded || next == OrderStateFailed
	}
	return false
}

// Cart is the immutable purchase request captured at prepurchase time.
type Cart struct {
	RedeemID      string         `json:"redeem_id"`
	SKU           string         `json:"sku"`
	ConfigVersion int            `json:"config_version"`
	SessionID     string         `json:"session_id"`
	Args          map[string]any `json:"args"`
}

// Order is one purchase attempt's durable record. The order id doubles as
// the transaction-token id. Orders are never deleted; terminal orders are
// kept for audit and replay lookups.
type Order struct {
	ID        string
	UserID    string
	State     OrderState
	Cart      Cart
	Receipt   string
	Result    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
