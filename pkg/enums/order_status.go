package enums

import "fmt"

// OrderStatus tracks the lifecycle of an order. Statuses are ordered:
// an order only ever advances to a later status, never back.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Index returns the position of the status in the lifecycle ordering,
// or -1 for unknown values. Cancelled sits last: once reached no
// transition is legal, and it is unreachable from delivered.
func (s OrderStatus) Index() int {
	for i, candidate := range validOrderStatuses {
		if candidate == s {
			return i
		}
	}
	return -1
}

// CanAdvanceTo reports whether the order may move from s to next.
// Transitions are strictly forward: equal or earlier targets are
// rejected, as is anything out of a terminal state.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	from, to := s.Index(), next.Index()
	if from < 0 || to < 0 {
		return false
	}
	return to > from
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
