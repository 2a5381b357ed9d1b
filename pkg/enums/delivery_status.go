package enums

import "fmt"

// DeliveryStatus tracks the lifecycle of a delivery assignment.
// Unassigned exists only conceptually: assignment creates the row
// directly in the assigned state.
type DeliveryStatus string

const (
	DeliveryStatusUnassigned     DeliveryStatus = "unassigned"
	DeliveryStatusAssigned       DeliveryStatus = "assigned"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusFailed         DeliveryStatus = "failed"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusUnassigned,
	DeliveryStatusAssigned,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
	DeliveryStatusFailed,
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusUnassigned:     {DeliveryStatusAssigned},
	DeliveryStatusAssigned:       {DeliveryStatusOutForDelivery, DeliveryStatusFailed},
	DeliveryStatusOutForDelivery: {DeliveryStatusDelivered, DeliveryStatusFailed},
	DeliveryStatusDelivered:      {},
	DeliveryStatusFailed:         {},
}

// Order status written to the parent order when a delivery reaches
// each state. Propagation is one-way: delivery drives order, never
// the reverse.
var deliveryOrderStatus = map[DeliveryStatus]OrderStatus{
	DeliveryStatusUnassigned:     OrderStatusPending,
	DeliveryStatusAssigned:       OrderStatusProcessing,
	DeliveryStatusOutForDelivery: OrderStatusShipped,
	DeliveryStatusDelivered:      OrderStatusDelivered,
	DeliveryStatusFailed:         OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (s DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether any further transition is allowed.
func (s DeliveryStatus) IsTerminal() bool {
	return len(deliveryTransitions[s]) == 0 && s.IsValid()
}

// CanTransitionTo reports whether s -> next is in the allowed table.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, candidate := range deliveryTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// OrderStatusFor returns the order status propagated when a delivery
// reaches this state, and whether a mapping exists.
func (s DeliveryStatus) OrderStatusFor() (OrderStatus, bool) {
	status, ok := deliveryOrderStatus[s]
	return status, ok
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
