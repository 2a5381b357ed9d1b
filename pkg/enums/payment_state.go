package enums

import "fmt"

// PaymentState tracks the lifecycle of a provider payment record.
// Captured is a one-way latch: once set, repeat reconciliation calls
// are no-ops.
type PaymentState string

const (
	PaymentStateCreated  PaymentState = "created"
	PaymentStateFailed   PaymentState = "failed"
	PaymentStateCaptured PaymentState = "captured"
)

var validPaymentStates = []PaymentState{
	PaymentStateCreated,
	PaymentStateFailed,
	PaymentStateCaptured,
}

// String implements fmt.Stringer.
func (s PaymentState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentState.
func (s PaymentState) IsValid() bool {
	for _, candidate := range validPaymentStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payment can change state again.
func (s PaymentState) IsTerminal() bool {
	return s == PaymentStateCaptured || s == PaymentStateFailed
}

// ParsePaymentState converts raw input into a PaymentState.
func ParsePaymentState(value string) (PaymentState, error) {
	for _, candidate := range validPaymentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment state %q", value)
}
