package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderAmounts is the one-to-one money snapshot for an order. Tax is
// only charged on the payment-session path; direct placement leaves
// it zero.
type OrderAmounts struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	SubtotalCents int       `gorm:"column:subtotal_cents;not null"`
	ShippingCents int       `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents      int       `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents int       `gorm:"column:discount_cents;not null;default:0"`
	TotalCents    int       `gorm:"column:total_cents;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
