package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cartloop/cartloop-backend/pkg/enums"
)

// Order is the immutable record produced at placement time. It owns
// its items and amounts snapshot; the shipping address is a per-order
// copy, never a live reference into the user's address book.
type Order struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	Status            enums.OrderStatus        `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus     enums.OrderPaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	ShippingAddressID uuid.UUID                `gorm:"column:shipping_address_id;type:uuid;not null"`
	ShippingAddress   *ShippingAddress         `gorm:"foreignKey:ShippingAddressID"`
	Items             []OrderItem              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Amounts           *OrderAmounts            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PlacedAt          time.Time                `gorm:"column:placed_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
