package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cartloop/cartloop-backend/pkg/enums"
)

// Payment tracks one provider payment attempt for an order. The row is
// created when a payment session opens and reaches a terminal state at
// captured or failed. Receipt is capped at 40 characters by the
// provider. Metadata is an opaque blob kept for audit and debugging.
type Payment struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	CartID            *uuid.UUID         `gorm:"column:cart_id;type:uuid"`
	Provider          string             `gorm:"column:provider;not null"`
	Receipt           string             `gorm:"column:receipt;size:40;not null"`
	ProviderOrderID   *string            `gorm:"column:provider_order_id;uniqueIndex"`
	ProviderPaymentID *string            `gorm:"column:provider_payment_id"`
	AmountCents       int                `gorm:"column:amount_cents;not null"`
	Currency          enums.Currency     `gorm:"column:currency;type:text;not null;default:'INR'"`
	Status            enums.PaymentState `gorm:"column:status;type:text;not null;default:'created'"`
	Metadata          json.RawMessage    `gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
