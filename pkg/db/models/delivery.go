package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cartloop/cartloop-backend/pkg/enums"
)

// Delivery attaches a delivery partner to an order. Rows are created
// only on assignment, already in the assigned state.
type Delivery struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	DeliveryPartnerID uuid.UUID            `gorm:"column:delivery_partner_id;type:uuid;not null;index"`
	Status            enums.DeliveryStatus `gorm:"column:status;type:text;not null;default:'assigned'"`
	Notes             *string              `gorm:"column:notes"`
	AssignedAt        time.Time            `gorm:"column:assigned_at;autoCreateTime"`
	LastUpdateAt      time.Time            `gorm:"column:last_update_at;autoUpdateTime"`
}
