package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the canonical catalog listing. Stock is denormalized for
// read speed and is mutated exclusively through the stock ledger; the
// sum of stock entry deltas for a product always equals this value.
type Product struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID  *uuid.UUID `gorm:"column:category_id;type:uuid"`
	Name        string     `gorm:"column:name;not null"`
	Description *string    `gorm:"column:description"`
	PriceCents  int        `gorm:"column:price_cents;not null"`
	Stock       int        `gorm:"column:stock;not null;default:0"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
