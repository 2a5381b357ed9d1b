package models

import (
	"time"

	"github.com/google/uuid"
)

// ShippingAddress is the immutable per-order copy of the recipient
// fields, taken either from a saved Address or from an inline payload
// at placement time.
type ShippingAddress struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientName string    `gorm:"column:recipient_name;not null"`
	Phone         string    `gorm:"column:phone;not null"`
	Line1         string    `gorm:"column:line1;not null"`
	Line2         *string   `gorm:"column:line2"`
	City          string    `gorm:"column:city;not null"`
	State         string    `gorm:"column:state;not null"`
	PostalCode    string    `gorm:"column:postal_code;not null"`
	Country       string    `gorm:"column:country;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
