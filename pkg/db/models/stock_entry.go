package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cartloop/cartloop-backend/pkg/enums"
)

// StockEntry is the immutable audit record for a single stock
// adjustment. The unique index on (order_id, product_id) rejects a
// duplicate ledger write for the same order line at the data layer, so
// a double decrement cannot slip past an upstream idempotency check.
type StockEntry struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index;uniqueIndex:uq_stock_entries_order_product"`
	OrderID     *uuid.UUID           `gorm:"column:order_id;type:uuid;uniqueIndex:uq_stock_entries_order_product"`
	Delta       int                  `gorm:"column:delta;not null"`
	Kind        enums.StockEntryKind `gorm:"column:kind;type:text;not null"`
	Note        *string              `gorm:"column:note"`
	ActorUserID *uuid.UUID           `gorm:"column:actor_user_id;type:uuid"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}
