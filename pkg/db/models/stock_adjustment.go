package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhdang/storefront-backend/pkg/enums"
)

// StockAdjustment records one stock movement for one order line. The unique
// (order_item_id, kind) index is what makes a release idempotent: a second
// release for the same line hits the constraint and is treated as a no-op.
type StockAdjustment struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderItemID uuid.UUID                 `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex:idx_stock_adjustments_line_kind"`
	Kind        enums.StockAdjustmentKind `gorm:"column:kind;type:text;not null;uniqueIndex:idx_stock_adjustments_line_kind"`
	ProductID   uuid.UUID                 `gorm:"column:product_id;type:uuid;not null"`
	VariantID   *uuid.UUID                `gorm:"column:variant_id;type:uuid"`
	Quantity    int                       `gorm:"column:quantity;not null"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
