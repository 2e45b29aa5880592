package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant carries per-variant stock and a price adjustment applied on
// top of the base product price. Variants never own a fully independent
// price; the sellable unit price is always base price + adjustment.
type ProductVariant struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name            string    `gorm:"column:name;not null"`
	PriceAdjustment int64     `gorm:"column:price_adjustment;not null;default:0"`
	Quantity        int       `gorm:"column:quantity;not null;default:0"`
	Version         int64     `gorm:"column:version;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
