package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog row the checkout core reads prices and names from.
// The core only ever mutates Quantity and Version (through the stock ledger);
// everything else belongs to the catalog surface.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;uniqueIndex;not null"`
	Price     int64     `gorm:"column:price;not null"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	Version   int64     `gorm:"column:version;not null;default:0"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	Variants  []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
