package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minhdang/storefront-backend/pkg/enums"
)

// Voucher is a named discount policy. Usage counts are never stored here;
// they are derived from VoucherUsage rows so concurrent redemptions cannot
// drift a counter.
type Voucher struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code              string             `gorm:"column:code;uniqueIndex;not null"`
	DiscountType      enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue     decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MaxDiscount       *int64             `gorm:"column:max_discount"`
	MinOrderAmount    int64              `gorm:"column:min_order_amount;not null;default:0"`
	UsageLimit        *int               `gorm:"column:usage_limit"`
	UsageLimitPerUser *int               `gorm:"column:usage_limit_per_user"`
	StartsAt          time.Time          `gorm:"column:starts_at;not null"`
	EndsAt            time.Time          `gorm:"column:ends_at;not null"`
	IsActive          bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
