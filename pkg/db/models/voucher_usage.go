package models

import (
	"time"

	"github.com/google/uuid"
)

// VoucherUsage is the durable record of one redemption. The unique
// (voucher_id, order_id) index makes double-applying a voucher to the same
// order impossible; per-user and global quotas are counted from these rows.
type VoucherUsage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VoucherID uuid.UUID `gorm:"column:voucher_id;type:uuid;not null;uniqueIndex:idx_voucher_usages_voucher_order"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_voucher_usages_voucher_order"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
