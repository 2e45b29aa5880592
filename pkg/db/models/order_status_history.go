package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhdang/storefront-backend/pkg/enums"
)

// OrderStatusHistory is one append-only trail entry per transition. Rows are
// never edited or deleted.
type OrderStatusHistory struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus enums.OrderStatus `gorm:"column:from_status;type:text;not null"`
	ToStatus   enums.OrderStatus `gorm:"column:to_status;type:text;not null"`
	Actor      enums.ActorRole   `gorm:"column:actor;type:text;not null"`
	Note       *string           `gorm:"column:note"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
