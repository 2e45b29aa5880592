package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart holds pre-order purchase intentions for exactly one identity: a
// registered user or an anonymous guest session. Partial unique indexes on
// user_id and session_id enforce at most one cart per identity; the
// exactly-one-owner rule is carried by internal/cart.Owner.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid"`
	SessionID *string    `gorm:"column:session_id"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
