package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minhdang/storefront-backend/pkg/enums"
)

// Order is the immutable purchase record produced from a cart. Amounts and
// item snapshots never change after creation; only Status, payment fields
// and the appended history move.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string            `gorm:"column:code;uniqueIndex;not null"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status        enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	IsPaid        bool              `gorm:"column:is_paid;not null;default:false"`
	TransactionID *string           `gorm:"column:transaction_id"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`

	Subtotal    int64 `gorm:"column:subtotal;not null"`
	Discount    int64 `gorm:"column:discount;not null;default:0"`
	ShippingFee int64 `gorm:"column:shipping_fee;not null;default:0"`
	Total       int64 `gorm:"column:total;not null"`

	ReceiverName  string `gorm:"column:receiver_name;not null"`
	ReceiverPhone string `gorm:"column:receiver_phone;not null"`
	City          string `gorm:"column:city;not null"`
	District      string `gorm:"column:district;not null"`
	Ward          string `gorm:"column:ward;not null"`
	Address       string `gorm:"column:address;not null"`
	Note          *string `gorm:"column:note"`

	VoucherID *uuid.UUID `gorm:"column:voucher_id;type:uuid"`

	Items   []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
