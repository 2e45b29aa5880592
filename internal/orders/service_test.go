package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minhdang/storefront-backend/internal/voucher"
	"github.com/minhdang/storefront-backend/pkg/db/models"
	"github.com/minhdang/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
	"github.com/minhdang/storefront-backend/pkg/logger"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type noopDispatcher struct{}

func (noopDispatcher) OrderCreated(ctx context.Context, order *models.Order) {}
func (noopDispatcher) OrderStatusChanged(ctx context.Context, order *models.Order, from, to enums.OrderStatus) {
}

var orderSchema = []string{`
CREATE TABLE products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  slug TEXT NOT NULL DEFAULT '',
  price INTEGER NOT NULL DEFAULT 0,
  quantity INTEGER NOT NULL DEFAULT 0,
  version INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  price_adjustment INTEGER NOT NULL DEFAULT 0,
  quantity INTEGER NOT NULL DEFAULT 0,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE vouchers (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  discount_type TEXT NOT NULL,
  discount_value NUMERIC NOT NULL,
  max_discount INTEGER,
  min_order_amount INTEGER NOT NULL DEFAULT 0,
  usage_limit INTEGER,
  usage_limit_per_user INTEGER,
  starts_at DATETIME NOT NULL,
  ends_at DATETIME NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  is_paid INTEGER NOT NULL DEFAULT 0,
  transaction_id TEXT,
  payment_method TEXT NOT NULL,
  subtotal INTEGER NOT NULL,
  discount INTEGER NOT NULL DEFAULT 0,
  shipping_fee INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL,
  receiver_name TEXT NOT NULL,
  receiver_phone TEXT NOT NULL,
  city TEXT NOT NULL,
  district TEXT NOT NULL,
  ward TEXT NOT NULL,
  address TEXT NOT NULL,
  note TEXT,
  voucher_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  product_name TEXT NOT NULL,
  variant_name TEXT,
  unit_price INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  line_total INTEGER NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE order_status_histories (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  actor TEXT NOT NULL,
  note TEXT,
  created_at DATETIME
);`, `
CREATE TABLE voucher_usages (
  id TEXT PRIMARY KEY,
  voucher_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (voucher_id, order_id)
);`, `
CREATE TABLE stock_adjustments (
  id TEXT PRIMARY KEY,
  order_item_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  UNIQUE (order_item_id, kind)
);`, `
CREATE TABLE order_code_counters (
  day TEXT PRIMARY KEY,
  value INTEGER NOT NULL DEFAULT 0
);`}

type orderFixture struct {
	db  *gorm.DB
	svc Service
}

func setupOrders(t *testing.T) *orderFixture {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range orderSchema {
		require.NoError(t, db.Exec(stmt).Error)
	}

	voucherSvc, err := voucher.NewService(voucher.ServiceParams{Repo: voucher.NewRepository(db)})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(db),
		Tx:         testTxRunner{db: db},
		Vouchers:   voucherSvc,
		Dispatcher: noopDispatcher{},
		Log:        logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
	})
	require.NoError(t, err)

	return &orderFixture{db: db, svc: svc}
}

// seedPlacedOrder mirrors what checkout leaves behind: an order with one
// reserved line against a product whose stock already came down.
func (f *orderFixture) seedPlacedOrder(t *testing.T, status enums.OrderStatus) *models.Order {
	t.Helper()

	product := models.Product{ID: uuid.New(), Name: "oolong", Slug: uuid.NewString(), Price: 100_000, Quantity: 8, Version: 1, IsActive: true}
	require.NoError(t, f.db.Create(&product).Error)

	itemID := uuid.New()
	order := models.Order{
		ID:            uuid.New(),
		Code:          "ORD250829" + uuid.NewString()[:4],
		UserID:        uuid.New(),
		Status:        status,
		PaymentMethod: enums.PaymentMethodCOD,
		Subtotal:      200_000,
		Total:         200_000,
		ReceiverName:  "Nguyen Van A",
		ReceiverPhone: "0900000000",
		City:          "Hanoi",
		District:      "Ba Dinh",
		Ward:          "Truc Bach",
		Address:       "12 Phan Dinh Phung",
		Items: []models.OrderItem{{
			ID:          itemID,
			ProductID:   product.ID,
			ProductName: "oolong",
			UnitPrice:   100_000,
			Quantity:    2,
			LineTotal:   200_000,
		}},
	}
	require.NoError(t, f.db.Create(&order).Error)

	reserve := models.StockAdjustment{
		ID:          uuid.New(),
		OrderItemID: itemID,
		Kind:        enums.StockAdjustmentReserve,
		ProductID:   product.ID,
		Quantity:    2,
	}
	require.NoError(t, f.db.Create(&reserve).Error)

	return &order
}

func (f *orderFixture) attachVoucherUsage(t *testing.T, order *models.Order) uuid.UUID {
	t.Helper()

	now := time.Now()
	v := models.Voucher{
		ID:            uuid.New(),
		Code:          uuid.NewString()[:8],
		DiscountType:  enums.DiscountFixed,
		DiscountValue: decimal.NewFromInt(10_000),
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(time.Hour),
		IsActive:      true,
	}
	require.NoError(t, f.db.Create(&v).Error)

	usage := models.VoucherUsage{ID: uuid.New(), VoucherID: v.ID, OrderID: order.ID, UserID: order.UserID}
	require.NoError(t, f.db.Create(&usage).Error)
	return v.ID
}

func (f *orderFixture) productQuantity(t *testing.T, order *models.Order) int {
	t.Helper()
	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", order.Items[0].ProductID).Error)
	return product.Quantity
}

func TestTransitionAppendsHistory(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	ctx := context.Background()
	order := f.seedPlacedOrder(t, enums.OrderStatusPending)

	updated, err := f.svc.Transition(ctx, order.ID, enums.OrderStatusConfirmed, enums.ActorRoleAdmin, nil)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, updated.Status)

	var entries []models.OrderStatusHistory
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.Equal(t, enums.OrderStatusPending, entries[0].FromStatus)
	require.Equal(t, enums.OrderStatusConfirmed, entries[0].ToStatus)
	require.Equal(t, enums.ActorRoleAdmin, entries[0].Actor)
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	ctx := context.Background()
	order := f.seedPlacedOrder(t, enums.OrderStatusPending)

	_, err := f.svc.Transition(ctx, order.ID, enums.OrderStatusShipping, enums.ActorRoleAdmin, nil)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	// Nothing moved and nothing was written.
	var stored models.Order
	require.NoError(t, f.db.First(&stored, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusPending, stored.Status)

	var historyCount int64
	require.NoError(t, f.db.Model(&models.OrderStatusHistory{}).Count(&historyCount).Error)
	require.EqualValues(t, 0, historyCount)
}

func TestTransitionUnknownOrder(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	_, err := f.svc.Transition(context.Background(), uuid.New(), enums.OrderStatusConfirmed, enums.ActorRoleAdmin, nil)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestCancelRestocksAndVoidsVoucher(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	ctx := context.Background()
	order := f.seedPlacedOrder(t, enums.OrderStatusPending)
	f.attachVoucherUsage(t, order)

	updated, err := f.svc.Cancel(ctx, order.ID, enums.ActorRoleCustomer, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, updated.Status)

	require.Equal(t, 10, f.productQuantity(t, order))

	var usageCount int64
	require.NoError(t, f.db.Model(&models.VoucherUsage{}).Count(&usageCount).Error)
	require.EqualValues(t, 0, usageCount)

	var entry models.OrderStatusHistory
	require.NoError(t, f.db.First(&entry, "order_id = ?", order.ID).Error)
	require.NotNil(t, entry.Note)
	require.Equal(t, "changed my mind", *entry.Note)
}

func TestCancelRequiresReason(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	order := f.seedPlacedOrder(t, enums.OrderStatusPending)

	_, err := f.svc.Cancel(context.Background(), order.ID, enums.ActorRoleCustomer, "  ")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDoubleCancelLeavesStockAlone(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	ctx := context.Background()
	order := f.seedPlacedOrder(t, enums.OrderStatusConfirmed)

	_, err := f.svc.Cancel(ctx, order.ID, enums.ActorRoleCustomer, "first")
	require.NoError(t, err)
	require.Equal(t, 10, f.productQuantity(t, order))

	_, err = f.svc.Cancel(ctx, order.ID, enums.ActorRoleCustomer, "second")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 10, f.productQuantity(t, order))
}

func TestCancelDeniedOnceShipping(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	order := f.seedPlacedOrder(t, enums.OrderStatusShipping)

	_, err := f.svc.Cancel(context.Background(), order.ID, enums.ActorRoleCustomer, "too late")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 8, f.productQuantity(t, order))
}

func TestReturnFlow(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	ctx := context.Background()
	order := f.seedPlacedOrder(t, enums.OrderStatusDelivered)
	f.attachVoucherUsage(t, order)

	requested, err := f.svc.RequestReturn(ctx, order.ID, enums.ActorRoleCustomer, "damaged box")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusReturnRequested, requested.Status)

	// Stock stays out until the return is approved.
	require.Equal(t, 8, f.productQuantity(t, order))

	approved, err := f.svc.ApproveReturn(ctx, order.ID, enums.ActorRoleAdmin, nil)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusReturned, approved.Status)
	require.Equal(t, 10, f.productQuantity(t, order))

	var usageCount int64
	require.NoError(t, f.db.Model(&models.VoucherUsage{}).Count(&usageCount).Error)
	require.EqualValues(t, 0, usageCount)
}

func TestRequestReturnOnlyAfterDelivery(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	order := f.seedPlacedOrder(t, enums.OrderStatusProcessing)

	_, err := f.svc.RequestReturn(context.Background(), order.ID, enums.ActorRoleCustomer, "no reason to have it yet")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestMarkPaidIsOrthogonalToLifecycle(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	ctx := context.Background()
	order := f.seedPlacedOrder(t, enums.OrderStatusPending)

	require.NoError(t, f.svc.MarkPaid(ctx, order.ID, "txn-123"))

	var stored models.Order
	require.NoError(t, f.db.First(&stored, "id = ?", order.ID).Error)
	require.True(t, stored.IsPaid)
	require.Equal(t, enums.OrderStatusPending, stored.Status)
	require.NotNil(t, stored.TransactionID)
	require.Equal(t, "txn-123", *stored.TransactionID)

	// Same confirmation again is a no-op; a different one conflicts.
	require.NoError(t, f.svc.MarkPaid(ctx, order.ID, "txn-123"))
	err := f.svc.MarkPaid(ctx, order.ID, "txn-456")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestNextCodeAdvancesPerDay(t *testing.T) {
	t.Parallel()

	f := setupOrders(t)
	repo := NewRepository(f.db)
	ctx := context.Background()
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	first, err := repo.NextCode(ctx, now)
	require.NoError(t, err)
	require.Equal(t, "ORD2608290001", first)

	second, err := repo.NextCode(ctx, now)
	require.NoError(t, err)
	require.Equal(t, "ORD2608290002", second)

	nextDay, err := repo.NextCode(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, "ORD2608300001", nextDay)
}
