package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minhdang/storefront-backend/internal/cart"
	"github.com/minhdang/storefront-backend/internal/orders"
	"github.com/minhdang/storefront-backend/internal/products"
	"github.com/minhdang/storefront-backend/internal/shipping"
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

type stubFees struct {
	fee int64
	err error
}

func (s stubFees) Quote(ctx context.Context, req shipping.FeeRequest) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.fee, nil
}

type recordingDispatcher struct {
	mu      sync.Mutex
	created []string
}

func (d *recordingDispatcher) OrderCreated(ctx context.Context, order *models.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, order.Code)
}

func (d *recordingDispatcher) OrderStatusChanged(ctx context.Context, order *models.Order, from, to enums.OrderStatus) {
}

var checkoutSchema = []string{`
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
CREATE TABLE carts (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  session_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  quantity INTEGER NOT NULL,
  selected INTEGER NOT NULL DEFAULT 1,
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

type checkoutFixture struct {
	db         *gorm.DB
	svc        Service
	carts      cart.Service
	dispatcher *recordingDispatcher
}

func setupCheckout(t *testing.T, fees shipping.FeeCalculator) *checkoutFixture {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range checkoutSchema {
		require.NoError(t, db.Exec(stmt).Error)
	}

	log := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	tx := testTxRunner{db: db}
	catalogRepo := products.NewRepository(db)
	cartRepo := cart.NewRepository(db)

	cartSvc, err := cart.NewService(cartRepo, tx, catalogRepo)
	require.NoError(t, err)

	voucherSvc, err := voucher.NewService(voucher.ServiceParams{Repo: voucher.NewRepository(db)})
	require.NoError(t, err)

	dispatcher := &recordingDispatcher{}
	svc, err := NewService(ServiceParams{
		Tx:         tx,
		Carts:      cartRepo,
		Orders:     orders.NewRepository(db),
		Catalog:    catalogRepo,
		Vouchers:   voucherSvc,
		Fees:       fees,
		Dispatcher: dispatcher,
		Log:        log,
	})
	require.NoError(t, err)

	return &checkoutFixture{db: db, svc: svc, carts: cartSvc, dispatcher: dispatcher}
}

func (f *checkoutFixture) seedProduct(t *testing.T, name string, price int64, qty int) uuid.UUID {
	t.Helper()
	product := models.Product{ID: uuid.New(), Name: name, Slug: name, Price: price, Quantity: qty, IsActive: true}
	require.NoError(t, f.db.Create(&product).Error)
	return product.ID
}

func validInput(userID uuid.UUID) CreateOrderInput {
	return CreateOrderInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		ReceiverName:  "Nguyen Van A",
		ReceiverPhone: "0900000000",
		City:          "Hanoi",
		District:      "Ba Dinh",
		Ward:          "Truc Bach",
		Address:       "12 Phan Dinh Phung",
	}
}

func TestCreateOrderHappyPath(t *testing.T) {
	t.Parallel()

	f := setupCheckout(t, stubFees{fee: 30_000})
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, "oolong", 100_000, 10)

	_, err := f.carts.AddItem(ctx, cart.ForUser(userID), productID, nil, 2)
	require.NoError(t, err)

	order, err := f.svc.CreateOrder(ctx, validInput(userID))
	require.NoError(t, err)

	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.EqualValues(t, 200_000, order.Subtotal)
	require.EqualValues(t, 30_000, order.ShippingFee)
	require.EqualValues(t, 230_000, order.Total)
	require.Len(t, order.Items, 1)
	require.Equal(t, "oolong", order.Items[0].ProductName)
	require.EqualValues(t, 100_000, order.Items[0].UnitPrice)

	wantPrefix := "ORD" + time.Now().Format("060102")
	require.Equal(t, wantPrefix+"0001", order.Code)

	// Stock came down and the cart line is gone.
	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", productID).Error)
	require.Equal(t, 8, product.Quantity)

	var cartLines int64
	require.NoError(t, f.db.Model(&models.CartItem{}).Count(&cartLines).Error)
	require.EqualValues(t, 0, cartLines)

	var historyCount int64
	require.NoError(t, f.db.Model(&models.OrderStatusHistory{}).Where("order_id = ?", order.ID).Count(&historyCount).Error)
	require.EqualValues(t, 1, historyCount)
}

func TestCreateOrderCodesAreSequentialPerDay(t *testing.T) {
	t.Parallel()

	f := setupCheckout(t, stubFees{fee: 0})
	ctx := context.Background()
	productID := f.seedProduct(t, "sencha", 50_000, 100)

	var codes []string
	for i := 0; i < 3; i++ {
		userID := uuid.New()
		_, err := f.carts.AddItem(ctx, cart.ForUser(userID), productID, nil, 1)
		require.NoError(t, err)
		order, err := f.svc.CreateOrder(ctx, validInput(userID))
		require.NoError(t, err)
		codes = append(codes, order.Code)
	}

	day := time.Now().Format("060102")
	require.Equal(t, []string{"ORD" + day + "0001", "ORD" + day + "0002", "ORD" + day + "0003"}, codes)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	t.Parallel()

	f := setupCheckout(t, stubFees{fee: 0})
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.CreateOrder(ctx, validInput(userID))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeEmptyOrder))

	// A cart with only unselected lines is just as empty.
	productID := f.seedProduct(t, "matcha", 80_000, 5)
	item, err := f.carts.AddItem(ctx, cart.ForUser(userID), productID, nil, 1)
	require.NoError(t, err)
	require.NoError(t, f.carts.ToggleSelected(ctx, cart.ForUser(userID), item.ID, false))

	_, err = f.svc.CreateOrder(ctx, validInput(userID))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeEmptyOrder))
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	f := setupCheckout(t, stubFees{fee: 0})
	ctx := context.Background()
	userID := uuid.New()
	plenty := f.seedProduct(t, "genmaicha", 40_000, 100)
	scarce := f.seedProduct(t, "gyokuro", 120_000, 1)

	_, err := f.carts.AddItem(ctx, cart.ForUser(userID), plenty, nil, 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ForUser(userID), scarce, nil, 3)
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, validInput(userID))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	// Nothing happened: no order, stock untouched, cart intact.
	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	require.EqualValues(t, 0, orderCount)

	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", plenty).Error)
	require.Equal(t, 100, product.Quantity)

	var cartLines int64
	require.NoError(t, f.db.Model(&models.CartItem{}).Count(&cartLines).Error)
	require.EqualValues(t, 2, cartLines)
}

func TestCreateOrderWithVoucher(t *testing.T) {
	t.Parallel()

	f := setupCheckout(t, stubFees{fee: 20_000})
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, "hojicha", 150_000, 10)

	now := time.Now()
	v := models.Voucher{
		ID:            uuid.New(),
		Code:          "TEN",
		DiscountType:  enums.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(time.Hour),
		IsActive:      true,
	}
	require.NoError(t, f.db.Create(&v).Error)

	_, err := f.carts.AddItem(ctx, cart.ForUser(userID), productID, nil, 2)
	require.NoError(t, err)

	input := validInput(userID)
	input.VoucherCode = "TEN"
	order, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)

	require.EqualValues(t, 300_000, order.Subtotal)
	require.EqualValues(t, 30_000, order.Discount)
	require.EqualValues(t, 290_000, order.Total)
	require.NotNil(t, order.VoucherID)
	require.Equal(t, v.ID, *order.VoucherID)

	var usageCount int64
	require.NoError(t, f.db.Model(&models.VoucherUsage{}).Where("order_id = ?", order.ID).Count(&usageCount).Error)
	require.EqualValues(t, 1, usageCount)

	// The persisted row carries the discounted totals too.
	var stored models.Order
	require.NoError(t, f.db.First(&stored, "id = ?", order.ID).Error)
	require.EqualValues(t, 290_000, stored.Total)
}

func TestCreateOrderExpiredVoucherAbortsEverything(t *testing.T) {
	t.Parallel()

	f := setupCheckout(t, stubFees{fee: 0})
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, "bancha", 60_000, 10)

	now := time.Now()
	v := models.Voucher{
		ID:            uuid.New(),
		Code:          "GONE",
		DiscountType:  enums.DiscountFixed,
		DiscountValue: decimal.NewFromInt(10_000),
		StartsAt:      now.Add(-2 * time.Hour),
		EndsAt:        now.Add(-time.Hour),
		IsActive:      true,
	}
	require.NoError(t, f.db.Create(&v).Error)

	_, err := f.carts.AddItem(ctx, cart.ForUser(userID), productID, nil, 1)
	require.NoError(t, err)

	input := validInput(userID)
	input.VoucherCode = "GONE"
	_, err = f.svc.CreateOrder(ctx, input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid))

	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	require.EqualValues(t, 0, orderCount)

	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", productID).Error)
	require.Equal(t, 10, product.Quantity)
}

func TestCreateOrderShippingFailureAborts(t *testing.T) {
	t.Parallel()

	f := setupCheckout(t, stubFees{err: pkgerrors.New(pkgerrors.CodeShippingUnavailable, "quote shipping fee")})
	ctx := context.Background()
	userID := uuid.New()
	productID := f.seedProduct(t, "puerh", 90_000, 10)

	_, err := f.carts.AddItem(ctx, cart.ForUser(userID), productID, nil, 1)
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, validInput(userID))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeShippingUnavailable))

	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	require.EqualValues(t, 0, orderCount)
}

func TestCreateOrderExplicitItemSubset(t *testing.T) {
	t.Parallel()

	f := setupCheckout(t, stubFees{fee: 0})
	ctx := context.Background()
	userID := uuid.New()
	wanted := f.seedProduct(t, "white peony", 70_000, 10)
	kept := f.seedProduct(t, "silver needle", 200_000, 10)

	wantedItem, err := f.carts.AddItem(ctx, cart.ForUser(userID), wanted, nil, 1)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, cart.ForUser(userID), kept, nil, 1)
	require.NoError(t, err)

	input := validInput(userID)
	input.ItemIDs = []uuid.UUID{wantedItem.ID}
	order, err := f.svc.CreateOrder(ctx, input)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	require.EqualValues(t, 70_000, order.Subtotal)

	// Only the converted line left the cart.
	var cartLines int64
	require.NoError(t, f.db.Model(&models.CartItem{}).Count(&cartLines).Error)
	require.EqualValues(t, 1, cartLines)

	input.ItemIDs = []uuid.UUID{uuid.New()}
	_, err = f.svc.CreateOrder(ctx, input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestCreateOrderValidatesInput(t *testing.T) {
	t.Parallel()

	f := setupCheckout(t, stubFees{fee: 0})
	ctx := context.Background()

	input := validInput(uuid.New())
	input.PaymentMethod = "cheque"
	_, err := f.svc.CreateOrder(ctx, input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	input = validInput(uuid.New())
	input.City = " "
	_, err = f.svc.CreateOrder(ctx, input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	input = validInput(uuid.Nil)
	_, err = f.svc.CreateOrder(ctx, input)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
