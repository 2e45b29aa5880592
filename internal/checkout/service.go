package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhdang/storefront-backend/internal/cart"
	"github.com/minhdang/storefront-backend/internal/notifications"
	"github.com/minhdang/storefront-backend/internal/orders"
	"github.com/minhdang/storefront-backend/internal/products"
	"github.com/minhdang/storefront-backend/internal/shipping"
	"github.com/minhdang/storefront-backend/internal/stock"
	"github.com/minhdang/storefront-backend/pkg/db/models"
	"github.com/minhdang/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
	"github.com/minhdang/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalog interface {
	WithTx(tx *gorm.DB) *products.Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type voucherEngine interface {
	Apply(ctx context.Context, tx *gorm.DB, code string, userID, orderID uuid.UUID, orderAmount int64) (*models.Voucher, int64, error)
}

// CreateOrderInput carries everything needed to turn cart lines into an
// order.
type CreateOrderInput struct {
	UserID        uuid.UUID
	ItemIDs       []uuid.UUID
	VoucherCode   string
	PaymentMethod enums.PaymentMethod
	ReceiverName  string
	ReceiverPhone string
	City          string
	District      string
	Ward          string
	Address       string
	Note          *string
}

// Service assembles orders out of carts.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
}

type service struct {
	tx         txRunner
	carts      cart.Repository
	orders     orders.Repository
	catalog    catalog
	vouchers   voucherEngine
	fees       shipping.FeeCalculator
	dispatcher notifications.Dispatcher
	log        *logger.Logger
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Tx         txRunner
	Carts      cart.Repository
	Orders     orders.Repository
	Catalog    catalog
	Vouchers   voucherEngine
	Fees       shipping.FeeCalculator
	Dispatcher notifications.Dispatcher
	Log        *logger.Logger
}

// NewService builds a checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher engine required")
	}
	if params.Fees == nil {
		return nil, fmt.Errorf("fee calculator required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:         params.Tx,
		carts:      params.Carts,
		orders:     params.Orders,
		catalog:    params.Catalog,
		vouchers:   params.Vouchers,
		fees:       params.Fees,
		dispatcher: params.Dispatcher,
		log:        params.Log,
	}, nil
}

// CreateOrder converts the user's chosen cart lines into a pending order.
// Everything runs in one transaction: item snapshots, the voucher
// redemption, stock reservations, the order code and the cart cleanup
// either all land or none do.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		orderRepo := s.orders.WithTx(tx)
		catalog := s.catalog.WithTx(tx)

		userCart, chosen, err := s.resolveLines(ctx, carts, input)
		if err != nil {
			return err
		}

		orderID := uuid.New()
		items, stockLines, subtotal, err := s.snapshotLines(ctx, catalog, orderID, chosen)
		if err != nil {
			return err
		}

		fee, err := s.fees.Quote(ctx, shipping.FeeRequest{
			Subtotal:  subtotal,
			City:      input.City,
			District:  input.District,
			Ward:      input.Ward,
			Address:   input.Address,
			ItemCount: len(items),
		})
		if err != nil {
			return err
		}

		code, err := orderRepo.NextCode(ctx, time.Now())
		if err != nil {
			return err
		}

		draft := &models.Order{
			ID:            orderID,
			Code:          code,
			UserID:        input.UserID,
			Status:        enums.OrderStatusPending,
			PaymentMethod: input.PaymentMethod,
			Subtotal:      subtotal,
			ShippingFee:   fee,
			ReceiverName:  input.ReceiverName,
			ReceiverPhone: input.ReceiverPhone,
			City:          input.City,
			District:      input.District,
			Ward:          input.Ward,
			Address:       input.Address,
			Note:          input.Note,
			Items:         items,
			History: []models.OrderStatusHistory{{
				ID:         uuid.New(),
				OrderID:    orderID,
				FromStatus: enums.OrderStatusPending,
				ToStatus:   enums.OrderStatusPending,
				Actor:      enums.ActorRoleCustomer,
			}},
		}
		draft.Total = total(subtotal, 0, fee)
		if err := orderRepo.Create(ctx, draft); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := stock.Reserve(ctx, tx, stockLines); err != nil {
			return err
		}

		if code := strings.TrimSpace(input.VoucherCode); code != "" {
			voucher, discount, err := s.vouchers.Apply(ctx, tx, code, input.UserID, orderID, subtotal)
			if err != nil {
				return err
			}
			draft.VoucherID = &voucher.ID
			draft.Discount = discount
			draft.Total = total(subtotal, discount, fee)
			err = tx.WithContext(ctx).
				Model(&models.Order{}).
				Where("id = ?", orderID).
				Updates(map[string]any{
					"voucher_id": voucher.ID,
					"discount":   discount,
					"total":      draft.Total,
				}).Error
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply voucher to order")
			}
		}

		itemIDs := make([]uuid.UUID, 0, len(chosen))
		for _, line := range chosen {
			itemIDs = append(itemIDs, line.ID)
		}
		if err := carts.DeleteItemsByID(ctx, userCart.ID, itemIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear converted cart lines")
		}

		order = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.dispatcher.OrderCreated(context.WithoutCancel(ctx), order)

	ctx = s.log.WithOrderCode(ctx, order.Code)
	s.log.Info(ctx, "order created")
	return order, nil
}

func (s *service) resolveLines(ctx context.Context, carts cart.Repository, input CreateOrderInput) (*models.Cart, []models.CartItem, error) {
	userCart, err := carts.FindByOwner(ctx, cart.ForUser(input.UserID))
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeEmptyOrder, "no items to order")
		}
		return nil, nil, err
	}

	var chosen []models.CartItem
	if len(input.ItemIDs) > 0 {
		byID := make(map[uuid.UUID]models.CartItem, len(userCart.Items))
		for _, item := range userCart.Items {
			byID[item.ID] = item
		}
		for _, id := range input.ItemIDs {
			item, ok := byID[id]
			if !ok {
				return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").
					WithDetails(map[string]any{"item_id": id})
			}
			chosen = append(chosen, item)
		}
	} else {
		for _, item := range userCart.Items {
			if item.Selected {
				chosen = append(chosen, item)
			}
		}
	}

	if len(chosen) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeEmptyOrder, "no items to order")
	}
	return userCart, chosen, nil
}

func (s *service) snapshotLines(ctx context.Context, catalog *products.Repository, orderID uuid.UUID, chosen []models.CartItem) ([]models.OrderItem, []stock.Line, int64, error) {
	items := make([]models.OrderItem, 0, len(chosen))
	stockLines := make([]stock.Line, 0, len(chosen))
	var subtotal int64

	for _, line := range chosen {
		product, err := catalog.FindByID(ctx, line.ProductID)
		if err != nil {
			return nil, nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product for order")
		}
		if !product.IsActive {
			return nil, nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available").
				WithDetails(map[string]any{"product_id": product.ID})
		}

		var variant *models.ProductVariant
		var variantName *string
		if line.VariantID != nil {
			for i := range product.Variants {
				if product.Variants[i].ID == *line.VariantID {
					variant = &product.Variants[i]
					break
				}
			}
			if variant == nil {
				return nil, nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
			}
			variantName = &variant.Name
		}

		unit := products.UnitPrice(product, variant)
		itemID := uuid.New()
		items = append(items, models.OrderItem{
			ID:          itemID,
			OrderID:     orderID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: product.Name,
			VariantName: variantName,
			UnitPrice:   unit,
			Quantity:    line.Quantity,
			LineTotal:   unit * int64(line.Quantity),
		})
		stockLines = append(stockLines, stock.Line{
			OrderItemID: itemID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			Quantity:    line.Quantity,
		})
		subtotal += unit * int64(line.Quantity)
	}
	return items, stockLines, subtotal, nil
}

func validateInput(input CreateOrderInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"receiver_name", input.ReceiverName},
		{"receiver_phone", input.ReceiverPhone},
		{"city", input.City},
		{"district", input.District},
		{"ward", input.Ward},
		{"address", input.Address},
	} {
		if strings.TrimSpace(field.value) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, field.name+" required")
		}
	}
	return nil
}

// total never goes below zero even when the discount outruns the charges.
func total(subtotal, discount, fee int64) int64 {
	t := subtotal - discount + fee
	if t < 0 {
		return 0
	}
	return t
}
