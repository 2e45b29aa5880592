package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhdang/storefront-backend/internal/notifications"
	"github.com/minhdang/storefront-backend/internal/stock"
	"github.com/minhdang/storefront-backend/pkg/db/models"
	"github.com/minhdang/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
	"github.com/minhdang/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type voucherEngine interface {
	RemoveUsage(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Service drives the order lifecycle.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor enums.ActorRole, note *string) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor enums.ActorRole, reason string) (*models.Order, error)
	RequestReturn(ctx context.Context, orderID uuid.UUID, actor enums.ActorRole, reason string) (*models.Order, error)
	ApproveReturn(ctx context.Context, orderID uuid.UUID, actor enums.ActorRole, note *string) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, transactionID string) error
}

type service struct {
	repo       Repository
	tx         txRunner
	vouchers   voucherEngine
	dispatcher notifications.Dispatcher
	log        *logger.Logger
}

// ServiceParams groups dependencies for the order service.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Vouchers   voucherEngine
	Dispatcher notifications.Dispatcher
	Log        *logger.Logger
}

// NewService builds an order lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher engine required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		vouchers:   params.Vouchers,
		dispatcher: params.Dispatcher,
		log:        params.Log,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Transition moves the order along one lifecycle edge. The status update
// is conditional on the source status, so a concurrent transition makes
// exactly one caller win; the loser gets a state conflict.
func (s *service) Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor enums.ActorRole, note *string) (*models.Order, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if !actor.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown actor role")
	}
	return s.transition(ctx, orderID, to, actor, note, nil)
}

// Cancel aborts an open order: the edge to cancelled, a stock release per
// line and the voucher usage removal, all in one transaction. The releases
// are idempotent per line, so a retried cancel can never restock twice.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor enums.ActorRole, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}
	if !actor.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown actor role")
	}
	return s.transition(ctx, orderID, enums.OrderStatusCancelled, actor, &reason, s.restockAndVoidVoucher)
}

// RequestReturn opens a return on a delivered or completed order. Stock
// stays reserved until the return is approved.
func (s *service) RequestReturn(ctx context.Context, orderID uuid.UUID, actor enums.ActorRole, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}
	if !actor.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown actor role")
	}
	return s.transition(ctx, orderID, enums.OrderStatusReturnRequested, actor, &reason, nil)
}

// ApproveReturn settles a requested return: the goods come back to stock
// and the voucher slot is freed, exactly like a cancel.
func (s *service) ApproveReturn(ctx context.Context, orderID uuid.UUID, actor enums.ActorRole, note *string) (*models.Order, error) {
	if !actor.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown actor role")
	}
	return s.transition(ctx, orderID, enums.OrderStatusReturned, actor, note, s.restockAndVoidVoucher)
}

// MarkPaid records the payment confirmation. Payment is orthogonal to the
// lifecycle; it never moves the status.
func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID, transactionID string) error {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	affected, err := s.repo.MarkPaid(ctx, orderID, transactionID)
	if err != nil {
		return err
	}
	if affected == 0 {
		order, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.TransactionID != nil && *order.TransactionID == transactionID {
			// The same confirmation arrived twice.
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "order is already paid")
	}
	return nil
}

func (s *service) transition(
	ctx context.Context,
	orderID uuid.UUID,
	to enums.OrderStatus,
	actor enums.ActorRole,
	note *string,
	sideEffects func(ctx context.Context, tx *gorm.DB, order *models.Order) error,
) (*models.Order, error) {
	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		if !CanTransition(from, to) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot move to this status").
				WithDetails(map[string]any{"from": from.String(), "to": to.String()})
		}

		affected, err := repo.UpdateStatus(ctx, orderID, from, to)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		entry := models.OrderStatusHistory{
			ID:         uuid.New(),
			OrderID:    orderID,
			FromStatus: from,
			ToStatus:   to,
			Actor:      actor,
			Note:       note,
		}
		if err := repo.CreateHistory(ctx, &entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
		}

		if sideEffects != nil {
			if err := sideEffects(ctx, tx, order); err != nil {
				return err
			}
		}

		order.Status = to
		order.History = append(order.History, entry)
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.dispatcher.OrderStatusChanged(context.WithoutCancel(ctx), updated, from, updated.Status)

	ctx = s.log.WithOrderCode(ctx, updated.Code)
	ctx = s.log.WithFields(ctx, map[string]any{"from": from.String(), "to": updated.Status.String()})
	s.log.Info(ctx, "order status changed")
	return updated, nil
}

func (s *service) restockAndVoidVoucher(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for _, item := range order.Items {
		line := stock.Line{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			Quantity:    item.Quantity,
		}
		if _, err := stock.Release(ctx, tx, line); err != nil {
			return err
		}
	}
	return s.vouchers.RemoveUsage(ctx, tx, order.ID)
}
