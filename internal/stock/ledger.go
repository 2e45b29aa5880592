package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/minhdang/storefront-backend/pkg/db"
	"github.com/minhdang/storefront-backend/pkg/db/models"
	"github.com/minhdang/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
)

// Line identifies one order line's claim on a stock row.
type Line struct {
	OrderItemID uuid.UUID
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	Quantity    int
}

// Reserve atomically checks and decrements stock for every line, in order.
// The check and the write are one conditional UPDATE keyed on the current
// quantity, so concurrent reservations against the same row are linearized
// by the database. When a line cannot be satisfied, every decrement already
// applied in this call is put back before the error surfaces, so a caller
// never sees a partial reservation even outside a wrapping transaction.
func Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	for i, line := range lines {
		if err := validateLine(line); err != nil {
			return multierr.Append(err, undoReservations(ctx, tx, lines[:i]))
		}
		ok, err := decrement(ctx, tx, line)
		if err != nil {
			return multierr.Append(
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock"),
				undoReservations(ctx, tx, lines[:i]),
			)
		}
		if !ok {
			insufficient := pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for product").
				WithDetails(map[string]any{"product_id": line.ProductID, "requested": line.Quantity})
			return multierr.Append(insufficient, undoReservations(ctx, tx, lines[:i]))
		}
		adjustment := models.StockAdjustment{
			OrderItemID: line.OrderItemID,
			Kind:        enums.StockAdjustmentReserve,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			Quantity:    line.Quantity,
		}
		if err := tx.WithContext(ctx).Create(&adjustment).Error; err != nil {
			return multierr.Append(
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock reservation"),
				undoReservations(ctx, tx, lines[:i+1]),
			)
		}
	}
	return nil
}

// Release puts a line's quantity back. The adjustment row is inserted first;
// its unique (order_item_id, kind) index turns a second release of the same
// line into a reported no-op, so cancel and return can never double-restock.
// The returned bool is true when the increment was actually applied.
func Release(ctx context.Context, tx *gorm.DB, line Line) (bool, error) {
	if err := validateLine(line); err != nil {
		return false, err
	}

	adjustment := models.StockAdjustment{
		OrderItemID: line.OrderItemID,
		Kind:        enums.StockAdjustmentRelease,
		ProductID:   line.ProductID,
		VariantID:   line.VariantID,
		Quantity:    line.Quantity,
	}
	if err := tx.WithContext(ctx).Create(&adjustment).Error; err != nil {
		if db.IsUniqueViolation(err, "idx_stock_adjustments_line_kind") {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock release")
	}

	if err := increment(ctx, tx, line); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	return true, nil
}

func validateLine(line Line) error {
	if line.OrderItemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
	}
	if line.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if line.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return nil
}

func decrement(ctx context.Context, tx *gorm.DB, line Line) (bool, error) {
	updates := map[string]any{
		"quantity": gorm.Expr("quantity - ?", line.Quantity),
		"version":  gorm.Expr("version + 1"),
	}
	var res *gorm.DB
	if line.VariantID != nil {
		res = tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ? AND quantity >= ?", *line.VariantID, line.Quantity).
			UpdateColumns(updates)
	} else {
		res = tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND quantity >= ?", line.ProductID, line.Quantity).
			UpdateColumns(updates)
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func increment(ctx context.Context, tx *gorm.DB, line Line) error {
	updates := map[string]any{
		"quantity": gorm.Expr("quantity + ?", line.Quantity),
		"version":  gorm.Expr("version + 1"),
	}
	var res *gorm.DB
	if line.VariantID != nil {
		res = tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ?", *line.VariantID).
			UpdateColumns(updates)
	} else {
		res = tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", line.ProductID).
			UpdateColumns(updates)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("stock row not found")
	}
	return nil
}

// undoReservations reverses decrements applied earlier in a failed Reserve
// call, newest first, and drops their adjustment rows. Compensation errors
// are collected and appended to the primary error so none of them is lost.
func undoReservations(ctx context.Context, tx *gorm.DB, applied []Line) error {
	var errs error
	for i := len(applied) - 1; i >= 0; i-- {
		line := applied[i]
		if err := increment(ctx, tx, line); err != nil {
			errs = multierr.Append(errs, err)
		}
		if err := tx.WithContext(ctx).
			Where("order_item_id = ? AND kind = ?", line.OrderItemID, enums.StockAdjustmentReserve).
			Delete(&models.StockAdjustment{}).Error; err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
