package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhdang/storefront-backend/internal/products"
	"github.com/minhdang/storefront-backend/pkg/db"
	"github.com/minhdang/storefront-backend/pkg/db/models"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// MergeAdjustment reports one guest line whose quantity was reduced while
// merging into the user cart because the summed quantity outran stock.
type MergeAdjustment struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Requested int        `json:"requested"`
	Kept      int        `json:"kept"`
}

// PricedItem is a cart line joined with its live catalog price.
type PricedItem struct {
	Item      models.CartItem `json:"item"`
	UnitPrice int64           `json:"unit_price"`
	LineTotal int64           `json:"line_total"`
}

// Service exposes cart operations for one owner at a time.
type Service interface {
	GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) error
	ToggleSelected(ctx context.Context, owner Owner, itemID uuid.UUID, selected bool) error
	SelectAll(ctx context.Context, owner Owner, selected bool) error
	Clear(ctx context.Context, owner Owner) error
	ClearSelected(ctx context.Context, owner Owner) error
	MergeGuestCart(ctx context.Context, sessionID string, userID uuid.UUID) ([]MergeAdjustment, error)
	PricedItems(ctx context.Context, owner Owner, selectedOnly bool) ([]PricedItem, int64, error)
	CartTotal(ctx context.Context, owner Owner) (int64, error)
	SelectedTotal(ctx context.Context, owner Owner) (int64, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	catalog catalog
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, catalog catalog) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	return &service{repo: repo, tx: tx, catalog: catalog}, nil
}

// GetOrCreate returns the owner's cart, creating it when missing. Two
// concurrent first requests race on the insert; the per-identity unique
// index rejects the loser, which then re-reads the winner's row.
func (s *service) GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	return getOrCreate(ctx, s.repo, owner)
}

func getOrCreate(ctx context.Context, repo Repository, owner Owner) (*models.Cart, error) {
	cart, err := repo.FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	fresh := models.Cart{ID: uuid.New(), UserID: owner.UserID(), SessionID: owner.SessionID()}
	if createErr := repo.Create(ctx, &fresh); createErr != nil {
		if db.IsUniqueViolation(createErr, "idx_carts") {
			return repo.FindByOwner(ctx, owner)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create cart")
	}
	fresh.Items = []models.CartItem{}
	return &fresh, nil
}

// AddItem adds quantity of a (product, variant) pair to the cart. An
// existing line for the same pair is incremented, never duplicated.
func (s *service) AddItem(ctx context.Context, owner Owner, productID uuid.UUID, variantID *uuid.UUID, quantity int) (*models.CartItem, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if _, _, err := s.resolveCatalogPair(ctx, productID, variantID); err != nil {
		return nil, err
	}

	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindLine(ctx, cart.ID, productID, variantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Relative increment; two concurrent adds to the same line must
		// both land rather than overwrite each other.
		if err := s.repo.IncrementItemQuantity(ctx, existing.ID, quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment cart line quantity")
		}
		return s.repo.FindItem(ctx, cart.ID, existing.ID)
	}

	item := models.CartItem{
		ID:        uuid.New(),
		CartID:    cart.ID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		Selected:  true,
	}
	if err := s.repo.CreateItem(ctx, &item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
	}
	return &item, nil
}

func (s *service) UpdateQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return err
	}
	return s.repo.UpdateItemQuantity(ctx, item.ID, quantity)
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) error {
	item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return err
	}
	return s.repo.DeleteItem(ctx, item.ID)
}

func (s *service) ToggleSelected(ctx context.Context, owner Owner, itemID uuid.UUID, selected bool) error {
	item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return err
	}
	return s.repo.UpdateItemSelected(ctx, item.ID, selected)
}

func (s *service) SelectAll(ctx context.Context, owner Owner, selected bool) error {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return err
	}
	return s.repo.UpdateAllSelected(ctx, cart.ID, selected)
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return err
	}
	return s.repo.DeleteItems(ctx, cart.ID)
}

func (s *service) ClearSelected(ctx context.Context, owner Owner) error {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return err
	}
	return s.repo.DeleteSelectedItems(ctx, cart.ID)
}

// MergeGuestCart folds a guest session's cart into the user's cart in one
// transaction. Matching lines are summed and capped to available stock;
// the cap is reported, never an error. The guest cart is gone afterwards.
func (s *service) MergeGuestCart(ctx context.Context, sessionID string, userID uuid.UUID) ([]MergeAdjustment, error) {
	guestOwner := ForGuest(sessionID)
	if err := guestOwner.validate(); err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var adjustments []MergeAdjustment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		guestCart, err := repo.FindByOwner(ctx, guestOwner)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return nil
			}
			return err
		}

		userCart, err := getOrCreate(ctx, repo, ForUser(userID))
		if err != nil {
			return err
		}

		for _, guestItem := range guestCart.Items {
			adjustment, err := s.mergeLine(ctx, repo, userCart.ID, guestItem)
			if err != nil {
				return err
			}
			if adjustment != nil {
				adjustments = append(adjustments, *adjustment)
			}
		}

		if err := repo.DeleteItems(ctx, guestCart.ID); err != nil {
			return err
		}
		return repo.Delete(ctx, guestCart.ID)
	})
	if err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (s *service) mergeLine(ctx context.Context, repo Repository, userCartID uuid.UUID, guestItem models.CartItem) (*MergeAdjustment, error) {
	product, variant, err := s.resolveCatalogPair(ctx, guestItem.ProductID, guestItem.VariantID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			// The product vanished while the guest was shopping; the
			// line cannot be carried over.
			return &MergeAdjustment{
				ProductID: guestItem.ProductID,
				VariantID: guestItem.VariantID,
				Requested: guestItem.Quantity,
				Kept:      0,
			}, nil
		}
		return nil, err
	}
	available := products.AvailableQuantity(product, variant)

	existing, err := repo.FindLine(ctx, userCartID, guestItem.ProductID, guestItem.VariantID)
	if err != nil {
		return nil, err
	}

	current := 0
	if existing != nil {
		current = existing.Quantity
	}
	desired := current + guestItem.Quantity
	kept := desired
	if kept > available {
		kept = available
	}

	var adjustment *MergeAdjustment
	if kept < desired {
		adjustment = &MergeAdjustment{
			ProductID: guestItem.ProductID,
			VariantID: guestItem.VariantID,
			Requested: desired,
			Kept:      kept,
		}
	}

	switch {
	case existing != nil && kept != current:
		if kept < 1 {
			kept = current
			adjustment.Kept = kept
			return adjustment, nil
		}
		if err := repo.IncrementItemQuantity(ctx, existing.ID, kept-current); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart line")
		}
	case existing == nil && kept > 0:
		moved := models.CartItem{
			ID:        uuid.New(),
			CartID:    userCartID,
			ProductID: guestItem.ProductID,
			VariantID: guestItem.VariantID,
			Quantity:  kept,
			Selected:  guestItem.Selected,
		}
		if err := repo.CreateItem(ctx, &moved); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move cart line")
		}
	}
	return adjustment, nil
}

// PricedItems joins each cart line with its live catalog price. Prices
// are never cached on the line, so a catalog change shows up immediately.
func (s *service) PricedItems(ctx context.Context, owner Owner, selectedOnly bool) ([]PricedItem, int64, error) {
	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, 0, err
	}

	priced := make([]PricedItem, 0, len(cart.Items))
	var total int64
	for _, item := range cart.Items {
		if selectedOnly && !item.Selected {
			continue
		}
		product, variant, err := s.resolveCatalogPair(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return nil, 0, err
		}
		unit := products.UnitPrice(product, variant)
		line := unit * int64(item.Quantity)
		priced = append(priced, PricedItem{Item: item, UnitPrice: unit, LineTotal: line})
		total += line
	}
	return priced, total, nil
}

func (s *service) CartTotal(ctx context.Context, owner Owner) (int64, error) {
	_, total, err := s.PricedItems(ctx, owner, false)
	return total, err
}

func (s *service) SelectedTotal(ctx context.Context, owner Owner) (int64, error) {
	_, total, err := s.PricedItems(ctx, owner, true)
	return total, err
}

func (s *service) ownedItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.CartItem, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.repo.FindItem(ctx, cart.ID, itemID)
}

func (s *service) resolveCatalogPair(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.Product, *models.ProductVariant, error) {
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if variantID == nil {
		return product, nil, nil
	}
	for i := range product.Variants {
		if product.Variants[i].ID == *variantID {
			return product, &product.Variants[i], nil
		}
	}
	return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
}
