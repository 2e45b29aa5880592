package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhdang/storefront-backend/pkg/db/models"
)

// Repository is the read-only catalog surface the checkout core consumes.
// Stock quantity is owned by the stock ledger; nothing here writes.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a product with its variants.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariantByID loads a single variant row.
func (r *Repository) FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// UnitPrice resolves the sellable price for a (product, variant) pair: the
// base price plus the variant's adjustment. Variants do not carry an
// independent price.
func UnitPrice(product *models.Product, variant *models.ProductVariant) int64 {
	if product == nil {
		return 0
	}
	price := product.Price
	if variant != nil {
		price += variant.PriceAdjustment
	}
	if price < 0 {
		price = 0
	}
	return price
}

// AvailableQuantity returns the stock pool a cart line draws from: the
// variant's quantity when a variant is referenced, the product's otherwise.
func AvailableQuantity(product *models.Product, variant *models.ProductVariant) int {
	if variant != nil {
		return variant.Quantity
	}
	if product == nil {
		return 0
	}
	return product.Quantity
}
