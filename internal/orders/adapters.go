package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmarket/storefront-backend/internal/discounts"
	product "github.com/freshmarket/storefront-backend/internal/products"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
)

// Catalog is the stock surface used while an order commits. Every call runs on tx.
type Catalog interface {
	Rates(ctx context.Context, tx *gorm.DB) ([]models.WholesaleRate, error)
	LockProducts(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error)
}

// DiscountLedger validates and redeems codes inside the order transaction.
type DiscountLedger interface {
	Validate(ctx context.Context, tx *gorm.DB, input discounts.ValidateInput) (*discounts.Result, error)
	Redeem(ctx context.Context, tx *gorm.DB, discountID uuid.UUID) (bool, error)
}

type catalog struct {
	repo *product.Repository
}

// NewCatalog exposes the product repository as the order-time catalog.
func NewCatalog(repo *product.Repository) Catalog {
	return catalog{repo: repo}
}

func (c catalog) Rates(ctx context.Context, tx *gorm.DB) ([]models.WholesaleRate, error) {
	return c.repo.WithTx(tx).ListWholesaleRates(ctx)
}

func (c catalog) LockProducts(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	return c.repo.WithTx(tx).LockByIDs(ctx, ids)
}

func (c catalog) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error) {
	return c.repo.WithTx(tx).DecrementStock(ctx, productID, qty)
}

type discountLedger struct {
	validator *discounts.Validator
	repo      *discounts.Repository
}

// NewDiscountLedger pairs the validator with the repository that records usage.
func NewDiscountLedger(validator *discounts.Validator, repo *discounts.Repository) DiscountLedger {
	return discountLedger{validator: validator, repo: repo}
}

func (d discountLedger) Validate(ctx context.Context, tx *gorm.DB, input discounts.ValidateInput) (*discounts.Result, error) {
	return d.validator.WithTx(tx).Validate(ctx, input)
}

func (d discountLedger) Redeem(ctx context.Context, tx *gorm.DB, discountID uuid.UUID) (bool, error) {
	return d.repo.WithTx(tx).IncrementUsage(ctx, discountID)
}
