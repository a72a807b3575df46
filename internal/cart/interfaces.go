package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmarket/storefront-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindBySession(ctx context.Context, sessionToken string) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	AddQuantity(ctx context.Context, cartID, productID uuid.UUID, qty int) error
	SetQuantity(ctx context.Context, cartID, productID uuid.UUID, qty int) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) (int64, error)
}

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type rateReader interface {
	ListWholesaleRates(ctx context.Context) ([]models.WholesaleRate, error)
}
