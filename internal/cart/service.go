package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmarket/storefront-backend/internal/pricing"
	"github.com/freshmarket/storefront-backend/pkg/db"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
)

// Service manages the anonymous session cart.
type Service interface {
	GetOrCreate(ctx context.Context, sessionToken string) (*models.Cart, error)
	AddItem(ctx context.Context, sessionToken string, productID uuid.UUID, qty int) (*CartView, error)
	SetItemQuantity(ctx context.Context, sessionToken string, productID uuid.UUID, qty int) (*CartView, error)
	Clear(ctx context.Context, sessionToken string) error
	View(ctx context.Context, sessionToken string) (*CartView, error)
}

type service struct {
	repo     CartRepository
	products productReader
	rates    rateReader
	policy   pricing.Policy
}

// NewService builds the cart service.
func NewService(repo CartRepository, products productReader, rates rateReader, policy pricing.Policy) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if rates == nil {
		return nil, fmt.Errorf("wholesale rate reader required")
	}
	return &service{repo: repo, products: products, rates: rates, policy: policy}, nil
}

func (s *service) GetOrCreate(ctx context.Context, sessionToken string) (*models.Cart, error) {
	token, err := normalizeToken(sessionToken)
	if err != nil {
		return nil, err
	}

	cart, err := s.repo.FindBySession(ctx, token)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	created := &models.Cart{SessionToken: token}
	if err := s.repo.Create(ctx, created); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
		}
		// another request for the same session won the insert
		cart, err = s.repo.FindBySession(ctx, token)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
		}
		return cart, nil
	}
	return created, nil
}

func (s *service) AddItem(ctx context.Context, sessionToken string, productID uuid.UUID, qty int) (*CartView, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	product, err := s.loadSellable(ctx, productID)
	if err != nil {
		return nil, err
	}
	cart, err := s.GetOrCreate(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	wanted := qty
	if existing != nil {
		wanted += existing.Quantity
	}
	if err := checkStock(product, wanted); err != nil {
		return nil, err
	}

	if err := s.repo.AddQuantity(ctx, cart.ID, productID, qty); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}
	return s.View(ctx, cart.SessionToken)
}

func (s *service) SetItemQuantity(ctx context.Context, sessionToken string, productID uuid.UUID, qty int) (*CartView, error) {
	cart, err := s.GetOrCreate(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	if qty <= 0 {
		if err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
		}
		return s.View(ctx, cart.SessionToken)
	}

	product, err := s.loadSellable(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := checkStock(product, qty); err != nil {
		return nil, err
	}
	if err := s.repo.SetQuantity(ctx, cart.ID, productID, qty); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	return s.View(ctx, cart.SessionToken)
}

func (s *service) Clear(ctx context.Context, sessionToken string) error {
	token, err := normalizeToken(sessionToken)
	if err != nil {
		return err
	}
	cart, err := s.repo.FindBySession(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if _, err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// View prices the cart without creating it.
func (s *service) View(ctx context.Context, sessionToken string) (*CartView, error) {
	token, err := normalizeToken(sessionToken)
	if err != nil {
		return nil, err
	}
	cart, err := s.repo.FindBySession(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return emptyView(), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	rates, err := s.rates.ListWholesaleRates(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wholesale rates")
	}
	return buildView(cart.Items, rates, s.policy), nil
}

func (s *service) loadSellable(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	product, err := s.products.FindByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// checkStock is advisory; the order transaction re-checks under lock.
func checkStock(product *models.Product, wanted int) error {
	if product.Stock >= wanted {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeBusinessRule, "only %d %s of %q left in stock", product.Stock, product.Unit, product.Name).
		WithDetails(map[string]any{
			"productId": product.ID.String(),
			"requested": wanted,
			"remaining": product.Stock,
		})
}

func normalizeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart session is required")
	}
	return token, nil
}
