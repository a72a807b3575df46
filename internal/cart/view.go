package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshmarket/storefront-backend/internal/pricing"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
)

// CartView is the priced cart returned to the storefront. It is computed with
// the same resolver used when an order is placed.
type CartView struct {
	Items         []CartLineView  `json:"items"`
	TotalQuantity int             `json:"totalQuantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingFee   decimal.Decimal `json:"shippingFee"`
	Total         decimal.Decimal `json:"total"`
	AppliedRate   *RateView       `json:"appliedWholesaleRate,omitempty"`
}

type CartLineView struct {
	ProductID   uuid.UUID       `json:"productId"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	Quantity    int             `json:"quantity"`
	RetailPrice decimal.Decimal `json:"retailPrice"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	Stock       int             `json:"stock"`
	Available   bool            `json:"available"`
}

type RateView struct {
	MinQuantity int             `json:"minQuantity"`
	PricePerKg  decimal.Decimal `json:"pricePerKg"`
}

// Lines adapts persisted cart items for the pricing resolver. Items whose
// product was not loaded are skipped.
func Lines(items []models.CartItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		lines = append(lines, pricing.Line{
			ProductID:   item.ProductID,
			Name:        item.Product.Name,
			Unit:        item.Product.Unit,
			RetailPrice: item.Product.Price,
			Quantity:    item.Quantity,
		})
	}
	return lines
}

func emptyView() *CartView {
	return &CartView{
		Items:       []CartLineView{},
		Subtotal:    decimal.Zero,
		ShippingFee: decimal.Zero,
		Total:       decimal.Zero,
	}
}

func buildView(items []models.CartItem, rates []models.WholesaleRate, policy pricing.Policy) *CartView {
	if len(items) == 0 {
		return emptyView()
	}

	stock := make(map[uuid.UUID]*models.Product, len(items))
	for _, item := range items {
		stock[item.ProductID] = item.Product
	}

	quote := pricing.Resolve(Lines(items), pricing.RatesFromModels(rates))
	totals := policy.Summarize(quote, decimal.Zero)

	view := &CartView{
		Items:         make([]CartLineView, 0, len(quote.Lines)),
		TotalQuantity: quote.TotalQuantity,
		Subtotal:      totals.Subtotal,
		ShippingFee:   totals.Shipping,
		Total:         totals.Total,
	}
	if quote.AppliedRate != nil {
		view.AppliedRate = &RateView{MinQuantity: quote.AppliedRate.MinQuantity, PricePerKg: quote.AppliedRate.PricePerKg}
	}
	for _, line := range quote.Lines {
		product := stock[line.ProductID]
		view.Items = append(view.Items, CartLineView{
			ProductID:   line.ProductID,
			Name:        line.Name,
			Unit:        line.Unit,
			Quantity:    line.Quantity,
			RetailPrice: line.RetailPrice,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
			Stock:       product.Stock,
			Available:   product.IsActive && product.Stock >= line.Quantity,
		})
	}
	return view
}
