package pricing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshmarket/storefront-backend/pkg/config"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
)

// Line is one cart entry to be priced.
type Line struct {
	ProductID   uuid.UUID
	Name        string
	Unit        string
	RetailPrice decimal.Decimal
	Quantity    int
}

// Rate is a wholesale tier: every line is priced at PricePerKg once the
// cart-wide quantity reaches MinQuantity.
type Rate struct {
	MinQuantity int
	PricePerKg  decimal.Decimal
}

type PricedLine struct {
	Line
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Quote struct {
	Lines         []PricedLine
	Subtotal      decimal.Decimal
	TotalQuantity int
	AppliedRate   *Rate
}

// Resolve prices items against the wholesale table. The highest tier whose
// minimum is met applies to every line; otherwise retail prices are used.
func Resolve(items []Line, rates []Rate) Quote {
	totalQty := 0
	for _, item := range items {
		totalQty += item.Quantity
	}

	applied := selectRate(totalQty, rates)

	quote := Quote{
		Lines:         make([]PricedLine, 0, len(items)),
		Subtotal:      decimal.Zero,
		TotalQuantity: totalQty,
		AppliedRate:   applied,
	}
	for _, item := range items {
		unit := item.RetailPrice
		if applied != nil {
			unit = applied.PricePerKg
		}
		lineTotal := unit.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		quote.Lines = append(quote.Lines, PricedLine{
			Line:      item,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		quote.Subtotal = quote.Subtotal.Add(lineTotal)
	}
	return quote
}

func selectRate(totalQty int, rates []Rate) *Rate {
	if totalQty <= 0 || len(rates) == 0 {
		return nil
	}
	sorted := make([]Rate, len(rates))
	copy(sorted, rates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinQuantity > sorted[j].MinQuantity
	})
	for _, rate := range sorted {
		if rate.MinQuantity <= totalQty {
			selected := rate
			return &selected
		}
	}
	return nil
}

// RatesFromModels adapts persisted wholesale rates.
func RatesFromModels(rows []models.WholesaleRate) []Rate {
	rates := make([]Rate, 0, len(rows))
	for _, row := range rows {
		rates = append(rates, Rate{MinQuantity: row.MinQuantity, PricePerKg: row.PricePerKg})
	}
	return rates
}

// Policy holds the shipping rules. A threshold at or below zero is disabled.
type Policy struct {
	ShippingFee          decimal.Decimal
	FreeShippingSubtotal decimal.Decimal
	FreeShippingQuantity int
}

func PolicyFromConfig(cfg config.PricingConfig) Policy {
	return Policy{
		ShippingFee:          cfg.ShippingFeeAmount(),
		FreeShippingSubtotal: cfg.FreeShippingSubtotalAmount(),
		FreeShippingQuantity: cfg.FreeShippingQuantity,
	}
}

// Shipping returns the flat fee unless either free-shipping threshold is met.
func (p Policy) Shipping(subtotal decimal.Decimal, totalQty int) decimal.Decimal {
	if p.FreeShippingSubtotal.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingSubtotal) {
		return decimal.Zero
	}
	if p.FreeShippingQuantity > 0 && totalQty >= p.FreeShippingQuantity {
		return decimal.Zero
	}
	return p.ShippingFee
}

func (p Policy) Total(subtotal, shipping, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(shipping).Sub(discount)
}

// Totals is a quote with shipping and discount applied.
type Totals struct {
	Quote
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Summarize applies the policy to a resolved quote.
func (p Policy) Summarize(quote Quote, discount decimal.Decimal) Totals {
	shipping := p.Shipping(quote.Subtotal, quote.TotalQuantity)
	return Totals{
		Quote:    quote,
		Shipping: shipping,
		Discount: discount,
		Total:    p.Total(quote.Subtotal, shipping, discount),
	}
}
