package product

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshmarket/storefront-backend/pkg/db/models"
)

// ProductDTO is the public catalog shape.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Unit        string          `json:"unit"`
	InStock     bool            `json:"inStock"`
}

// WholesaleRateDTO mirrors a wholesale tier so clients can preview pricing.
type WholesaleRateDTO struct {
	MinQuantity int             `json:"minQuantity"`
	PricePerKg  decimal.Decimal `json:"pricePerKg"`
}

func productDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Unit:        p.Unit,
		InStock:     p.Stock > 0,
	}
}

func wholesaleRateDTO(r models.WholesaleRate) WholesaleRateDTO {
	return WholesaleRateDTO{MinQuantity: r.MinQuantity, PricePerKg: r.PricePerKg}
}
