package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WholesaleRate overrides every cart line's unit price once the cart-wide
// quantity reaches MinQuantity.
type WholesaleRate struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	MinQuantity int             `gorm:"column:min_quantity;not null;uniqueIndex;check:chk_wholesale_rates_min,min_quantity > 0"`
	PricePerKg  decimal.Decimal `gorm:"column:price_per_kg;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *WholesaleRate) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
