package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshmarket/storefront-backend/pkg/enums"
)

// Discount is a promo code. Code is stored uppercase.
type Discount struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code              string             `gorm:"column:code;type:text;not null;uniqueIndex"`
	Type              enums.DiscountType `gorm:"column:type;type:text;not null"`
	Value             decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	Description       *string            `gorm:"column:description;type:text"`
	IsActive          bool               `gorm:"column:is_active;not null;default:true"`
	StartDate         *time.Time         `gorm:"column:start_date"`
	EndDate           *time.Time         `gorm:"column:end_date"`
	MinPurchaseAmount *decimal.Decimal   `gorm:"column:min_purchase_amount;type:numeric(12,2)"`
	UsageLimit        *int               `gorm:"column:usage_limit"`
	UsedCount         int                `gorm:"column:used_count;not null;default:0;check:chk_discounts_used_count,used_count >= 0"`
	UserUsageLimit    *int               `gorm:"column:user_usage_limit"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Discount) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
