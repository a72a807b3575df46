package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
)

// Repository reads discount codes and their usage.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, discount *models.Discount) error {
	return r.db.WithContext(ctx).Create(discount).Error
}

// FindByCode loads the discount by its normalized code. When forUpdate is set
// the row stays locked until the surrounding transaction ends.
func (r *Repository) FindByCode(ctx context.Context, code string, forUpdate bool) (*models.Discount, error) {
	query := r.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var discount models.Discount
	if err := query.Where("code = ?", code).First(&discount).Error; err != nil {
		return nil, err
	}
	return &discount, nil
}

// CountPhoneUses counts the non-cancelled orders placed by phone with code.
func (r *Repository) CountPhoneUses(ctx context.Context, phone, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("phone = ? AND discount_code = ? AND status <> ?", phone, code, enums.OrderStatusCancelled).
		Count(&count).Error
	return count, err
}

// IncrementUsage bumps used_count while the usage limit still allows it. It
// reports false when the limit was already reached.
func (r *Repository) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", id).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
