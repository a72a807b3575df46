package discounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

type ValidateInput struct {
	Code     string
	Subtotal decimal.Decimal
	Phone    string
}

type Result struct {
	OK          bool
	Amount      decimal.Decimal
	Description string
	Discount    *models.Discount
}

// Validator checks whether a code applies to a subtotal. It never writes.
type Validator struct {
	repo   *Repository
	now    func() time.Time
	locked bool
}

// NewValidator builds a validator reading through repo. A nil clock uses time.Now.
func NewValidator(repo *Repository, clock func() time.Time) (*Validator, error) {
	if repo == nil {
		return nil, fmt.Errorf("discount repository required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Validator{repo: repo, now: clock}, nil
}

// WithTx returns a validator reading inside tx that locks the discount row.
func (v *Validator) WithTx(tx *gorm.DB) *Validator {
	return &Validator{repo: v.repo.WithTx(tx), now: v.now, locked: true}
}

// NormalizeCode uppercases and trims a user-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate returns the applicable amount, a *Rejection for business refusals,
// or a *pkgerrors.Error when the store could not be read.
func (v *Validator) Validate(ctx context.Context, input ValidateInput) (*Result, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, reject(ReasonNotFound, "discount code not found")
	}

	discount, err := v.repo.FindByCode(ctx, code, v.locked)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reject(ReasonNotFound, "discount code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load discount")
	}
	if !discount.IsActive {
		return nil, reject(ReasonNotFound, "discount code not found")
	}

	now := v.now()
	if discount.StartDate != nil && now.Before(*discount.StartDate) {
		return nil, reject(ReasonNotStarted, "discount code is not active yet")
	}
	if discount.EndDate != nil && now.After(*discount.EndDate) {
		return nil, reject(ReasonExpired, "discount code has expired")
	}

	if discount.UsageLimit != nil && discount.UsedCount >= *discount.UsageLimit {
		return nil, reject(ReasonUsageLimitReached, "discount code usage limit reached")
	}

	if discount.MinPurchaseAmount != nil && input.Subtotal.LessThan(*discount.MinPurchaseAmount) {
		return nil, reject(ReasonMinPurchaseNotMet,
			fmt.Sprintf("minimum purchase of %s required for this code", discount.MinPurchaseAmount.StringFixed(2)))
	}

	phone := strings.TrimSpace(input.Phone)
	if discount.UserUsageLimit != nil && phone != "" {
		used, err := v.repo.CountPhoneUses(ctx, phone, code)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count discount uses")
		}
		if used >= int64(*discount.UserUsageLimit) {
			return nil, reject(ReasonUserUsageLimitReached, "you have already used this discount code")
		}
	}

	return &Result{
		OK:          true,
		Amount:      Amount(discount.Type, discount.Value, input.Subtotal),
		Description: describe(discount),
		Discount:    discount,
	}, nil
}

// Amount computes the discount for subtotal, capped at the subtotal.
func Amount(kind enums.DiscountType, value, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch kind {
	case enums.DiscountTypePercentage:
		amount = subtotal.Mul(value).Div(hundred)
	case enums.DiscountTypeFixed:
		amount = value
	default:
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

func describe(d *models.Discount) string {
	if d.Description != nil && strings.TrimSpace(*d.Description) != "" {
		return *d.Description
	}
	if d.Type == enums.DiscountTypePercentage {
		return fmt.Sprintf("%s%% off", d.Value.String())
	}
	return fmt.Sprintf("%s off", d.Value.StringFixed(2))
}
