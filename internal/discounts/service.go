package discounts

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
)

// PreviewResult is the client-facing outcome of a code check. Business
// refusals are reported in-band with OK=false.
type PreviewResult struct {
	OK          bool             `json:"ok"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description string           `json:"description,omitempty"`
	Reason      Reason           `json:"reason,omitempty"`
	Message     string           `json:"message,omitempty"`
}

// Service previews discount codes for the storefront.
type Service interface {
	Preview(ctx context.Context, input ValidateInput) (*PreviewResult, error)
}

type service struct {
	validator *Validator
}

func NewService(validator *Validator) (Service, error) {
	if validator == nil {
		return nil, fmt.Errorf("discount validator required")
	}
	return &service{validator: validator}, nil
}

func (s *service) Preview(ctx context.Context, input ValidateInput) (*PreviewResult, error) {
	if input.Subtotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must not be negative")
	}

	result, err := s.validator.Validate(ctx, input)
	if err != nil {
		if rej, ok := AsRejection(err); ok {
			return &PreviewResult{OK: false, Reason: rej.Reason, Message: rej.Message}, nil
		}
		return nil, err
	}

	amount := result.Amount
	return &PreviewResult{OK: true, Amount: &amount, Description: result.Description}, nil
}
