package checkout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// IsValidPhone reports whether phone is exactly ten ASCII digits.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ShippingInput is the delivery block submitted with an order.
type ShippingInput struct {
	CustomerName string
	Phone        string
	Address      string
}

// Normalize trims surrounding whitespace from every field.
func (s ShippingInput) Normalize() ShippingInput {
	return ShippingInput{
		CustomerName: strings.TrimSpace(s.CustomerName),
		Phone:        strings.TrimSpace(s.Phone),
		Address:      strings.TrimSpace(s.Address),
	}
}

// ValidateShipping checks the normalized delivery block and reports every invalid field.
func ValidateShipping(input ShippingInput) error {
	fields := map[string]string{}
	if input.CustomerName == "" {
		fields["customerName"] = "is required"
	}
	if !IsValidPhone(input.Phone) {
		fields["phone"] = "must be exactly 10 digits"
	}
	if input.Address == "" {
		fields["address"] = "is required"
	}
	if len(fields) == 0 {
		return nil
	}
	if msg, ok := fields["phone"]; ok && len(fields) == 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone "+msg).WithDetails(fields)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping details").WithDetails(fields)
}

// StockCheckInput pairs a requested quantity with the product's locked stock.
type StockCheckInput struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
	Available   int
}

// StockShortfallDetail is returned to callers when stock cannot cover a line.
type StockShortfallDetail struct {
	ProductID uuid.UUID `json:"productId"`
	Requested int       `json:"requested"`
	Remaining int       `json:"remaining"`
}

// CheckStock fails on the first line whose request exceeds available stock.
func CheckStock(items []StockCheckInput) error {
	for _, item := range items {
		if item.Requested <= item.Available {
			continue
		}
		return InsufficientStock(item.ProductID, item.ProductName, item.Requested, item.Available)
	}
	return nil
}

// InsufficientStock builds the error naming the product and its remaining stock.
func InsufficientStock(productID uuid.UUID, name string, requested, remaining int) error {
	if remaining < 0 {
		remaining = 0
	}
	return pkgerrors.New(pkgerrors.CodeBusinessRule, fmt.Sprintf("insufficient stock for %q: %d remaining", name, remaining)).
		WithDetails(StockShortfallDetail{
			ProductID: productID,
			Requested: requested,
			Remaining: remaining,
		})
}
