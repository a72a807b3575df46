package enums

import (
	"database/sql/driver"
	"fmt"
)

// DiscountType decides how a discount value is applied to a subtotal.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

var discountTypes = values[DiscountType]{DiscountTypePercentage, DiscountTypeFixed}

func (d DiscountType) String() string { return string(d) }

func (d DiscountType) IsValid() bool { return discountTypes.contains(d) }

// ParseDiscountType accepts any casing, so back-office imports of "percentage" load.
func ParseDiscountType(value string) (DiscountType, error) {
	return discountTypes.parse("discount type", value, true)
}

// Scan normalizes the stored value and rejects unknown types when a row loads.
func (d *DiscountType) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan discount type: unsupported source %T", src)
	}
	parsed, err := ParseDiscountType(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d DiscountType) Value() (driver.Value, error) {
	return string(d), nil
}
