package checkout

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
)

func TestIsValidPhone(t *testing.T) {
	cases := map[string]bool{
		"0812345678":  true,
		"081234567":   false,
		"08123456789": false,
		"08123-4567":  false,
		"081234567a":  false,
		"":            false,
		"٠١٢٣٤٥٦٧٨٩":  false,
	}
	for phone, want := range cases {
		if got := IsValidPhone(phone); got != want {
			t.Fatalf("IsValidPhone(%q) = %v, want %v", phone, got, want)
		}
	}
}

func TestValidateShipping(t *testing.T) {
	ok := ShippingInput{CustomerName: " Ann ", Phone: " 0812345678 ", Address: " 1 Market St "}.Normalize()
	if err := ValidateShipping(ok); err != nil {
		t.Fatalf("expected valid shipping, got %v", err)
	}

	err := ValidateShipping(ShippingInput{CustomerName: "Ann", Phone: "12345", Address: "x"})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := pkgerrors.As(err).Message(); got != "phone must be exactly 10 digits" {
		t.Fatalf("unexpected message %q", got)
	}

	err = ValidateShipping(ShippingInput{Phone: "0812345678"})
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["customerName"] == "" || details["address"] == "" {
		t.Fatalf("expected both missing fields reported, got %+v", details)
	}
}

func TestCheckStock_NoShortfall(t *testing.T) {
	items := []StockCheckInput{
		{ProductID: uuid.New(), ProductName: "Tomato", Requested: 5, Available: 5},
		{ProductID: uuid.New(), ProductName: "Basil", Requested: 1, Available: 9},
	}
	if err := CheckStock(items); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCheckStock_FirstShortfallWins(t *testing.T) {
	first := uuid.New()
	items := []StockCheckInput{
		{ProductID: uuid.New(), ProductName: "Basil", Requested: 1, Available: 9},
		{ProductID: first, ProductName: "Tomato", Requested: 6, Available: 5},
		{ProductID: uuid.New(), ProductName: "Onion", Requested: 3, Available: 0},
	}

	err := CheckStock(items)
	if !pkgerrors.Is(err, pkgerrors.CodeBusinessRule) {
		t.Fatalf("expected business rule error, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed.Message() != `insufficient stock for "Tomato": 5 remaining` {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	detail, ok := typed.Details().(StockShortfallDetail)
	if !ok {
		t.Fatalf("unexpected details type %T", typed.Details())
	}
	if detail.ProductID != first || detail.Requested != 6 || detail.Remaining != 5 {
		t.Fatalf("unexpected details %+v", detail)
	}
}
