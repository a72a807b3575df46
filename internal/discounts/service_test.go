package discounts

import (
	"context"
	"testing"

	"github.com/freshmarket/storefront-backend/pkg/db/models"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
)

func TestPreviewReportsRejectionInBand(t *testing.T) {
	v, repo := newValidator(t)
	seedDiscount(t, repo, &models.Discount{Code: "WELCOME10", Value: dec("10")})
	svc, err := NewService(v)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	res, err := svc.Preview(context.Background(), ValidateInput{Code: "MISSING", Subtotal: dec("600")})
	if err != nil {
		t.Fatalf("preview returned error: %v", err)
	}
	if res.OK || res.Reason != ReasonNotFound || res.Message == "" {
		t.Fatalf("unexpected preview %+v", res)
	}

	res, err = svc.Preview(context.Background(), ValidateInput{Code: "welcome10", Subtotal: dec("600")})
	if err != nil {
		t.Fatalf("preview returned error: %v", err)
	}
	if !res.OK || res.Amount == nil || !res.Amount.Equal(dec("60")) {
		t.Fatalf("unexpected preview %+v", res)
	}
}

func TestPreviewRejectsNegativeSubtotal(t *testing.T) {
	v, _ := newValidator(t)
	svc, _ := NewService(v)
	_, err := svc.Preview(context.Background(), ValidateInput{Code: "X", Subtotal: dec("-1")})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRejectionToError(t *testing.T) {
	err := reject(ReasonExpired, "discount code has expired").ToError()
	if !pkgerrors.Is(err, pkgerrors.CodeBusinessRule) {
		t.Fatalf("expected business rule error, got %v", err)
	}
	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]any)
	if !ok || details["reason"] != "expired" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}
