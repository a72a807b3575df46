package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/freshmarket/storefront-backend/api/responses"
	"github.com/freshmarket/storefront-backend/api/validators"
	discountsvc "github.com/freshmarket/storefront-backend/internal/discounts"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
	"github.com/freshmarket/storefront-backend/pkg/logger"
)

type discountPreviewRequest struct {
	Code     string          `json:"code" validate:"required,max=64"`
	Subtotal decimal.Decimal `json:"subtotal" validate:"gte=0"`
	Phone    string          `json:"phone" validate:"omitempty,phone10"`
}

// DiscountPreview checks a code against a subtotal without recording anything.
// Business refusals come back as 200 with ok=false.
func DiscountPreview(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "discount service unavailable"))
			return
		}
		var body discountPreviewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Preview(r.Context(), discountsvc.ValidateInput{
			Code:     body.Code,
			Subtotal: body.Subtotal,
			Phone:    body.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
