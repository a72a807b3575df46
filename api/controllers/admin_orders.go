package controllers

import (
	"net/http"

	"github.com/freshmarket/storefront-backend/api/middleware"
	"github.com/freshmarket/storefront-backend/api/responses"
	"github.com/freshmarket/storefront-backend/api/validators"
	ordersvc "github.com/freshmarket/storefront-backend/internal/orders"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
	"github.com/freshmarket/storefront-backend/pkg/logger"
)

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminUpdateOrderStatus moves an order along its lifecycle.
func AdminUpdateOrderStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"}))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), ordersvc.StatusUpdateInput{
			OrderID:   orderID,
			Status:    status,
			ActorID:   middleware.CustomerIDFromContext(r.Context()),
			ActorRole: middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ordersvc.NewOrderDTO(order))
	}
}
