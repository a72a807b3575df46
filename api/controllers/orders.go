package controllers

import (
	"net/http"
	"strings"

	"github.com/freshmarket/storefront-backend/api/middleware"
	"github.com/freshmarket/storefront-backend/api/responses"
	"github.com/freshmarket/storefront-backend/api/validators"
	ordersvc "github.com/freshmarket/storefront-backend/internal/orders"
	"github.com/freshmarket/storefront-backend/pkg/checkout"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
	"github.com/freshmarket/storefront-backend/pkg/logger"
	"github.com/freshmarket/storefront-backend/pkg/pagination"
)

const (
	maxNameLength    = 120
	maxAddressLength = 500
)

type placeOrderRequest struct {
	CustomerName string  `json:"customerName" validate:"max=120"`
	Phone        string  `json:"phone"`
	Address      string  `json:"address" validate:"max=500"`
	DiscountCode *string `json:"discountCode,omitempty" validate:"omitempty,max=64"`
}

func (p placeOrderRequest) toInput(sessionToken string, r *http.Request) ordersvc.PlaceOrderInput {
	var code *string
	if p.DiscountCode != nil {
		if trimmed := strings.TrimSpace(*p.DiscountCode); trimmed != "" {
			code = &trimmed
		}
	}
	return ordersvc.PlaceOrderInput{
		SessionToken: sessionToken,
		CustomerID:   middleware.CustomerIDFromContext(r.Context()),
		Shipping: checkout.ShippingInput{
			CustomerName: validators.SanitizeString(p.CustomerName, maxNameLength),
			Phone:        p.Phone,
			Address:      validators.SanitizeString(p.Address, maxAddressLength),
		},
		DiscountCode: code,
	}
}

// PlaceOrder turns the session cart into a PENDING order.
func PlaceOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		var body placeOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PlaceOrder(r.Context(), body.toInput(middleware.CartSessionFromContext(r.Context()), r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ordersvc.NewOrderDTO(order))
	}
}

// ListMyOrders returns the caller's orders, newest first.
func ListMyOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		list, err := svc.ListMine(r.Context(), middleware.CustomerIDFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetMyOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Detail(r.Context(), middleware.CustomerIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ordersvc.NewOrderDTO(order))
	}
}

// CancelMyOrder cancels a PENDING order owned by the caller.
func CancelMyOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Cancel(r.Context(), middleware.CustomerIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ordersvc.NewOrderDTO(order))
	}
}

// TrackOrder looks an order up by id fragment and the phone used to place it.
func TrackOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		order, err := svc.Track(r.Context(), query.Get("orderId"), query.Get("phone"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ordersvc.NewTrackingDTO(order))
	}
}
