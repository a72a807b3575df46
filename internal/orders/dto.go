package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
)

// OrderItemDTO is a frozen order line.
type OrderItemDTO struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// OrderDTO is the owner's view of an order.
type OrderDTO struct {
	ID             uuid.UUID         `json:"id"`
	Status         enums.OrderStatus `json:"status"`
	CustomerName   string            `json:"customerName"`
	Phone          string            `json:"phone"`
	Address        string            `json:"address"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	ShippingFee    decimal.Decimal   `json:"shippingFee"`
	DiscountAmount decimal.Decimal   `json:"discountAmount"`
	TotalAmount    decimal.Decimal   `json:"totalAmount"`
	DiscountCode   *string           `json:"discountCode,omitempty"`
	Items          []OrderItemDTO    `json:"items"`
	CreatedAt      time.Time         `json:"createdAt"`
	CancelledAt    *time.Time        `json:"cancelledAt,omitempty"`
}

// TrackingDTO omits the delivery contact details.
type TrackingDTO struct {
	ID             uuid.UUID         `json:"id"`
	Status         enums.OrderStatus `json:"status"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	ShippingFee    decimal.Decimal   `json:"shippingFee"`
	DiscountAmount decimal.Decimal   `json:"discountAmount"`
	TotalAmount    decimal.Decimal   `json:"totalAmount"`
	Items          []OrderItemDTO    `json:"items"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

func NewOrderDTO(order *models.Order) OrderDTO {
	return OrderDTO{
		ID:             order.ID,
		Status:         order.Status,
		CustomerName:   order.CustomerName,
		Phone:          order.Phone,
		Address:        order.Address,
		Subtotal:       order.Subtotal,
		ShippingFee:    order.ShippingFee,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		DiscountCode:   order.DiscountCode,
		Items:          itemDTOs(order.Items),
		CreatedAt:      order.CreatedAt,
		CancelledAt:    order.CancelledAt,
	}
}

func NewTrackingDTO(order *models.Order) TrackingDTO {
	return TrackingDTO{
		ID:             order.ID,
		Status:         order.Status,
		Subtotal:       order.Subtotal,
		ShippingFee:    order.ShippingFee,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		Items:          itemDTOs(order.Items),
		CreatedAt:      order.CreatedAt,
	}
}

func itemDTOs(items []models.OrderItem) []OrderItemDTO {
	out := make([]OrderItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Unit:      item.Unit,
			Quantity:  item.Quantity,
			Price:     item.Price,
			LineTotal: item.LineTotal,
		})
	}
	return out
}
