package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshmarket/storefront-backend/pkg/enums"
)

// OrderLine is the frozen line carried on order events.
type OrderLine struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderCreatedEvent is emitted in the same transaction that places an order.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID       `json:"orderId"`
	CustomerID     *uuid.UUID      `json:"customerId,omitempty"`
	Phone          string          `json:"phone"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingFee    decimal.Decimal `json:"shippingFee"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountCode   *string         `json:"discountCode,omitempty"`
	Items          []OrderLine     `json:"items"`
}

// OrderCanceledEvent is emitted when a pending order is cancelled.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID  `json:"orderId"`
	CustomerID *uuid.UUID `json:"customerId,omitempty"`
	CanceledAt time.Time  `json:"canceledAt"`
	Reason     string     `json:"reason,omitempty"`
}

// OrderStatusChangedEvent reports an admin-driven fulfilment transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"orderId"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changedAt"`
}
