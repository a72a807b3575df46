package orders

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshmarket/storefront-backend/internal/cart"
	"github.com/freshmarket/storefront-backend/internal/discounts"
	"github.com/freshmarket/storefront-backend/internal/pricing"
	"github.com/freshmarket/storefront-backend/pkg/checkout"
	"github.com/freshmarket/storefront-backend/pkg/db/models"
	"github.com/freshmarket/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
	"github.com/freshmarket/storefront-backend/pkg/logger"
	"github.com/freshmarket/storefront-backend/pkg/metrics"
	"github.com/freshmarket/storefront-backend/pkg/outbox"
	"github.com/freshmarket/storefront-backend/pkg/outbox/payloads"
	"github.com/freshmarket/storefront-backend/pkg/pagination"
)

var trackingFragment = regexp.MustCompile(`^[0-9a-f-]{6,36}$`)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service places orders and drives their lifecycle.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	Cancel(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error)
	ListMine(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	Detail(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	Track(ctx context.Context, fragment, phone string) (*models.Order, error)
}

// PlaceOrderInput is everything the order transaction needs from the request.
type PlaceOrderInput struct {
	SessionToken string
	CustomerID   uuid.UUID
	Shipping     checkout.ShippingInput
	DiscountCode *string
}

// StatusUpdateInput is an admin-driven lifecycle transition.
type StatusUpdateInput struct {
	OrderID   uuid.UUID
	Status    enums.OrderStatus
	ActorID   uuid.UUID
	ActorRole string
}

// Deps wires the order service.
type Deps struct {
	Tx        txRunner
	Orders    Repository
	Carts     cart.CartRepository
	Catalog   Catalog
	Discounts DiscountLedger
	Outbox    outboxPublisher
	Policy    pricing.Policy
	Metrics   *metrics.OrderMetrics
	Logger    *logger.Logger
	Clock     func() time.Time
}

type service struct {
	tx        txRunner
	orders    Repository
	carts     cart.CartRepository
	catalog   Catalog
	discounts DiscountLedger
	outbox    outboxPublisher
	policy    pricing.Policy
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if deps.Discounts == nil {
		return nil, fmt.Errorf("discount ledger required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		tx:        deps.Tx,
		orders:    deps.Orders,
		carts:     deps.Carts,
		catalog:   deps.Catalog,
		discounts: deps.Discounts,
		outbox:    deps.Outbox,
		policy:    deps.Policy,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       clock,
	}, nil
}

func errCartEmpty() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
}

// PlaceOrder converts the session's cart into a PENDING order. Stock, discount
// usage, the order rows, the cart and the outbox event commit together or not at all.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	start := time.Now()
	order, err := s.placeOrder(ctx, input)
	s.record(ctx, start, err)
	return order, err
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	shipping := input.Shipping.Normalize()
	if err := checkout.ValidateShipping(shipping); err != nil {
		return nil, err
	}
	token := strings.TrimSpace(input.SessionToken)
	if token == "" {
		return nil, errCartEmpty()
	}
	code := ""
	if input.DiscountCode != nil {
		code = discounts.NormalizeCode(*input.DiscountCode)
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)

		record, err := carts.FindBySession(ctx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errCartEmpty()
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if len(record.Items) == 0 {
			return errCartEmpty()
		}

		rates, err := s.catalog.Rates(ctx, tx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wholesale rates")
		}

		ids := make([]uuid.UUID, 0, len(record.Items))
		for _, item := range record.Items {
			ids = append(ids, item.ProductID)
		}
		locked, err := s.catalog.LockProducts(ctx, tx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock products")
		}
		for i := range record.Items {
			item := &record.Items[i]
			product, ok := locked[item.ProductID]
			if !ok || !product.IsActive {
				return pkgerrors.Newf(pkgerrors.CodeBusinessRule, "%s is no longer available", itemName(item)).
					WithDetails(map[string]any{"productId": item.ProductID})
			}
			item.Product = product
		}

		quote := pricing.Resolve(cart.Lines(record.Items), pricing.RatesFromModels(rates))

		var applied *discounts.Result
		if code != "" {
			applied, err = s.discounts.Validate(ctx, tx, discounts.ValidateInput{
				Code:     code,
				Subtotal: quote.Subtotal,
				Phone:    shipping.Phone,
			})
			if err != nil {
				if rej, ok := discounts.AsRejection(err); ok {
					return rej.ToError()
				}
				return err
			}
		}

		checks := make([]checkout.StockCheckInput, 0, len(quote.Lines))
		for _, line := range quote.Lines {
			checks = append(checks, checkout.StockCheckInput{
				ProductID:   line.ProductID,
				ProductName: line.Name,
				Requested:   line.Quantity,
				Available:   locked[line.ProductID].Stock,
			})
		}
		if err := checkout.CheckStock(checks); err != nil {
			return err
		}

		for _, line := range quote.Lines {
			ok, err := s.catalog.DecrementStock(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
			if !ok {
				remaining := locked[line.ProductID].Stock
				if fresh, err := s.catalog.LockProducts(ctx, tx, []uuid.UUID{line.ProductID}); err == nil {
					if p, found := fresh[line.ProductID]; found {
						remaining = p.Stock
					}
				}
				return checkout.InsufficientStock(line.ProductID, line.Name, line.Quantity, remaining)
			}
		}

		discountAmount := decimal.Zero
		var appliedCode *string
		if applied != nil {
			discountAmount = applied.Amount
			appliedCode = &code
			if discountAmount.IsPositive() {
				ok, err := s.discounts.Redeem(ctx, tx, applied.Discount.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record discount usage")
				}
				if !ok {
					rej := &discounts.Rejection{Reason: discounts.ReasonUsageLimitReached, Message: "discount code usage limit reached"}
					return rej.ToError()
				}
			}
		}

		totals := s.policy.Summarize(quote, discountAmount)
		customerID := input.CustomerID
		placed := &models.Order{
			CustomerID:     &customerID,
			CustomerName:   shipping.CustomerName,
			Phone:          shipping.Phone,
			Address:        shipping.Address,
			Subtotal:       totals.Subtotal,
			ShippingFee:    totals.Shipping,
			DiscountAmount: totals.Discount,
			TotalAmount:    totals.Total,
			DiscountCode:   appliedCode,
			Status:         enums.OrderStatusPending,
			CreatedAt:      s.now().UTC(),
			Items:          buildItems(quote.Lines),
		}
		if err := s.orders.WithTx(tx).Create(ctx, placed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		if _, err := carts.ClearItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}

		if err := s.emitCreated(ctx, tx, placed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
		}
		order = placed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"total":    order.TotalAmount.String(),
			"discount": order.DiscountCode,
		}), "order.placed")
	}
	return order, nil
}

func (s *service) record(ctx context.Context, start time.Time, err error) {
	elapsed := time.Since(start)
	if err == nil {
		s.metrics.Observe(metrics.OutcomePlaced, elapsed)
		return
	}
	typed := pkgerrors.As(err)
	if typed != nil && !pkgerrors.MetadataFor(typed.Code()).Retryable && typed.Code() != pkgerrors.CodeInternal {
		s.metrics.Observe(metrics.OutcomeRejected, elapsed)
		s.metrics.IncRejected(rejectionReason(typed))
		return
	}
	s.metrics.Observe(metrics.OutcomeFailed, elapsed)
	if s.logg != nil {
		s.logg.Error(ctx, "order placement failed", err)
	}
}

func rejectionReason(err *pkgerrors.Error) string {
	switch details := err.Details().(type) {
	case checkout.StockShortfallDetail:
		return "insufficient_stock"
	case map[string]any:
		if reason, ok := details["reason"].(string); ok {
			return reason
		}
	}
	return strings.ToLower(string(err.Code()))
}

func itemName(item *models.CartItem) string {
	if item.Product != nil {
		return fmt.Sprintf("%q", item.Product.Name)
	}
	return "product " + item.ProductID.String()
}

func buildItems(lines []pricing.PricedLine) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Unit:        line.Unit,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return items
}

func (s *service) emitCreated(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	lines := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLine{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor(order.CustomerID, string(enums.CustomerRoleCustomer)),
		OccurredAt:    order.CreatedAt,
		Data: payloads.OrderCreatedEvent{
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			Phone:          order.Phone,
			Subtotal:       order.Subtotal,
			ShippingFee:    order.ShippingFee,
			DiscountAmount: order.DiscountAmount,
			TotalAmount:    order.TotalAmount,
			DiscountCode:   order.DiscountCode,
			Items:          lines,
		},
	})
}

// Cancel lets the owner cancel a PENDING order. Stock and discount usage are left as is.
func (s *service) Cancel(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := s.loadOwned(ctx, repo, customerID, orderID, true)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			result = order
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can only be cancelled while pending").
				WithDetails(map[string]any{"status": order.Status})
		}

		at := s.now().UTC()
		if err := s.transition(ctx, repo, order, enums.OrderStatusCancelled, at); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor(&customerID, string(enums.CustomerRoleCustomer)),
			OccurredAt:    at,
			Data: payloads.OrderCanceledEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				CanceledAt: at,
				Reason:     "customer_request",
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus applies an admin transition along the order lifecycle.
func (s *service) UpdateStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.Status == input.Status {
			result = order
			return nil
		}
		if !order.Status.CanTransitionTo(input.Status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", order.Status, input.Status)
		}

		from := order.Status
		at := s.now().UTC()
		if err := s.transition(ctx, repo, order, input.Status, at); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor(&input.ActorID, input.ActorRole),
			OccurredAt:    at,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				From:      from,
				To:        input.Status,
				ChangedAt: at,
			},
		}
		if input.Status == enums.OrderStatusCancelled {
			event.EventType = enums.EventOrderCanceled
			event.Data = payloads.OrderCanceledEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				CanceledAt: at,
				Reason:     "admin",
			}
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) transition(ctx context.Context, repo Repository, order *models.Order, to enums.OrderStatus, at time.Time) error {
	ok, err := repo.UpdateStatus(ctx, order.ID, order.Status, to, at)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}
	order.Status = to
	order.UpdatedAt = at
	if to == enums.OrderStatusCancelled {
		order.CancelledAt = &at
	}
	return nil
}

func (s *service) ListMine(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.orders.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Orders = append(list.Orders, NewOrderDTO(&rows[i]))
	}
	return list, nil
}

func (s *service) Detail(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return s.loadOwned(ctx, s.orders, customerID, orderID, false)
}

// Track finds an order by an id prefix and the phone it was placed with.
func (s *service) Track(ctx context.Context, fragment, phone string) (*models.Order, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	phone = strings.TrimSpace(phone)
	if !trackingFragment.MatchString(fragment) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id must be at least 6 characters of the order number")
	}
	if !checkout.IsValidPhone(phone) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone must be exactly 10 digits")
	}
	order, err := s.orders.FindForTracking(ctx, fragment, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "track order")
	}
	return order, nil
}

// loadOwned hides orders of other customers behind NOT_FOUND.
func (s *service) loadOwned(ctx context.Context, repo Repository, customerID, orderID uuid.UUID, forUpdate bool) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID, forUpdate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.CustomerID == nil || *order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func actor(customerID *uuid.UUID, role string) *outbox.ActorRef {
	if customerID == nil || *customerID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{CustomerID: *customerID, Role: role}
}
