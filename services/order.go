package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"aeroclub-shop/models"
	"aeroclub-shop/policy"
	"aeroclub-shop/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CashPaymentMethod is recorded when a cart checkout names no payment method
const CashPaymentMethod = "cash"

const recentOrdersLimit = 5

const notifyTimeout = 15 * time.Second

// OrderService enforces the order lifecycle: ownership and payment-state guards
// on owner mutations, and policy checks on administrator operations.
type OrderService struct {
	orders   OrderStore
	users    UserStore
	products ProductStore
	authz    Authorizer
	notifier Notifier
	now      func() time.Time

	notifications sync.WaitGroup
}

func NewOrderService(orders OrderStore, users UserStore, products ProductStore, authz Authorizer, notifier Notifier) *OrderService {
	return &OrderService{
		orders:   orders,
		users:    users,
		products: products,
		authz:    authz,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder persists a new order in (awaiting_payment, pending) owned by the requester
func (s *OrderService) CreateOrder(ctx context.Context, req Requester, items []models.OrderItem, totalAmount float64, addr models.Address) (*models.Order, error) {
	if len(items) == 0 {
		return nil, invalid("items", "order must contain at least one item")
	}
	if totalAmount <= 0 {
		return nil, invalid("total_amount", "valid total amount is required")
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          req.UserID,
		Items:           items,
		TotalAmount:     totalAmount,
		ShippingAddress: addr,
		PaymentStatus:   models.PaymentAwaiting,
		OrderStatus:     models.OrderPending,
		CreatedAt:       s.now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	log.Ctx(ctx).Info().Str("order_id", order.ID.Hex()).Str("user_id", req.UserID.Hex()).Msg("service: order created")
	return order, nil
}

// CreateOrderFromCart prices the order from the submitted cart lines as given.
// Without a payment method the order is marked cash on delivery.
func (s *OrderService) CreateOrderFromCart(ctx context.Context, req Requester, cart []models.CartItem, addr models.Address, paymentMethod string) (*models.Order, error) {
	if len(cart) == 0 {
		return nil, invalid("cart_items", "cart is empty")
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(cart))
	for _, ci := range cart {
		line := decimal.NewFromFloat(ci.Price).Mul(decimal.NewFromInt(int64(ci.Quantity)))
		total = total.Add(line)
		items = append(items, models.OrderItem{ProductID: ci.ProductID, Quantity: ci.Quantity, Price: ci.Price})
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, invalid("cart_items", "cart total must be positive")
	}

	paymentMethod = strings.TrimSpace(paymentMethod)
	paymentStatus := models.PaymentAwaiting
	if paymentMethod == "" {
		paymentMethod = CashPaymentMethod
		paymentStatus = models.PaymentCashOnDelivery
	}

	order := &models.Order{
		UserID:          req.UserID,
		Items:           items,
		TotalAmount:     total.InexactFloat64(),
		ShippingAddress: addr,
		PaymentStatus:   paymentStatus,
		OrderStatus:     models.OrderPending,
		PaymentMethod:   paymentMethod,
		CreatedAt:       s.now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to create order from cart")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("order_id", order.ID.Hex()).
		Str("user_id", req.UserID.Hex()).
		Str("payment_status", string(order.PaymentStatus)).
		Msg("service: order created from cart")
	return order, nil
}

// GetOrder returns a populated order visible to its owner or an administrator
func (s *OrderService) GetOrder(ctx context.Context, req Requester, id primitive.ObjectID) (*models.OrderView, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(req.UserID) && !s.authz.Allowed(req.Role, policy.OrdersReadAny) {
		log.Ctx(ctx).Warn().Str("order_id", id.Hex()).Str("user_id", req.UserID.Hex()).Msg("service: order read denied")
		return nil, fmt.Errorf("not authorized to view this order: %w", ErrForbidden)
	}

	views, err := s.populate(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListOrdersForUser returns the requester's orders, newest first
func (s *OrderService) ListOrdersForUser(ctx context.Context, req Requester) ([]models.OrderView, error) {
	orders, err := s.orders.ListByUser(ctx, req.UserID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", req.UserID.Hex()).Msg("service: failed to list user orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return s.populate(ctx, orders)
}

// ListAllOrders returns every order matching filter, newest first. Administrators only.
func (s *OrderService) ListAllOrders(ctx context.Context, req Requester, filter models.OrderFilter) ([]models.OrderView, error) {
	if !s.authz.Allowed(req.Role, policy.OrdersListAll) {
		return nil, fmt.Errorf("admin access required: %w", ErrForbidden)
	}
	if filter.OrderStatus != "" && !filter.OrderStatus.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown order status %q", filter.OrderStatus))
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, invalid("paymentStatus", fmt.Sprintf("unknown payment status %q", filter.PaymentStatus))
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, invalid("endDate", "end date is before start date")
	}

	orders, err := s.orders.List(ctx, filter, 0)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return s.populate(ctx, orders)
}

// UpdateShippingAddress replaces the address of the requester's unpaid order
func (s *OrderService) UpdateShippingAddress(ctx context.Context, req Requester, id primitive.ObjectID, addr models.Address) (*models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(req.UserID) {
		log.Ctx(ctx).Warn().Str("order_id", id.Hex()).Str("user_id", req.UserID.Hex()).Msg("service: address update denied")
		return nil, fmt.Errorf("not authorized to update this order: %w", ErrForbidden)
	}
	if order.PaymentStatus != models.PaymentAwaiting {
		return nil, fmt.Errorf("cannot modify order after payment: %w", ErrInvalidState)
	}

	updated, err := s.orders.SetShippingAddressAwaiting(ctx, id, addr)
	if err != nil {
		return nil, s.guardedWriteError(ctx, id, "update address", err)
	}
	log.Ctx(ctx).Info().Str("order_id", id.Hex()).Msg("service: shipping address updated")
	return updated, nil
}

// DeleteOrder removes an unpaid order. Owners may delete their own, administrators any.
func (s *OrderService) DeleteOrder(ctx context.Context, req Requester, id primitive.ObjectID) error {
	order, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !order.OwnedBy(req.UserID) && !s.authz.Allowed(req.Role, policy.OrdersDeleteAny) {
		log.Ctx(ctx).Warn().Str("order_id", id.Hex()).Str("user_id", req.UserID.Hex()).Msg("service: order delete denied")
		return fmt.Errorf("not authorized to delete this order: %w", ErrForbidden)
	}
	if order.PaymentStatus != models.PaymentAwaiting {
		return fmt.Errorf("cannot delete order after payment: %w", ErrInvalidState)
	}

	if err := s.orders.DeleteAwaiting(ctx, id); err != nil {
		return s.guardedWriteError(ctx, id, "delete", err)
	}
	log.Ctx(ctx).Info().Str("order_id", id.Hex()).Str("user_id", req.UserID.Hex()).Msg("service: order deleted")
	return nil
}

// UpdateOrderStatus applies the supplied status fields verbatim. Administrators
// only; no transition table is enforced.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, req Requester, id primitive.ObjectID, update models.StatusUpdate) (*models.Order, error) {
	if !s.authz.Allowed(req.Role, policy.OrdersUpdateStatus) {
		return nil, fmt.Errorf("admin access required: %w", ErrForbidden)
	}

	update = normalizeStatusUpdate(update)
	if update.OrderStatus != nil && !update.OrderStatus.Valid() {
		return nil, invalid("order_status", fmt.Sprintf("unknown order status %q", *update.OrderStatus))
	}
	if update.PaymentStatus != nil && !update.PaymentStatus.Valid() {
		return nil, invalid("payment_status", fmt.Sprintf("unknown payment status %q", *update.PaymentStatus))
	}
	if update.Empty() {
		return s.load(ctx, id)
	}

	order, err := s.orders.UpdateStatus(ctx, id, update)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("order_id", id.Hex()).Msg("service: failed to update order status")
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("order_id", id.Hex()).
		Str("order_status", string(order.OrderStatus)).
		Str("payment_status", string(order.PaymentStatus)).
		Msg("service: order status updated")

	snapshot := *order
	s.notifyOwner(ctx, order.UserID, func(owner models.User) error {
		return s.notifier.SendStatusUpdate(owner, snapshot)
	})
	return order, nil
}

// ProcessPayment captures payment for the requester's unpaid order. The write is
// conditional on the order still awaiting payment, so a repeated or concurrent
// call fails with ErrInvalidState.
func (s *OrderService) ProcessPayment(ctx context.Context, req Requester, id primitive.ObjectID, method string, details map[string]any) (*models.Receipt, *models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !order.OwnedBy(req.UserID) {
		log.Ctx(ctx).Warn().Str("order_id", id.Hex()).Str("user_id", req.UserID.Hex()).Msg("service: payment denied")
		return nil, nil, fmt.Errorf("not authorized to pay for this order: %w", ErrForbidden)
	}
	if order.PaymentStatus != models.PaymentAwaiting {
		return nil, nil, fmt.Errorf("order already processed: %w", ErrInvalidState)
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, nil, invalid("payment_method", "payment method is required")
	}

	paid, err := s.orders.MarkPaidAwaiting(ctx, id, method, s.now(), details)
	if err != nil {
		return nil, nil, s.guardedWriteError(ctx, id, "capture payment", err)
	}

	receipt := &models.Receipt{
		OrderID:       paid.ID,
		TotalAmount:   paid.TotalAmount,
		PaymentDate:   *paid.PaymentDate,
		PaymentMethod: paid.PaymentMethod,
	}
	log.Ctx(ctx).Info().Str("order_id", id.Hex()).Str("payment_method", method).Float64("total_amount", paid.TotalAmount).Msg("service: payment captured")

	sent := *receipt
	s.notifyOwner(ctx, paid.UserID, func(owner models.User) error {
		return s.notifier.SendPaymentReceipt(owner, sent)
	})
	return receipt, paid, nil
}

func (s *OrderService) load(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("order_id", id.Hex()).Msg("service: failed to load order")
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// guardedWriteError maps the result of a conditional write whose guard read had
// already passed. A miss means another request changed or removed the order in between.
func (s *OrderService) guardedWriteError(ctx context.Context, id primitive.ObjectID, action string, err error) error {
	if errors.Is(err, store.ErrPreconditionFailed) {
		log.Ctx(ctx).Warn().Str("order_id", id.Hex()).Str("action", action).Msg("service: order changed concurrently")
		return fmt.Errorf("order is no longer awaiting payment: %w", ErrInvalidState)
	}
	log.Ctx(ctx).Error().Err(err).Str("order_id", id.Hex()).Str("action", action).Msg("service: order write failed")
	return fmt.Errorf("failed to %s: %w", action, err)
}

// notifyOwner sends in the background under its own deadline. Failures are only logged.
func (s *OrderService) notifyOwner(ctx context.Context, ownerID primitive.ObjectID, send func(models.User) error) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		defer cancel()

		owner, err := s.users.FindByID(ctx, ownerID)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("user_id", ownerID.Hex()).Msg("service: owner lookup for notification failed")
			return
		}

		sent := make(chan error, 1)
		go func() { sent <- send(*owner) }()
		select {
		case err := <-sent:
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Str("to", owner.Email).Msg("service: failed to send notification")
			}
		case <-ctx.Done():
			log.Ctx(ctx).Error().Err(ctx.Err()).Str("to", owner.Email).Msg("service: notification timed out")
		}
	}()
}

// WaitForNotifications blocks until every background notification has finished
func (s *OrderService) WaitForNotifications() {
	s.notifications.Wait()
}

// populate resolves owners and products for display. Missing references
// resolve to summaries carrying only the id.
func (s *OrderService) populate(ctx context.Context, orders []models.Order) ([]models.OrderView, error) {
	views := make([]models.OrderView, 0, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	userIDs := make([]primitive.ObjectID, 0, len(orders))
	productIDs := make([]primitive.ObjectID, 0)
	seenUsers := map[primitive.ObjectID]bool{}
	seenProducts := map[primitive.ObjectID]bool{}
	for _, o := range orders {
		if !seenUsers[o.UserID] {
			seenUsers[o.UserID] = true
			userIDs = append(userIDs, o.UserID)
		}
		for _, it := range o.Items {
			if !seenProducts[it.ProductID] {
				seenProducts[it.ProductID] = true
				productIDs = append(productIDs, it.ProductID)
			}
		}
	}

	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to resolve order owners")
		return nil, fmt.Errorf("failed to resolve order owners: %w", err)
	}
	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to resolve order products")
		return nil, fmt.Errorf("failed to resolve order products: %w", err)
	}

	userByID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}
	productByID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	for _, o := range orders {
		owner, ok := userByID[o.UserID]
		if !ok {
			owner = models.User{ID: o.UserID}
		}
		items := make([]models.OrderItemView, 0, len(o.Items))
		for _, it := range o.Items {
			p, ok := productByID[it.ProductID]
			if !ok {
				p = models.Product{ID: it.ProductID}
			}
			items = append(items, models.OrderItemView{Product: p, Quantity: it.Quantity, Price: it.Price})
		}
		views = append(views, models.OrderView{
			ID:              o.ID,
			User:            owner.Summary(),
			Items:           items,
			TotalAmount:     o.TotalAmount,
			ShippingAddress: o.ShippingAddress,
			PaymentStatus:   o.PaymentStatus,
			OrderStatus:     o.OrderStatus,
			PaymentMethod:   o.PaymentMethod,
			PaymentDate:     o.PaymentDate,
			PaymentDetails:  o.PaymentDetails,
			TrackingNumber:  o.TrackingNumber,
			CreatedAt:       o.CreatedAt,
		})
	}
	return views, nil
}

func validateItems(items []models.OrderItem) error {
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if it.ProductID.IsZero() {
			return invalid(field+".product_id", "product is required")
		}
		if it.Quantity < 1 {
			return invalid(field+".quantity", "quantity must be at least 1")
		}
		if it.Price < 0 {
			return invalid(field+".price", "price cannot be negative")
		}
	}
	return nil
}

// normalizeStatusUpdate drops empty values so they leave the stored fields untouched
func normalizeStatusUpdate(u models.StatusUpdate) models.StatusUpdate {
	if u.OrderStatus != nil && *u.OrderStatus == "" {
		u.OrderStatus = nil
	}
	if u.PaymentStatus != nil && *u.PaymentStatus == "" {
		u.PaymentStatus = nil
	}
	if u.TrackingNumber != nil && *u.TrackingNumber == "" {
		u.TrackingNumber = nil
	}
	return u
}
