package controllers

import (
	"context"
	"net/http"

	"aeroclub-shop/models"
	"aeroclub-shop/services"
	"aeroclub-shop/utils"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderService is the order workflow the handlers drive
type OrderService interface {
	CreateOrder(ctx context.Context, req services.Requester, items []models.OrderItem, totalAmount float64, addr models.Address) (*models.Order, error)
	CreateOrderFromCart(ctx context.Context, req services.Requester, cart []models.CartItem, addr models.Address, paymentMethod string) (*models.Order, error)
	GetOrder(ctx context.Context, req services.Requester, id primitive.ObjectID) (*models.OrderView, error)
	ListOrdersForUser(ctx context.Context, req services.Requester) ([]models.OrderView, error)
	ListAllOrders(ctx context.Context, req services.Requester, filter models.OrderFilter) ([]models.OrderView, error)
	UpdateShippingAddress(ctx context.Context, req services.Requester, id primitive.ObjectID, addr models.Address) (*models.Order, error)
	DeleteOrder(ctx context.Context, req services.Requester, id primitive.ObjectID) error
	UpdateOrderStatus(ctx context.Context, req services.Requester, id primitive.ObjectID, update models.StatusUpdate) (*models.Order, error)
	ProcessPayment(ctx context.Context, req services.Requester, id primitive.ObjectID, method string, details map[string]any) (*models.Receipt, *models.Order, error)
	GetOrderStats(ctx context.Context, req services.Requester) (*models.OrderStats, error)
}

// OrderController handles order-related requests
type OrderController struct {
	orders   OrderService
	validate *validator.Validate
}

// NewOrderController creates a new OrderController
func NewOrderController(orders OrderService, validate *validator.Validate) *OrderController {
	return &OrderController{orders: orders, validate: validate}
}

type createOrderRequest struct {
	Items           []models.OrderItem `json:"items"`
	TotalAmount     float64            `json:"total_amount"`
	ShippingAddress models.Address     `json:"shipping_address"`
}

type cartCheckoutRequest struct {
	CartItems       []models.CartItem `json:"cart_items" validate:"required,min=1,dive"`
	ShippingAddress models.Address    `json:"shipping_address"`
	PaymentMethod   string            `json:"payment_method"`
}

type shippingAddressRequest struct {
	ShippingAddress models.Address `json:"shipping_address"`
}

type paymentRequest struct {
	PaymentMethod  string         `json:"payment_method"`
	PaymentDetails map[string]any `json:"payment_details"`
}

// CreateOrder creates an order from explicit line items
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body createOrderRequest
	if !decodeAndValidate(w, r, oc.validate, &body) {
		return
	}

	order, err := oc.orders.CreateOrder(r.Context(), req, body.Items, body.TotalAmount, body.ShippingAddress)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, utils.Envelope{Message: "Order created successfully", Data: order})
}

// CreateOrderFromCart creates an order from the submitted cart contents
func (oc *OrderController) CreateOrderFromCart(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body cartCheckoutRequest
	if !decodeAndValidate(w, r, oc.validate, &body) {
		return
	}

	order, err := oc.orders.CreateOrderFromCart(r.Context(), req, body.CartItems, body.ShippingAddress, body.PaymentMethod)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, utils.Envelope{Message: "Order created successfully", Data: order})
}

// GetMyOrders lists the caller's orders, newest first
func (oc *OrderController) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	orders, err := oc.orders.ListOrdersForUser(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Count: intPtr(len(orders)), Data: orders})
}

// GetOrder returns one order to its owner or an administrator
func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := oc.orders.GetOrder(r.Context(), req, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Data: order})
}

// UpdateShippingAddress changes the address of an unpaid order
func (oc *OrderController) UpdateShippingAddress(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body shippingAddressRequest
	if !decodeAndValidate(w, r, oc.validate, &body) {
		return
	}

	order, err := oc.orders.UpdateShippingAddress(r.Context(), req, id, body.ShippingAddress)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Message: "Order updated successfully", Data: order})
}

// DeleteOrder removes an unpaid order
func (oc *OrderController) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := oc.orders.DeleteOrder(r.Context(), req, id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Message: "Order deleted successfully"})
}

// ProcessPayment captures payment for an unpaid order and returns the receipt
func (oc *OrderController) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body paymentRequest
	if !decodeAndValidate(w, r, oc.validate, &body) {
		return
	}

	receipt, _, err := oc.orders.ProcessPayment(r.Context(), req, id, body.PaymentMethod, body.PaymentDetails)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Message: "Payment processed successfully", Data: receipt})
}

// GetAllOrders lists every order. Query: status, paymentStatus, startDate, endDate.
func (oc *OrderController) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	from, err := parseDate(query.Get("startDate"), false)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	to, err := parseDate(query.Get("endDate"), true)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	filter := models.OrderFilter{
		OrderStatus:   models.OrderStatus(query.Get("status")),
		PaymentStatus: models.PaymentStatus(query.Get("paymentStatus")),
		From:          from,
		To:            to,
	}

	orders, err := oc.orders.ListAllOrders(r.Context(), req, filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Count: intPtr(len(orders)), Data: orders})
}

// UpdateOrderStatus sets order status, payment status or tracking number
func (oc *OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body models.StatusUpdate
	if !decodeAndValidate(w, r, oc.validate, &body) {
		return
	}

	order, err := oc.orders.UpdateOrderStatus(r.Context(), req, id, body)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Message: "Order status updated successfully", Data: order})
}

// GetOrderStats returns the aggregate order overview
func (oc *OrderController) GetOrderStats(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	stats, err := oc.orders.GetOrderStats(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Data: stats})
}
