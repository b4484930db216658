package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentStatus of an order
type PaymentStatus string

const (
	PaymentAwaiting       PaymentStatus = "awaiting_payment"
	PaymentPaid           PaymentStatus = "paid"
	PaymentCancelled      PaymentStatus = "cancelled"
	PaymentCashOnDelivery PaymentStatus = "cash_on_delivery"
)

// Valid reports whether s is one of the known payment statuses
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentAwaiting, PaymentPaid, PaymentCancelled, PaymentCashOnDelivery:
		return true
	}
	return false
}

// OrderStatus is the fulfilment state, independent of payment
type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderStored  OrderStatus = "stored"
	OrderShipped OrderStatus = "shipped"
	OrderArrived OrderStatus = "arrived"
)

// Valid reports whether s is one of the known order statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderStored, OrderShipped, OrderArrived:
		return true
	}
	return false
}

// Address represents a shipping address. All fields are optional.
type Address struct {
	Street  string `bson:"street,omitempty" json:"street,omitempty"`
	City    string `bson:"city,omitempty" json:"city,omitempty"`
	ZipCode string `bson:"zip_code,omitempty" json:"zip_code,omitempty"`
}

// OrderItem is one line of an order, priced at the time of ordering
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Price     float64            `bson:"price" json:"price"`
}

// Order represents a user's order
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	Items           []OrderItem        `bson:"items" json:"items"`
	TotalAmount     float64            `bson:"total_amount" json:"total_amount"`
	ShippingAddress Address            `bson:"shipping_address" json:"shipping_address"`
	PaymentStatus   PaymentStatus      `bson:"payment_status" json:"payment_status"`
	OrderStatus     OrderStatus        `bson:"order_status" json:"order_status"`
	PaymentMethod   string             `bson:"payment_method,omitempty" json:"payment_method,omitempty"`
	PaymentDate     *time.Time         `bson:"payment_date,omitempty" json:"payment_date,omitempty"`
	PaymentDetails  map[string]any     `bson:"payment_details,omitempty" json:"payment_details,omitempty"`
	TrackingNumber  string             `bson:"tracking_number,omitempty" json:"tracking_number,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}

// OwnedBy reports whether userID owns the order
func (o *Order) OwnedBy(userID primitive.ObjectID) bool {
	return !userID.IsZero() && o.UserID == userID
}

// OrderItemView is a line item with its product resolved for display
type OrderItemView struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderView is an order with owner and products resolved
type OrderView struct {
	ID              primitive.ObjectID `json:"id"`
	User            UserSummary        `json:"user"`
	Items           []OrderItemView    `json:"items"`
	TotalAmount     float64            `json:"total_amount"`
	ShippingAddress Address            `json:"shipping_address"`
	PaymentStatus   PaymentStatus      `json:"payment_status"`
	OrderStatus     OrderStatus        `json:"order_status"`
	PaymentMethod   string             `json:"payment_method,omitempty"`
	PaymentDate     *time.Time         `json:"payment_date,omitempty"`
	PaymentDetails  map[string]any     `json:"payment_details,omitempty"`
	TrackingNumber  string             `json:"tracking_number,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// OrderFilter narrows an administrator listing. Zero fields are ignored.
type OrderFilter struct {
	OrderStatus   OrderStatus
	PaymentStatus PaymentStatus
	From          *time.Time
	To            *time.Time
}

// StatusUpdate carries the administrator's status override. Nil fields are left untouched.
type StatusUpdate struct {
	OrderStatus    *OrderStatus   `json:"order_status,omitempty"`
	PaymentStatus  *PaymentStatus `json:"payment_status,omitempty"`
	TrackingNumber *string        `json:"tracking_number,omitempty"`
}

// Empty reports whether the update carries no fields
func (u StatusUpdate) Empty() bool {
	return u.OrderStatus == nil && u.PaymentStatus == nil && u.TrackingNumber == nil
}
