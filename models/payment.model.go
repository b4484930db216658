package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Receipt is returned after a successful payment capture
type Receipt struct {
	OrderID       primitive.ObjectID `json:"order_id"`
	TotalAmount   float64            `json:"total_amount"`
	PaymentDate   time.Time          `json:"payment_date"`
	PaymentMethod string             `json:"payment_method"`
}

// StatusBreakdown is the count and revenue of orders sharing an order status
type StatusBreakdown struct {
	OrderStatus OrderStatus `bson:"_id" json:"order_status"`
	Count       int         `bson:"count" json:"count"`
	Revenue     float64     `bson:"revenue" json:"revenue"`
}

// OrderStats is the administrator overview
type OrderStats struct {
	TotalOrders    int               `json:"total_orders"`
	TotalRevenue   float64           `json:"total_revenue"`
	AvgOrderValue  float64           `json:"avg_order_value"`
	OrdersByStatus []StatusBreakdown `json:"orders_by_status"`
	RecentOrders   []OrderView       `json:"recent_orders"`
}
