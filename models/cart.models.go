package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem is a line of a client-side cart submitted for checkout.
// Prices are taken as supplied.
type CartItem struct {
	ProductID primitive.ObjectID `json:"product_id" validate:"required"`
	Quantity  int                `json:"quantity" validate:"required,min=1"`
	Price     float64            `json:"price" validate:"gte=0"`
}
