package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is the read-only subset of a catalog entry needed to display order lines.
// The catalog itself is maintained elsewhere.
type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string             `bson:"name" json:"name"`
	Specification string             `bson:"specification" json:"specification"`
	Cost          float64            `bson:"cost" json:"cost"`
}
