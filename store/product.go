package store

import (
	"context"
	"fmt"
	"time"

	"aeroclub-shop/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProductStore reads the "products" collection, which is maintained outside this service
type ProductStore struct {
	Collection *mongo.Collection
	timeout    time.Duration
}

// NewProductStore creates a new ProductStore
func NewProductStore(db *mongo.Database, timeout time.Duration) *ProductStore {
	return &ProductStore{
		Collection: db.Collection("products"),
		timeout:    timeout,
	}
}

func (s *ProductStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"name": 1, "specification": 1, "cost": 1})
	cursor, err := s.Collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}
