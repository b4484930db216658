package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aeroclub-shop/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderStore keeps orders in the "orders" collection
type OrderStore struct {
	Collection *mongo.Collection
	timeout    time.Duration
}

// NewOrderStore creates a new OrderStore
func NewOrderStore(db *mongo.Database, timeout time.Duration) *OrderStore {
	return &OrderStore{
		Collection: db.Collection("orders"),
		timeout:    timeout,
	}
}

// EnsureIndexes creates the indexes used by the owner and admin listings
func (s *OrderStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}

func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, err := s.Collection.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var order models.Order
	err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}

func (s *OrderStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.find(ctx, bson.M{"user_id": userID}, 0)
}

// List returns orders matching filter, newest first. A limit of 0 means no limit.
func (s *OrderStore) List(ctx context.Context, filter models.OrderFilter, limit int64) ([]models.Order, error) {
	return s.find(ctx, OrderFilterQuery(filter), limit)
}

func (s *OrderStore) find(ctx context.Context, query bson.M, limit int64) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// SetShippingAddressAwaiting replaces the address only while the order awaits payment
func (s *OrderStore) SetShippingAddressAwaiting(ctx context.Context, id primitive.ObjectID, addr models.Address) (*models.Order, error) {
	return s.updateAwaiting(ctx, id, bson.M{"shipping_address": addr})
}

// MarkPaidAwaiting flips payment status to paid only while the order awaits payment
func (s *OrderStore) MarkPaidAwaiting(ctx context.Context, id primitive.ObjectID, method string, paidAt time.Time, details map[string]any) (*models.Order, error) {
	set := bson.M{
		"payment_status": models.PaymentPaid,
		"payment_method": method,
		"payment_date":   paidAt,
	}
	if details != nil {
		set["payment_details"] = details
	}
	return s.updateAwaiting(ctx, id, set)
}

func (s *OrderStore) updateAwaiting(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var order models.Order
	err := s.Collection.FindOneAndUpdate(ctx,
		awaitingPayment(id),
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPreconditionFailed
	}
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return &order, nil
}

// DeleteAwaiting removes the order only while it awaits payment
func (s *OrderStore) DeleteAwaiting(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.Collection.DeleteOne(ctx, awaitingPayment(id))
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// UpdateStatus sets the supplied status fields regardless of the current state
func (s *OrderStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, update models.StatusUpdate) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var order models.Order
	err := s.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": StatusUpdateSet(update)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return &order, nil
}

// SummarizeByStatus groups every order by order status with count and revenue
func (s *OrderStore) SummarizeByStatus(ctx context.Context) ([]models.StatusBreakdown, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.Collection.Aggregate(ctx, statusSummaryPipeline())
	if err != nil {
		return nil, fmt.Errorf("aggregate orders: %w", err)
	}
	defer cursor.Close(ctx)

	groups := []models.StatusBreakdown{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode order groups: %w", err)
	}
	return groups, nil
}

func statusSummaryPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$order_status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$total_amount"}}},
		}}},
	}
}

// awaitingPayment matches the order only while it still awaits payment
func awaitingPayment(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "payment_status": models.PaymentAwaiting}
}

// OrderFilterQuery translates an admin listing filter into a query document
func OrderFilterQuery(f models.OrderFilter) bson.M {
	query := bson.M{}
	if f.OrderStatus != "" {
		query["order_status"] = f.OrderStatus
	}
	if f.PaymentStatus != "" {
		query["payment_status"] = f.PaymentStatus
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = *f.From
		}
		if f.To != nil {
			created["$lte"] = *f.To
		}
		query["created_at"] = created
	}
	return query
}

// StatusUpdateSet returns the $set document for the supplied fields only
func StatusUpdateSet(u models.StatusUpdate) bson.M {
	set := bson.M{}
	if u.OrderStatus != nil {
		set["order_status"] = *u.OrderStatus
	}
	if u.PaymentStatus != nil {
		set["payment_status"] = *u.PaymentStatus
	}
	if u.TrackingNumber != nil {
		set["tracking_number"] = *u.TrackingNumber
	}
	return set
}
