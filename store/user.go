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

// UserStore keeps accounts in the "users" collection
type UserStore struct {
	Collection *mongo.Collection
	timeout    time.Duration
}

// NewUserStore creates a new UserStore
func NewUserStore(db *mongo.Database, timeout time.Duration) *UserStore {
	return &UserStore{
		Collection: db.Collection("users"),
		timeout:    timeout,
	}
}

// EnsureIndexes makes email unique across users
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) findOne(ctx context.Context, query bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user models.User
	err := s.Collection.FindOne(ctx, query).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *UserStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	return s.find(ctx, bson.M{})
}

func (s *UserStore) find(ctx context.Context, query bson.M) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.Collection.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// EmailTakenByOther reports whether any user other than exceptID holds email
func (s *UserStore) EmailTakenByOther(ctx context.Context, email string, exceptID primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.Collection.CountDocuments(ctx,
		bson.M{"email": email, "_id": bson.M{"$ne": exceptID}},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count > 0, nil
}

// Update applies patch and bumps updated_at
func (s *UserStore) Update(ctx context.Context, id primitive.ObjectID, patch models.UserPatch) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user models.User
	err := s.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": UserPatchSet(patch, time.Now().UTC())},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrDuplicate
	case err != nil:
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &user, nil
}

// UserPatchSet returns the $set document for the non-nil patch fields
func UserPatchSet(p models.UserPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.City != nil {
		set["city"] = *p.City
	}
	if p.Role != nil {
		set["role"] = *p.Role
	}
	if p.IsActive != nil {
		set["is_active"] = *p.IsActive
	}
	return set
}
