package services

import (
	"context"
	"time"

	"aeroclub-shop/models"
	"aeroclub-shop/policy"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStore persists orders. The Awaiting* methods only write while the order is
// still awaiting payment and return store.ErrPreconditionFailed otherwise.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	List(ctx context.Context, filter models.OrderFilter, limit int64) ([]models.Order, error)
	SetShippingAddressAwaiting(ctx context.Context, id primitive.ObjectID, addr models.Address) (*models.Order, error)
	MarkPaidAwaiting(ctx context.Context, id primitive.ObjectID, method string, paidAt time.Time, details map[string]any) (*models.Order, error)
	DeleteAwaiting(ctx context.Context, id primitive.ObjectID) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, update models.StatusUpdate) (*models.Order, error)
	SummarizeByStatus(ctx context.Context) ([]models.StatusBreakdown, error)
}

// UserStore persists user accounts
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	EmailTakenByOther(ctx context.Context, email string, exceptID primitive.ObjectID) (bool, error)
	Update(ctx context.Context, id primitive.ObjectID, patch models.UserPatch) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// ProductStore resolves catalog entries referenced by order lines
type ProductStore interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
}

// Authorizer is the role/operation policy table
type Authorizer interface {
	Allowed(role string, op policy.Operation) bool
}

// Notifier emails order owners about changes to their orders
type Notifier interface {
	SendPaymentReceipt(user models.User, receipt models.Receipt) error
	SendStatusUpdate(user models.User, order models.Order) error
}

// TokenIssuer signs bearer tokens for a user id
type TokenIssuer interface {
	GenerateJWT(userID string) (string, error)
}

// Requester is the caller identity bound by the auth gate. Role is empty when
// the route did not resolve it.
type Requester struct {
	UserID primitive.ObjectID
	Role   string
}
