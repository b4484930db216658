package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"aeroclub-shop/controllers"
	"aeroclub-shop/middleware"
	"aeroclub-shop/models"
	"aeroclub-shop/policy"
	"aeroclub-shop/routes"
	"aeroclub-shop/services"
	"aeroclub-shop/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, req services.Requester, items []models.OrderItem, total float64, addr models.Address) (*models.Order, error) {
	args := m.Called(ctx, req, items, total, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) CreateOrderFromCart(ctx context.Context, req services.Requester, cart []models.CartItem, addr models.Address, method string) (*models.Order, error) {
	args := m.Called(ctx, req, cart, addr, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, req services.Requester, id primitive.ObjectID) (*models.OrderView, error) {
	args := m.Called(ctx, req, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderView), args.Error(1)
}

func (m *MockOrderService) ListOrdersForUser(ctx context.Context, req services.Requester) ([]models.OrderView, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderView), args.Error(1)
}

func (m *MockOrderService) ListAllOrders(ctx context.Context, req services.Requester, filter models.OrderFilter) ([]models.OrderView, error) {
	args := m.Called(ctx, req, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrderView), args.Error(1)
}

func (m *MockOrderService) UpdateShippingAddress(ctx context.Context, req services.Requester, id primitive.ObjectID, addr models.Address) (*models.Order, error) {
	args := m.Called(ctx, req, id, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) DeleteOrder(ctx context.Context, req services.Requester, id primitive.ObjectID) error {
	return m.Called(ctx, req, id).Error(0)
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, req services.Requester, id primitive.ObjectID, update models.StatusUpdate) (*models.Order, error) {
	args := m.Called(ctx, req, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) ProcessPayment(ctx context.Context, req services.Requester, id primitive.ObjectID, method string, details map[string]any) (*models.Receipt, *models.Order, error) {
	args := m.Called(ctx, req, id, method, details)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Receipt), args.Get(1).(*models.Order), args.Error(2)
}

func (m *MockOrderService) GetOrderStats(ctx context.Context, req services.Requester) (*models.OrderStats, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderStats), args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in services.Registration) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LoginResult), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, req services.Requester, in services.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, req, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context, req services.Requester) ([]models.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserService) GetUserAsAdmin(ctx context.Context, req services.Requester, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, req, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SetRole(ctx context.Context, req services.Requester, id primitive.ObjectID, role string) (*models.User, error) {
	args := m.Called(ctx, req, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) SetActive(ctx context.Context, req services.Requester, id primitive.ObjectID, active bool) (*models.User, error) {
	args := m.Called(ctx, req, id, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// identities backs the auth gate in handler tests
type identities map[primitive.ObjectID]models.User

func (f identities) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	if u, ok := f[id]; ok {
		return &u, nil
	}
	return nil, fmt.Errorf("user %s: %w", id.Hex(), services.ErrNotFound)
}

type testServer struct {
	router   *mux.Router
	tokens   *utils.TokenManager
	orders   *MockOrderService
	users    *MockUserService
	admin    models.User
	member   models.User
	inactive models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	authz, err := policy.New()
	require.NoError(t, err)

	ts := &testServer{
		tokens:   utils.NewTokenManager([]byte("test-secret"), time.Hour),
		orders:   new(MockOrderService),
		users:    new(MockUserService),
		admin:    models.User{ID: primitive.NewObjectID(), Name: "Root", Role: models.RoleAdmin, IsActive: true},
		member:   models.User{ID: primitive.NewObjectID(), Name: "Pilot", Role: models.RoleUser, IsActive: true},
		inactive: models.User{ID: primitive.NewObjectID(), Name: "Grounded", Role: models.RoleUser, IsActive: false},
	}
	gate := middleware.NewGate(ts.tokens, identities{
		ts.admin.ID:    ts.admin,
		ts.member.ID:   ts.member,
		ts.inactive.ID: ts.inactive,
	}, authz)
	validate := controllers.NewValidator()

	ts.router = mux.NewRouter()
	routes.RegisterRoutes(ts.router, gate,
		controllers.NewUserController(ts.users, validate),
		controllers.NewOrderController(ts.orders, validate),
	)
	t.Cleanup(func() {
		ts.orders.AssertExpectations(t)
		ts.users.AssertExpectations(t)
	})
	return ts
}

// do sends a request as the given user. A zero user sends no token.
func (ts *testServer) do(t *testing.T, method, path string, as models.User, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if !as.ID.IsZero() {
		token, err := ts.tokens.GenerateJWT(as.ID.Hex())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data    json.RawMessage   `json:"data"`
	Count   *int              `json:"count"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func resolved(u models.User) services.Requester {
	return services.Requester{UserID: u.ID, Role: u.Role}
}
