package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"aeroclub-shop/models"
	"aeroclub-shop/store"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memOrderStore mirrors the conditional-write contract of store.OrderStore
type memOrderStore struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]models.Order
	err    error
	// beforeWrite runs between the service's guard read and its conditional write
	beforeWrite func()
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: map[primitive.ObjectID]models.Order{}}
}

func (m *memOrderStore) put(o models.Order) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	m.orders[o.ID] = o
	return o
}

func (m *memOrderStore) get(id primitive.ObjectID) (models.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

func (m *memOrderStore) Create(_ context.Context, order *models.Order) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	m.orders[order.ID] = *order
	return nil
}

func (m *memOrderStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (m *memOrderStore) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return m.filter(func(o models.Order) bool { return o.UserID == userID }, 0), nil
}

func (m *memOrderStore) List(_ context.Context, f models.OrderFilter, limit int64) ([]models.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.filter(func(o models.Order) bool {
		if f.OrderStatus != "" && o.OrderStatus != f.OrderStatus {
			return false
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			return false
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			return false
		}
		return true
	}, limit), nil
}

func (m *memOrderStore) filter(keep func(models.Order) bool, limit int64) []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memOrderStore) updateAwaiting(id primitive.ObjectID, apply func(*models.Order)) (*models.Order, error) {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != models.PaymentAwaiting {
		return nil, store.ErrPreconditionFailed
	}
	apply(&o)
	m.orders[id] = o
	return &o, nil
}

func (m *memOrderStore) SetShippingAddressAwaiting(_ context.Context, id primitive.ObjectID, addr models.Address) (*models.Order, error) {
	return m.updateAwaiting(id, func(o *models.Order) { o.ShippingAddress = addr })
}

func (m *memOrderStore) MarkPaidAwaiting(_ context.Context, id primitive.ObjectID, method string, paidAt time.Time, details map[string]any) (*models.Order, error) {
	return m.updateAwaiting(id, func(o *models.Order) {
		o.PaymentStatus = models.PaymentPaid
		o.PaymentMethod = method
		o.PaymentDate = &paidAt
		if details != nil {
			o.PaymentDetails = details
		}
	})
}

func (m *memOrderStore) DeleteAwaiting(_ context.Context, id primitive.ObjectID) error {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != models.PaymentAwaiting {
		return store.ErrPreconditionFailed
	}
	delete(m.orders, id)
	return nil
}

func (m *memOrderStore) UpdateStatus(_ context.Context, id primitive.ObjectID, u models.StatusUpdate) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.OrderStatus != nil {
		o.OrderStatus = *u.OrderStatus
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}
	if u.TrackingNumber != nil {
		o.TrackingNumber = *u.TrackingNumber
	}
	m.orders[id] = o
	return &o, nil
}

func (m *memOrderStore) SummarizeByStatus(_ context.Context) ([]models.StatusBreakdown, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byStatus := map[models.OrderStatus]*models.StatusBreakdown{}
	for _, o := range m.orders {
		g, ok := byStatus[o.OrderStatus]
		if !ok {
			g = &models.StatusBreakdown{OrderStatus: o.OrderStatus}
			byStatus[o.OrderStatus] = g
		}
		g.Count++
		g.Revenue += o.TotalAmount
	}
	out := []models.StatusBreakdown{}
	for _, g := range byStatus {
		out = append(out, *g)
	}
	return out, nil
}

type memUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func newMemUserStore(users ...models.User) *memUserStore {
	m := &memUserStore{users: map[primitive.ObjectID]models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUserStore) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *memUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUserStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUserStore) EmailTakenByOther(_ context.Context, email string, exceptID primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && u.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUserStore) Update(_ context.Context, id primitive.ObjectID, p models.UserPatch) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.City != nil {
		u.City = *p.City
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	m.users[id] = u
	return &u, nil
}

func (m *memUserStore) List(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

type memProductStore struct {
	products map[primitive.ObjectID]models.Product
}

func (m *memProductStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendPaymentReceipt(user models.User, receipt models.Receipt) error {
	return m.Called(user, receipt).Error(0)
}

func (m *mockNotifier) SendStatusUpdate(user models.User, order models.Order) error {
	return m.Called(user, order).Error(0)
}

type stubTokens struct {
	token string
	err   error
}

func (s stubTokens) GenerateJWT(userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token + userID, nil
}
