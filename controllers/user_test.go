package controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"aeroclub-shop/models"
	"aeroclub-shop/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserController_Register(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]interface{}
		setup func(ts *testServer)
		want  int
	}{
		{
			name: "success",
			body: map[string]interface{}{"name": "Noa", "email": "noa@example.com", "password": "secret1", "city": "Haifa"},
			setup: func(ts *testServer) {
				ts.users.On("Register", mock.Anything, services.Registration{
					Name: "Noa", Email: "noa@example.com", Password: "secret1", City: "Haifa",
				}).Return(&models.User{ID: primitive.NewObjectID(), Name: "Noa", Email: "noa@example.com", PasswordHash: "$2a$10$hash"}, nil).Once()
			},
			want: http.StatusCreated,
		},
		{
			name: "missing_fields",
			body: map[string]interface{}{"name": "Noa"},
			want: http.StatusBadRequest,
		},
		{
			name: "email_taken",
			body: map[string]interface{}{"name": "Noa", "email": "noa@example.com", "password": "secret1"},
			setup: func(ts *testServer) {
				ts.users.On("Register", mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("user with this email already exists: %w", services.ErrEmailTaken)).Once()
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			if tt.setup != nil {
				tt.setup(ts)
			}
			rr := ts.do(t, http.MethodPost, "/users/register", models.User{}, tt.body)
			require.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotContains(t, rr.Body.String(), "$2a$", "password hash must never be serialized")
		})
	}
}

func TestUserController_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ts := newTestServer(t)
		ts.users.On("Login", mock.Anything, "noa@example.com", "secret1").
			Return(&services.LoginResult{Token: "signed", User: models.User{Name: "Noa"}}, nil).Once()

		rr := ts.do(t, http.MethodPost, "/users/login", models.User{}, map[string]string{"email": "noa@example.com", "password": "secret1"})
		require.Equal(t, http.StatusOK, rr.Code)

		var got services.LoginResult
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &got))
		assert.Equal(t, "signed", got.Token)
	})

	t.Run("bad_credentials", func(t *testing.T) {
		ts := newTestServer(t)
		ts.users.On("Login", mock.Anything, mock.Anything, mock.Anything).Return(nil, services.ErrInvalidCredentials).Once()

		rr := ts.do(t, http.MethodPost, "/users/login", models.User{}, map[string]string{"email": "noa@example.com", "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestUserController_Profile(t *testing.T) {
	ts := newTestServer(t)
	ts.users.On("GetUser", mock.Anything, ts.member.ID).Return(&ts.member, nil).Once()
	ts.users.On("UpdateProfile", mock.Anything, resolved(ts.member), services.ProfileUpdate{Name: "Pilot", Email: "p@example.com", City: "Acre"}).
		Return(&ts.member, nil).Once()

	rr := ts.do(t, http.MethodGet, "/users/me", ts.member, nil)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodPut, "/users/me", ts.member, map[string]string{"name": "Pilot", "email": "p@example.com", "city": "Acre"})
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/users/me", models.User{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserController_AdminRoutes(t *testing.T) {
	target := primitive.NewObjectID()

	t.Run("list", func(t *testing.T) {
		ts := newTestServer(t)
		ts.users.On("ListUsers", mock.Anything, resolved(ts.admin)).Return([]models.User{ts.admin, ts.member}, nil).Once()

		rr := ts.do(t, http.MethodGet, "/users", ts.admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		env := decodeEnvelope(t, rr)
		require.NotNil(t, env.Count)
		assert.Equal(t, 2, *env.Count)
	})

	t.Run("member_forbidden", func(t *testing.T) {
		ts := newTestServer(t)
		rr := ts.do(t, http.MethodGet, "/users", ts.member, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("get_missing", func(t *testing.T) {
		ts := newTestServer(t)
		ts.users.On("GetUserAsAdmin", mock.Anything, resolved(ts.admin), target).
			Return(nil, fmt.Errorf("user %s: %w", target.Hex(), services.ErrNotFound)).Once()

		rr := ts.do(t, http.MethodGet, "/users/"+target.Hex(), ts.admin, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("set_role", func(t *testing.T) {
		ts := newTestServer(t)
		ts.users.On("SetRole", mock.Anything, resolved(ts.admin), target, models.RoleAdmin).
			Return(&models.User{ID: target, Role: models.RoleAdmin}, nil).Once()

		rr := ts.do(t, http.MethodPut, "/users/"+target.Hex()+"/role", ts.admin, map[string]string{"role": "admin"})
		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("set_role_unknown", func(t *testing.T) {
		ts := newTestServer(t)
		rr := ts.do(t, http.MethodPut, "/users/"+target.Hex()+"/role", ts.admin, map[string]string{"role": "pilot"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeEnvelope(t, rr).Details, "role")
	})

	t.Run("set_active", func(t *testing.T) {
		ts := newTestServer(t)
		ts.users.On("SetActive", mock.Anything, resolved(ts.admin), target, false).
			Return(&models.User{ID: target}, nil).Once()

		rr := ts.do(t, http.MethodPut, "/users/"+target.Hex()+"/active", ts.admin, map[string]bool{"is_active": false})
		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("set_active_missing_flag", func(t *testing.T) {
		ts := newTestServer(t)
		rr := ts.do(t, http.MethodPut, "/users/"+target.Hex()+"/active", ts.admin, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/health", models.User{}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
