package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"aeroclub-shop/models"
	"aeroclub-shop/services"
	"aeroclub-shop/utils"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Key type for context
type contextKey string

const (
	userIDContextKey = contextKey("user_id")
	roleContextKey   = contextKey("role")
)

// TokenParser verifies bearer tokens
type TokenParser interface {
	ParseJWT(token string) (*utils.Claims, error)
}

// IdentityStore resolves a user id to the current account
type IdentityStore interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// AdminChecker decides whether a role is administrative
type AdminChecker interface {
	IsAdmin(role string) bool
}

// Gate is the authentication and authorization middleware chain
type Gate struct {
	tokens TokenParser
	users  IdentityStore
	authz  AdminChecker
}

func NewGate(tokens TokenParser, users IdentityStore, authz AdminChecker) *Gate {
	return &Gate{tokens: tokens, users: users, authz: authz}
}

// Authenticate verifies the bearer token and binds the user id to the request context
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			utils.RespondError(w, http.StatusUnauthorized, "Authorization header missing")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.RespondError(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		claims, err := g.tokens.ParseJWT(parts[1])
		if err != nil {
			utils.RespondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.RespondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		ctx = log.Ctx(ctx).With().Str("user_id", userID.Hex()).Logger().WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ResolveRole loads the authenticated user and records their role. It rejects
// users that no longer exist or were deactivated. Must run after Authenticate.
func (g *Gate) ResolveRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := g.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin ensures that the user has admin privileges. Must run after Authenticate.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := g.resolve(w, r)
		if !ok {
			return
		}
		role, _ := ctx.Value(roleContextKey).(string)
		if !g.authz.IsAdmin(role) {
			log.Ctx(ctx).Warn().Str("path", r.URL.Path).Msg("admin route denied")
			utils.RespondError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gate) resolve(w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	ctx := r.Context()
	if _, ok := ctx.Value(roleContextKey).(string); ok {
		return ctx, true
	}
	userID, ok := ctx.Value(userIDContextKey).(primitive.ObjectID)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	user, err := g.users.GetUser(ctx, userID)
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "User not found")
		return nil, false
	case err != nil:
		log.Ctx(ctx).Error().Err(err).Msg("failed to resolve user role")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	case !user.IsActive:
		utils.RespondError(w, http.StatusForbidden, "Account is deactivated")
		return nil, false
	}
	return context.WithValue(ctx, roleContextKey, user.Role), true
}

// RequesterFromContext returns the identity bound by the gate. Role is empty
// unless ResolveRole or RequireAdmin ran.
func RequesterFromContext(ctx context.Context) (services.Requester, bool) {
	userID, ok := ctx.Value(userIDContextKey).(primitive.ObjectID)
	if !ok {
		return services.Requester{}, false
	}
	role, _ := ctx.Value(roleContextKey).(string)
	return services.Requester{UserID: userID, Role: role}, true
}
