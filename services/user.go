package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"aeroclub-shop/models"
	"aeroclub-shop/policy"
	"aeroclub-shop/store"
	"aeroclub-shop/utils"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = validator.New()

const (
	minPasswordLength = 6
	maxNameLength     = 50
)

// Registration is the input to Register
type Registration struct {
	Name     string
	Email    string
	Password string
	Phone    string
	City     string
}

// ProfileUpdate is the input to UpdateProfile. Role and password are not part of it.
type ProfileUpdate struct {
	Name  string
	Email string
	Phone string
	City  string
}

// LoginResult carries the issued token and the authenticated user
type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// UserService manages accounts and issues bearer tokens
type UserService struct {
	users  UserStore
	authz  Authorizer
	tokens TokenIssuer
	now    func() time.Time
}

func NewUserService(users UserStore, authz Authorizer, tokens TokenIssuer) *UserService {
	return &UserService{
		users:  users,
		authz:  authz,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a standard, active account
func (s *UserService) Register(ctx context.Context, in Registration) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if err := validateProfile(name, email); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return nil, invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("user with this email already exists: %w", ErrEmailTaken)
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to check email")
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		City:         strings.TrimSpace(in.City),
		Role:         models.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("user with this email already exists: %w", ErrEmailTaken)
		}
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to create user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Ctx(ctx).Info().Str("user_id", user.ID.Hex()).Msg("service: user registered")
	return user, nil
}

// Login verifies the credentials and issues a bearer token
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("credentials", "please provide email and password")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to load user for login")
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := utils.CheckPassword(user.PasswordHash, password)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", user.ID.Hex()).Msg("service: stored password hash is unusable")
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok || !user.IsActive {
		log.Ctx(ctx).Warn().Str("user_id", user.ID.Hex()).Msg("service: login rejected")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateJWT(user.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &LoginResult{Token: token, User: *user}, nil
}

// GetUser loads a user by id
func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", id.Hex()).Msg("service: failed to load user")
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the requester's own contact details
func (s *UserService) UpdateProfile(ctx context.Context, req Requester, in ProfileUpdate) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if err := validateProfile(name, email); err != nil {
		return nil, err
	}

	taken, err := s.users.EmailTakenByOther(ctx, email, req.UserID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to check email")
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("email already in use by another user: %w", ErrEmailTaken)
	}

	phone := strings.TrimSpace(in.Phone)
	city := strings.TrimSpace(in.City)
	return s.update(ctx, req.UserID, models.UserPatch{Name: &name, Email: &email, Phone: &phone, City: &city})
}

// ListUsers returns every account. Administrators only.
func (s *UserService) ListUsers(ctx context.Context, req Requester) ([]models.User, error) {
	if !s.authz.Allowed(req.Role, policy.UsersManage) {
		return nil, fmt.Errorf("admin access required: %w", ErrForbidden)
	}
	users, err := s.users.List(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("service: failed to list users")
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUserAsAdmin loads any account. Administrators only.
func (s *UserService) GetUserAsAdmin(ctx context.Context, req Requester, id primitive.ObjectID) (*models.User, error) {
	if !s.authz.Allowed(req.Role, policy.UsersManage) {
		return nil, fmt.Errorf("admin access required: %w", ErrForbidden)
	}
	return s.GetUser(ctx, id)
}

// SetRole changes an account's role. Administrators only.
func (s *UserService) SetRole(ctx context.Context, req Requester, id primitive.ObjectID, role string) (*models.User, error) {
	if !s.authz.Allowed(req.Role, policy.UsersManage) {
		return nil, fmt.Errorf("admin access required: %w", ErrForbidden)
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, invalid("role", fmt.Sprintf("unknown role %q", role))
	}
	user, err := s.update(ctx, id, models.UserPatch{Role: &role})
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("user_id", id.Hex()).Str("role", role).Str("by", req.UserID.Hex()).Msg("service: role changed")
	return user, nil
}

// SetActive enables or disables an account. Administrators only.
func (s *UserService) SetActive(ctx context.Context, req Requester, id primitive.ObjectID, active bool) (*models.User, error) {
	if !s.authz.Allowed(req.Role, policy.UsersManage) {
		return nil, fmt.Errorf("admin access required: %w", ErrForbidden)
	}
	if id == req.UserID && !active {
		return nil, invalid("is_active", "administrators cannot deactivate themselves")
	}
	return s.update(ctx, id, models.UserPatch{IsActive: &active})
}

// EnsureAdmin creates an administrator with the given credentials unless the
// email is already registered.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	user, err := s.Register(ctx, Registration{Name: "Administrator", Email: email, Password: password})
	if err != nil {
		return err
	}
	role := models.RoleAdmin
	if _, err := s.users.Update(ctx, user.ID, models.UserPatch{Role: &role}); err != nil {
		return fmt.Errorf("failed to promote admin: %w", err)
	}
	log.Ctx(ctx).Info().Str("user_id", user.ID.Hex()).Msg("service: administrator seeded")
	return nil
}

func (s *UserService) update(ctx context.Context, id primitive.ObjectID, patch models.UserPatch) (*models.User, error) {
	user, err := s.users.Update(ctx, id, patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("user %s: %w", id.Hex(), ErrNotFound)
	case errors.Is(err, store.ErrDuplicate):
		return nil, fmt.Errorf("email already in use by another user: %w", ErrEmailTaken)
	case err != nil:
		log.Ctx(ctx).Error().Err(err).Str("user_id", id.Hex()).Msg("service: failed to update user")
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateProfile(name, email string) error {
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "name is required"
	} else if utf8.RuneCountInString(name) > maxNameLength {
		fields["name"] = fmt.Sprintf("name can not be more than %d characters", maxNameLength)
	}
	if email == "" {
		fields["email"] = "email is required"
	} else if err := validate.Var(email, "email"); err != nil {
		fields["email"] = "please provide a valid email address"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
