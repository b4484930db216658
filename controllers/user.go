package controllers

import (
	"context"
	"net/http"

	"aeroclub-shop/models"
	"aeroclub-shop/services"
	"aeroclub-shop/utils"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserService is the account workflow the handlers drive
type UserService interface {
	Register(ctx context.Context, in services.Registration) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, req services.Requester, in services.ProfileUpdate) (*models.User, error)
	ListUsers(ctx context.Context, req services.Requester) ([]models.User, error)
	GetUserAsAdmin(ctx context.Context, req services.Requester, id primitive.ObjectID) (*models.User, error)
	SetRole(ctx context.Context, req services.Requester, id primitive.ObjectID, role string) (*models.User, error)
	SetActive(ctx context.Context, req services.Requester, id primitive.ObjectID, active bool) (*models.User, error)
}

// UserController handles user-related requests
type UserController struct {
	users    UserService
	validate *validator.Validate
}

// NewUserController creates a new UserController
func NewUserController(users UserService, validate *validator.Validate) *UserController {
	return &UserController{users: users, validate: validate}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
	Phone string `json:"phone"`
	City  string `json:"city"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type activeRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeAndValidate(w, r, uc.validate, &body) {
		return
	}

	user, err := uc.users.Register(r.Context(), services.Registration{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Phone:    body.Phone,
		City:     body.City,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, utils.Envelope{Message: "User registered successfully", Data: user})
}

// Login handles user login
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeAndValidate(w, r, uc.validate, &body) {
		return
	}

	result, err := uc.users.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Message: "Login successful", Data: result})
}

// GetProfile returns the authenticated user's profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	user, err := uc.users.GetUser(r.Context(), req.UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Data: user})
}

// UpdateProfile changes the authenticated user's contact details
func (uc *UserController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	var body profileRequest
	if !decodeAndValidate(w, r, uc.validate, &body) {
		return
	}

	user, err := uc.users.UpdateProfile(r.Context(), req, services.ProfileUpdate{
		Name:  body.Name,
		Email: body.Email,
		Phone: body.Phone,
		City:  body.City,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Message: "Profile updated successfully", Data: user})
}

// ListUsers returns every account
func (uc *UserController) ListUsers(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	users, err := uc.users.ListUsers(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Count: intPtr(len(users)), Data: users})
}

// GetUser returns any account by id
func (uc *UserController) GetUser(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := uc.users.GetUserAsAdmin(r.Context(), req, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Data: user})
}

// SetRole promotes or demotes an account
func (uc *UserController) SetRole(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body roleRequest
	if !decodeAndValidate(w, r, uc.validate, &body) {
		return
	}

	user, err := uc.users.SetRole(r.Context(), req, id, body.Role)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Message: "Role updated successfully", Data: user})
}

// SetActive enables or disables an account
func (uc *UserController) SetActive(w http.ResponseWriter, r *http.Request) {
	req, ok := requester(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body activeRequest
	if !decodeAndValidate(w, r, uc.validate, &body) {
		return
	}

	user, err := uc.users.SetActive(r.Context(), req, id, *body.IsActive)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, utils.Envelope{Message: "Account status updated successfully", Data: user})
}
