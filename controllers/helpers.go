package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"aeroclub-shop/middleware"
	"aeroclub-shop/services"
	"aeroclub-shop/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dateLayout = "2006-01-02"

var errInvalidRequest = errors.New("invalid request")

// NewValidator returns a validator that reports fields by their JSON name
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 response itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return false
		}
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fieldPath(fe)] = fieldMessage(fe)
		}
		utils.RespondJSON(w, http.StatusBadRequest, utils.Envelope{Error: "Validation failed", Details: details})
		return false
	}
	return true
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// respondServiceError maps a service error onto a status code
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.RespondJSON(w, http.StatusBadRequest, utils.Envelope{Error: "Validation failed", Details: verr.Fields})
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, errInvalidRequest):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

// requester returns the authenticated identity or answers 401
func requester(w http.ResponseWriter, r *http.Request) (services.Requester, bool) {
	req, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return req, ok
}

// pathID parses the {id} route variable. A malformed id cannot name any
// document, so it is reported as not found.
func pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "Resource not found")
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseDate accepts RFC 3339 or a bare day. A bare day used as an upper bound
// covers the whole day.
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be RFC 3339 or YYYY-MM-DD", errInvalidRequest, value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func intPtr(n int) *int { return &n }
