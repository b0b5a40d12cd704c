package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/shop-service/internal/user"
)

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest.Username may hold a username or an email address.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AddressRequest struct {
	AddressLine1 string `json:"address_line1" validate:"required,max=512"`
	AddressLine2 string `json:"address_line2" validate:"max=512"`
	City         string `json:"city" validate:"required,max=256"`
	State        string `json:"state" validate:"required,max=256"`
	Pincode      string `json:"pincode" validate:"required,max=30"`
	Country      string `json:"country" validate:"omitempty,max=128"`
	IsDefault    bool   `json:"is_default"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

const defaultCountry = "India"

type UserHandler struct {
	service  user.Service
	validate *validator.Validate
}

func NewUserHandler(service user.Service) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *UserHandler) RegisterRoutes(router chi.Router, authn func(http.Handler) http.Handler) {
	router.Post("/signup", h.handleSignup)
	router.Post("/login", h.handleLogin)

	router.Group(func(r chi.Router) {
		r.Use(authn)
		r.Get("/addresses", h.handleListAddresses)
		r.Post("/addresses", h.handleCreateAddress)
	})
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (h *UserHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, err, "Failed to sign up")
		return
	}

	respondWithJSON(w, http.StatusCreated, toUserResponse(created))
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondWithServiceError(w, err, "Failed to log in")
		return
	}

	respondWithJSON(w, http.StatusOK, LoginResponse{Token: res.Token, User: toUserResponse(&res.User)})
}

func (h *UserHandler) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	addresses, err := h.service.ListAddresses(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list addresses")
		return
	}

	respondWithJSON(w, http.StatusOK, addresses)
}

func (h *UserHandler) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req AddressRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if req.Country == "" {
		req.Country = defaultCountry
	}

	created, err := h.service.CreateAddress(r.Context(), &user.Address{
		UserID:       userID,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		Pincode:      req.Pincode,
		Country:      req.Country,
		IsDefault:    req.IsDefault,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create address")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}
