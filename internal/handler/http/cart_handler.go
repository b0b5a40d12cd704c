package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/shop-service/internal/cart"
)

// AddToCartRequest.Quantity defaults to 1 when omitted.
type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router, authn func(http.Handler) http.Handler) {
	router.Group(func(r chi.Router) {
		r.Use(authn)
		r.Get("/cart", h.handleGetCart)
		r.Post("/cart/add", h.handleAddItem)
		r.Put("/cart/item/{id}", h.handleUpdateItem)
		r.Delete("/cart/item/{id}", h.handleRemoveItem)
		r.Delete("/cart/clear/{userId}", h.handleClearCart)
	})
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	c, err := h.service.ListCart(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get cart")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req AddToCartRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	c, err := h.service.AddItem(r.Context(), userID, req.ProductID, quantity)
	if err != nil {
		respondWithServiceError(w, err, "Failed to add item to cart")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Item added to cart",
		"cart_id": c.ID.String(),
	})
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	result, err := h.service.UpdateItem(r.Context(), userID, itemID, *req.Quantity)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update cart item")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": string(result)})
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.RemoveItem(r.Context(), userID, itemID); err != nil {
		respondWithServiceError(w, err, "Failed to remove cart item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearCart only clears the caller's own cart. Any other userId is
// reported as a missing cart.
func (h *CartHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	callerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	userID, ok := uuidParam(w, r, "userId")
	if !ok {
		return
	}
	if userID != callerID {
		respondWithServiceError(w, cart.ErrCartNotFound, "Failed to clear cart")
		return
	}

	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		respondWithServiceError(w, err, "Failed to clear cart")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}
