package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/shop-service/internal/order"
	"github.com/vasiliy-maslov/shop-service/internal/payment"
)

// OrderItemRequest.Quantity defaults to 1 when omitted.
type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress *uuid.UUID         `json:"shipping_address"`
}

type CheckoutRequest struct {
	ShippingAddress *uuid.UUID `json:"shipping_address"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type PaymentRequest struct {
	Method string           `json:"method" validate:"max=50"`
	Amount *decimal.Decimal `json:"amount"`
	Status string           `json:"status" validate:"max=50"`
}

type PaymentResponse struct {
	Status         string                 `json:"status"`
	PaymentID      uuid.UUID              `json:"payment_id"`
	Amount         decimal.Decimal        `json:"amount"`
	OrderStatus    string                 `json:"order_status"`
	Reconciliation payment.Reconciliation `json:"reconciliation"`
}

type OrderHandler struct {
	orders   order.Service
	payments payment.Service
	validate *validator.Validate
}

func NewOrderHandler(orders order.Service, payments payment.Service) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		payments: payments,
		validate: newValidator(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router, authn func(http.Handler) http.Handler) {
	router.Group(func(r chi.Router) {
		r.Use(authn)
		r.Post("/orders/create", h.handleCreateOrder)
		r.Post("/orders/checkout", h.handleCheckout)
		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Patch("/orders/{id}/status", h.handleUpdateStatus)
		r.Post("/orders/{id}/pay", h.handlePay)
	})
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	items := make([]order.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		quantity := 1
		if it.Quantity != nil {
			quantity = *it.Quantity
		}
		items = append(items, order.LineItem{ProductID: it.ProductID, Quantity: quantity})
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderInput{
		UserID:            userID,
		Items:             items,
		ShippingAddressID: req.ShippingAddress,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{
		"message":  "order created",
		"order_id": o.ID.String(),
	})
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if !decodeOptional(w, r, h.validate, &req) {
		return
	}

	o, err := h.orders.Checkout(r.Context(), userID, req.ShippingAddress)
	if err != nil {
		respondWithServiceError(w, err, "Failed to check out cart")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{
		"message":  "order created",
		"order_id": o.ID.String(),
	})
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	o, err := h.orders.UpdateOrderStatus(r.Context(), userID, orderID, order.Status(req.Status))
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req PaymentRequest
	if !decodeOptional(w, r, h.validate, &req) {
		return
	}
	// A zero amount counts as absent and falls back to the order total.
	if req.Amount != nil && req.Amount.IsZero() {
		req.Amount = nil
	}

	res, err := h.payments.RecordPayment(r.Context(), payment.RecordPaymentInput{
		OrderID: orderID,
		UserID:  userID,
		Method:  req.Method,
		Amount:  req.Amount,
		Status:  req.Status,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to record payment")
		return
	}

	respondWithJSON(w, http.StatusCreated, PaymentResponse{
		Status:         "payment created",
		PaymentID:      res.Payment.ID,
		Amount:         res.Payment.Amount,
		OrderStatus:    res.OrderStatus,
		Reconciliation: res.Reconciliation,
	})
}
