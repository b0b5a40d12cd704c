package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/shop-service/internal/catalog"
)

type CategoryRequest struct {
	Name     string     `json:"name" validate:"required,max=255"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CategoryID  *uuid.UUID      `json:"category_id"`
}

type DiscountRequest struct {
	Code      string          `json:"code" validate:"required,max=100"`
	Type      string          `json:"type" validate:"required,oneof=percentage fixed"`
	Value     decimal.Decimal `json:"value"`
	ValidFrom *time.Time      `json:"valid_from"`
	ValidTo   *time.Time      `json:"valid_to"`
	IsActive  *bool           `json:"is_active"`
}

type ApplyDiscountRequest struct {
	Code string `json:"code" validate:"required"`
}

type CatalogHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewCatalogHandler(service catalog.Service) *CatalogHandler {
	return &CatalogHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes exposes reads publicly; writes need an authenticated caller.
func (h *CatalogHandler) RegisterRoutes(router chi.Router, authn func(http.Handler) http.Handler) {
	router.Get("/categories", h.handleListCategories)
	router.Get("/products", h.handleListProducts)
	router.Get("/products/search", h.handleSearchProducts)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Get("/discounts", h.handleListDiscounts)

	router.Group(func(r chi.Router) {
		r.Use(authn)
		r.Post("/categories", h.handleCreateCategory)
		r.Post("/products", h.handleCreateProduct)
		r.Put("/products/{id}", h.handleUpdateProduct)
		r.Delete("/products/{id}", h.handleDeleteProduct)
		r.Post("/products/{id}/apply-discount", h.handleApplyDiscount)
		r.Post("/discounts", h.handleCreateDiscount)
	})
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil || *id == uuid.Nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.CreateCategory(r.Context(), &catalog.Category{
		Name:     req.Name,
		ParentID: nullUUID(req.ParentID),
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to create category")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func parsePrice(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (h *CatalogHandler) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.SearchFilter{
		Keyword:  q.Get("keyword"),
		Category: q.Get("category"),
	}

	var err error
	if filter.MinPrice, err = parsePrice(q.Get("min_price")); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid min_price: %v", err))
		return
	}
	if filter.MaxPrice, err = parsePrice(q.Get("max_price")); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid max_price: %v", err))
		return
	}

	products, err := h.service.SearchProducts(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to search products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get product")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (req ProductRequest) toProduct(id uuid.UUID) *catalog.Product {
	return &catalog.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  nullUUID(req.CategoryID),
	}
}

func (h *CatalogHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), req.toProduct(uuid.Nil))
	if err != nil {
		respondWithServiceError(w, err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), req.toProduct(id))
	if err != nil {
		respondWithServiceError(w, err, "Failed to update product")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *CatalogHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) handleApplyDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ApplyDiscountRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	if err := h.service.ApplyDiscount(r.Context(), id, req.Code); err != nil {
		respondWithServiceError(w, err, "Failed to apply discount")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "discount applied"})
}

func (h *CatalogHandler) handleListDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := h.service.ListDiscounts(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list discounts")
		return
	}
	respondWithJSON(w, http.StatusOK, discounts)
}

func (h *CatalogHandler) handleCreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	d := &catalog.Discount{
		Code:      req.Code,
		Type:      catalog.DiscountType(req.Type),
		Value:     req.Value,
		ValidFrom: req.ValidFrom,
		ValidTo:   req.ValidTo,
		IsActive:  true,
	}
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}

	created, err := h.service.CreateDiscount(r.Context(), d)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create discount")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}
