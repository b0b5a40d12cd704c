package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/shop-service/internal/cache"
)

var (
	ErrInvalidProduct  = errors.New("invalid product")
	ErrInvalidDiscount = errors.New("invalid discount")
	ErrInvalidCategory = errors.New("invalid category")
)

const categoriesCacheKey = "categories"

func productCacheKey(id uuid.UUID) string {
	return "product:" + id.String()
}

type Service interface {
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	SearchProducts(ctx context.Context, filter SearchFilter) ([]Product, error)
	UpdateProduct(ctx context.Context, p *Product) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	CreateCategory(ctx context.Context, c *Category) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)

	CreateDiscount(ctx context.Context, d *Discount) (*Discount, error)
	ListDiscounts(ctx context.Context) ([]Discount, error)
	ApplyDiscount(ctx context.Context, productID uuid.UUID, code string) error
}

type service struct {
	repo  Repository
	cache cache.Cache
	now   func() time.Time
}

func NewService(repo Repository, c cache.Cache) Service {
	if c == nil {
		c = cache.Noop()
	}
	return &service{repo: repo, cache: c, now: time.Now}
}

func validateProduct(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	}
	p.Price = p.Price.Round(2)
	return nil
}

func (s *service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.ID = uuid.Nil

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		log.Error().Err(err).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Str("name", p.Name).Msg("service: product created")
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var cached Product
	if s.cache.Get(ctx, productCacheKey(id), &cached) {
		return &cached, nil
	}

	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to get product")
		return nil, fmt.Errorf("service: failed to get product: %w", err)
	}

	if err := s.cache.Set(ctx, productCacheKey(id), p); err != nil {
		log.Warn().Err(err).Stringer("product_id", id).Msg("service: failed to cache product")
	}
	return p, nil
}

func (s *service) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}

func (s *service) SearchProducts(ctx context.Context, filter SearchFilter) ([]Product, error) {
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	filter.Category = strings.TrimSpace(filter.Category)
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, fmt.Errorf("%w: min_price is greater than max_price", ErrInvalidProduct)
	}

	products, err := s.repo.SearchProducts(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to search products")
		return nil, fmt.Errorf("service: failed to search products: %w", err)
	}
	return products, nil
}

func (s *service) UpdateProduct(ctx context.Context, p *Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrCategoryNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("product_id", p.ID).Msg("service: failed to update product")
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}
	s.invalidate(ctx, productCacheKey(p.ID))

	return s.repo.GetProductByID(ctx, p.ID)
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		if errors.Is(err, ErrProductInUse) {
			log.Warn().Stringer("product_id", id).Msg("service: refusing to delete product with order history")
			return ErrProductInUse
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}
	s.invalidate(ctx, productCacheKey(id))
	return nil
}

func (s *service) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	c.ID = uuid.Nil

	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		log.Error().Err(err).Msg("service: failed to create category")
		return nil, fmt.Errorf("service: failed to create category: %w", err)
	}
	s.invalidate(ctx, categoriesCacheKey)
	return c, nil
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	var cached []Category
	if s.cache.Get(ctx, categoriesCacheKey, &cached) {
		return cached, nil
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}

	if err := s.cache.Set(ctx, categoriesCacheKey, categories); err != nil {
		log.Warn().Err(err).Msg("service: failed to cache categories")
	}
	return categories, nil
}

func (s *service) CreateDiscount(ctx context.Context, d *Discount) (*Discount, error) {
	d.Code = strings.TrimSpace(d.Code)
	switch {
	case d.Code == "":
		return nil, fmt.Errorf("%w: code is required", ErrInvalidDiscount)
	case !d.Type.Valid():
		return nil, fmt.Errorf("%w: type must be %q or %q", ErrInvalidDiscount, DiscountPercentage, DiscountFixed)
	case !d.Value.IsPositive():
		return nil, fmt.Errorf("%w: value must be positive", ErrInvalidDiscount)
	case d.Type == DiscountPercentage && d.Value.GreaterThan(decimal.NewFromInt(100)):
		return nil, fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalidDiscount)
	case d.ValidFrom != nil && d.ValidTo != nil && d.ValidTo.Before(*d.ValidFrom):
		return nil, fmt.Errorf("%w: valid_to is before valid_from", ErrInvalidDiscount)
	}
	d.ID = uuid.Nil

	if err := s.repo.CreateDiscount(ctx, d); err != nil {
		if errors.Is(err, ErrDiscountCodeExists) {
			return nil, ErrDiscountCodeExists
		}
		log.Error().Err(err).Str("code", d.Code).Msg("service: failed to create discount")
		return nil, fmt.Errorf("service: failed to create discount: %w", err)
	}
	return d, nil
}

func (s *service) ListDiscounts(ctx context.Context) ([]Discount, error) {
	discounts, err := s.repo.ListDiscounts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list discounts")
		return nil, fmt.Errorf("service: failed to list discounts: %w", err)
	}
	return discounts, nil
}

func (s *service) ApplyDiscount(ctx context.Context, productID uuid.UUID, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidDiscount)
	}

	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("service: failed to get product for discount: %w", err)
	}

	d, err := s.repo.GetActiveDiscountByCode(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, ErrDiscountNotFound) {
			log.Warn().Str("code", code).Stringer("product_id", productID).Msg("service: discount code not found or inactive")
			return ErrDiscountNotFound
		}
		return fmt.Errorf("service: failed to get discount: %w", err)
	}

	if err := s.repo.AttachDiscount(ctx, productID, d.ID); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		log.Error().Err(err).Str("code", code).Stringer("product_id", productID).Msg("service: failed to apply discount")
		return fmt.Errorf("service: failed to apply discount: %w", err)
	}

	log.Info().Str("code", code).Stringer("product_id", productID).Msg("service: discount applied")
	return nil
}

func (s *service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("service: failed to invalidate cache")
	}
}
