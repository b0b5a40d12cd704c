package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/shop-service/internal/db"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// ProductFinder resolves products from the primary store.
type ProductFinder interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

type Service interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Cart, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (UpdateResult, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
	ListCart(ctx context.Context, userID uuid.UUID) (*Cart, error)
	// Items returns the lines of an existing cart without creating one. Inside a
	// transaction the cart stays locked until it ends, so a following ClearCart
	// removes exactly the lines that were read.
	Items(ctx context.Context, userID uuid.UUID) ([]CartItem, error)
}

type service struct {
	repo     Repository
	products ProductFinder
	tx       db.TxManager
}

func NewService(repo Repository, products ProductFinder, tx db.TxManager) Service {
	return &service{repo: repo, products: products, tx: tx}
}

func (s *service) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to get or create cart")
		return nil, fmt.Errorf("service: failed to get or create cart: %w", err)
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	if _, err := s.products.GetProductByID(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to look up product: %w", err)
	}

	var c *Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if _, err := s.repo.AddOrIncrement(ctx, c.ID, productID, quantity); err != nil {
			return err
		}
		c.Items, err = s.repo.ListItems(ctx, c.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		log.Error().Err(err).Stringer("user_id", userID).Stringer("product_id", productID).Msg("service: failed to add item to cart")
		return nil, fmt.Errorf("service: failed to add item to cart: %w", err)
	}

	log.Debug().Stringer("cart_id", c.ID).Stringer("product_id", productID).Int("quantity", quantity).Msg("service: item added to cart")
	return c, nil
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (UpdateResult, error) {
	var result UpdateResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetItemForUser(ctx, userID, itemID)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			result = ResultDeleted
			return s.repo.DeleteItem(ctx, item.ID)
		}
		result = ResultUpdated
		return s.repo.UpdateQuantity(ctx, item.ID, quantity)
	})
	if err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return "", ErrCartItemNotFound
		}
		log.Error().Err(err).Stringer("item_id", itemID).Msg("service: failed to update cart item")
		return "", fmt.Errorf("service: failed to update cart item: %w", err)
	}
	return result, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		item, err := s.repo.GetItemForUser(ctx, userID, itemID)
		if err != nil {
			return err
		}
		return s.repo.DeleteItem(ctx, item.ID)
	})
	if err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return ErrCartItemNotFound
		}
		log.Error().Err(err).Stringer("item_id", itemID).Msg("service: failed to remove cart item")
		return fmt.Errorf("service: failed to remove cart item: %w", err)
	}
	return nil
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByUserID(ctx, userID, true)
		if err != nil {
			return err
		}
		return s.repo.ClearItems(ctx, c.ID)
	})
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return ErrCartNotFound
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to clear cart")
		return fmt.Errorf("service: failed to clear cart: %w", err)
	}
	return nil
}

func (s *service) ListCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := s.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.Items, err = s.repo.ListItems(ctx, c.ID)
	if err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to list cart items")
		return nil, fmt.Errorf("service: failed to list cart items: %w", err)
	}
	return c, nil
}

func (s *service) Items(ctx context.Context, userID uuid.UUID) ([]CartItem, error) {
	c, err := s.repo.GetByUserID(ctx, userID, true)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("service: failed to get cart: %w", err)
	}

	items, err := s.repo.ListItems(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list cart items: %w", err)
	}
	return items, nil
}
