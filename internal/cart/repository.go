package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/shop-service/internal/db"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
)

type Repository interface {
	// GetOrCreate returns the user's cart, inserting it if missing. Safe under concurrent calls.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error)
	// GetByUserID with forUpdate keeps the cart row locked until the surrounding
	// transaction ends. Every cart write takes the same lock.
	GetByUserID(ctx context.Context, userID uuid.UUID, forUpdate bool) (*Cart, error)
	// AddOrIncrement inserts the line or adds quantity to the existing one for the same product.
	AddOrIncrement(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*CartItem, error)
	GetItemForUser(ctx context.Context, userID, itemID uuid.UUID) (*CartItem, error)
	UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error)
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(pool db.Querier) Repository {
	return &postgresRepository{db: pool}
}

func (r *postgresRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart ID: %w", err)
	}

	query := `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, created_at, updated_at
	`
	var c Cart
	err = db.Conn(ctx, r.db).QueryRow(ctx, query, id, userID, time.Now().UTC()).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get or create cart for user %s: %w", userID, err)
	}
	return &c, nil
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID, forUpdate bool) (*Cart, error) {
	query := `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var c Cart
	err := db.Conn(ctx, r.db).QueryRow(ctx, query, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart for user %s: %w", userID, err)
	}
	return &c, nil
}

func (r *postgresRepository) AddOrIncrement(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*CartItem, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart item ID: %w", err)
	}

	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT unique_cart_product
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, cart_id, product_id, quantity, added_at
	`
	var item CartItem
	err = db.Conn(ctx, r.db).QueryRow(ctx, query, id, cartID, productID, quantity, time.Now().UTC()).
		Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.AddedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to upsert cart item for cart %s: %w", cartID, err)
	}
	return &item, nil
}

func (r *postgresRepository) GetItemForUser(ctx context.Context, userID, itemID uuid.UUID) (*CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.added_at
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE ci.id = $1 AND c.user_id = $2
		FOR UPDATE OF c, ci
	`
	var item CartItem
	err := db.Conn(ctx, r.db).QueryRow(ctx, query, itemID, userID).
		Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.AddedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart item %s: %w", itemID, err)
	}
	return &item, nil
}

func (r *postgresRepository) UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, `UPDATE cart_items SET quantity = $1 WHERE id = $2`, quantity, itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to update cart item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *postgresRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	if _, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("repository: failed to clear cart %s: %w", cartID, err)
	}
	return nil
}

func (r *postgresRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.added_at,
			p.name, p.description, p.price, p.stock, p.category_id, p.created_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at, ci.id
	`
	rows, err := db.Conn(ctx, r.db).Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query items for cart %s: %w", cartID, err)
	}
	defer rows.Close()

	items := make([]CartItem, 0)
	for rows.Next() {
		var (
			item CartItem
			p    catalog.Product
		)
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.Quantity,
			&item.AddedAt,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Stock,
			&p.CategoryID,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan item for cart %s: %w", cartID, err)
		}
		p.ID = item.ProductID
		item.Product = &p
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating items for cart %s: %w", cartID, err)
	}
	return items, nil
}
