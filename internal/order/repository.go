package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/shop-service/internal/db"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	// Create inserts the order header. ID, timestamps and a pending status are filled in when empty.
	Create(ctx context.Context, o *Order) error
	AddItem(ctx context.Context, item *OrderItem) error
	SetTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error
	// GetForUser returns the order with its items only when it belongs to userID.
	// With forUpdate the order row stays locked until the surrounding transaction ends.
	GetForUser(ctx context.Context, userID, orderID uuid.UUID, forUpdate bool) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status) error
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(pool db.Querier) Repository {
	return &postgresRepository{db: pool}
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			log.Error().Err(err).Msg("repository: failed to generate order ID")
			return fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		o.ID = id
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	query := `
		INSERT INTO orders (id, user_id, total_price, status, shipping_address_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query,
		o.ID,
		o.UserID,
		o.TotalPrice,
		string(o.Status),
		o.ShippingAddressID,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}
	return nil
}

func (r *postgresRepository) AddItem(ctx context.Context, item *OrderItem) error {
	if item.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", err)
		}
		item.ID = id
	}

	query := `
		INSERT INTO order_items (id, order_id, product_id, unit_price, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query,
		item.ID,
		item.OrderID,
		item.ProductID,
		item.UnitPrice,
		item.Quantity,
		item.Price,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order item for order %s: %w", item.OrderID, err)
	}
	return nil
}

func (r *postgresRepository) SetTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error {
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx,
		`UPDATE orders SET total_price = $1, updated_at = $2 WHERE id = $3`,
		total, time.Now().UTC(), orderID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to set total for order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

const orderColumns = `id, user_id, total_price, status, shipping_address_id, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.TotalPrice,
		&o.Status,
		&o.ShippingAddressID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Items = make([]OrderItem, 0)
	return &o, nil
}

func (r *postgresRepository) GetForUser(ctx context.Context, userID, orderID uuid.UUID, forUpdate bool) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	o, err := scanOrder(db.Conn(ctx, r.db).QueryRow(ctx, query, orderID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	byOrder, err := r.itemsFor(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	if items, ok := byOrder[o.ID]; ok {
		o.Items = items
	}
	return o, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`

	rows, err := db.Conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	defer rows.Close()

	var (
		orders   []*Order
		orderIDs []uuid.UUID
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for user id %s: %w", userID, err)
		}
		orders = append(orders, o)
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for user id %s: %w", userID, err)
	}
	rows.Close()

	result := make([]Order, 0, len(orders))
	if len(orderIDs) == 0 {
		return result, nil
	}

	byOrder, err := r.itemsFor(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if items, ok := byOrder[o.ID]; ok {
			o.Items = items
		}
		result = append(result, *o)
	}
	return result, nil
}

// itemsFor loads the items of all given orders in one query, with the current product name.
func (r *postgresRepository) itemsFor(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.unit_price, oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id
	`
	rows, err := db.Conn(ctx, r.db).Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[uuid.UUID][]OrderItem, len(orderIDs))
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.UnitPrice,
			&item.Quantity,
			&item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating order items: %w", err)
	}
	return byOrder, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, query, string(status), time.Now().UTC(), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", status).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", orderID).Stringer("new_status", status).Msg("repository: order not found for status update")
		return ErrOrderNotFound
	}
	return nil
}
