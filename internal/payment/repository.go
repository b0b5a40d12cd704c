package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/shop-service/internal/db"
)

var (
	ErrPaymentExists   = errors.New("payment already recorded for order")
	ErrPaymentNotFound = errors.New("payment not found")
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(pool db.Querier) Repository {
	return &postgresRepository{db: pool}
}

func (r *postgresRepository) Create(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate payment ID: %w", err)
		}
		p.ID = id
	}
	p.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO payments (id, order_id, method, status, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query, p.ID, p.OrderID, p.Method, p.Status, p.Amount, p.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "payments_order_id_key") {
			return ErrPaymentExists
		}
		return fmt.Errorf("repository: failed to insert payment for order %s: %w", p.OrderID, err)
	}
	return nil
}

func (r *postgresRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	query := `
		SELECT id, order_id, method, status, amount, created_at
		FROM payments
		WHERE order_id = $1
	`
	var p Payment
	err := db.Conn(ctx, r.db).QueryRow(ctx, query, orderID).
		Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Amount, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment for order %s: %w", orderID, err)
	}
	return &p, nil
}
