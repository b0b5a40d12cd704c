package user

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
	ErrNotFound        = errors.New("user not found")
	ErrUserExists      = errors.New("username or email already exists")
	ErrAddressNotFound = errors.New("address not found")
)

type Repository interface {
	Create(ctx context.Context, u *User) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetByLogin matches identifier against username first, then email, ignoring case.
	GetByLogin(ctx context.Context, identifier string) (*User, error)

	CreateAddress(ctx context.Context, a *Address) error
	ClearDefaultAddress(ctx context.Context, userID uuid.UUID) error
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]Address, error)
	GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*Address, error)
}

type repository struct {
	db db.Querier
}

func NewRepository(pool db.Querier) Repository {
	return &repository{db: pool}
}

func (r *repository) Create(ctx context.Context, u *User) (uuid.UUID, error) {
	if u.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return uuid.Nil, fmt.Errorf("repository: failed to generate user ID: %w", err)
		}
		u.ID = id
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return uuid.Nil, ErrUserExists
		}
		return uuid.Nil, fmt.Errorf("repository: failed to insert user: %w", err)
	}

	u.CreatedAt = now
	u.UpdatedAt = now
	return u.ID, nil
}

func (r *repository) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to scan user: %w", err)
	}
	return &u, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(db.Conn(ctx, r.db).QueryRow(ctx, query, id))
}

func (r *repository) GetByLogin(ctx context.Context, identifier string) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)
		ORDER BY (LOWER(username) = LOWER($1)) DESC
		LIMIT 1
	`
	return r.scanUser(db.Conn(ctx, r.db).QueryRow(ctx, query, identifier))
}

func (r *repository) CreateAddress(ctx context.Context, a *Address) error {
	if a.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate address ID: %w", err)
		}
		a.ID = id
	}

	query := `
		INSERT INTO addresses (id, user_id, address_line1, address_line2, city, state, pincode, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query,
		a.ID, a.UserID, a.AddressLine1, a.AddressLine2, a.City, a.State, a.Pincode, a.Country, a.IsDefault,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("repository: failed to insert address: %w", err)
	}
	return nil
}

func (r *repository) ClearDefaultAddress(ctx context.Context, userID uuid.UUID) error {
	_, err := db.Conn(ctx, r.db).Exec(ctx,
		`UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`, userID)
	if err != nil {
		return fmt.Errorf("repository: failed to reset default address for user %s: %w", userID, err)
	}
	return nil
}

const addressColumns = `id, user_id, address_line1, address_line2, city, state, pincode, country, is_default`

func scanAddress(row pgx.Row) (*Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.AddressLine1, &a.AddressLine2, &a.City, &a.State, &a.Pincode, &a.Country, &a.IsDefault)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repository) ListAddresses(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, city`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query addresses for user %s: %w", userID, err)
	}
	defer rows.Close()

	addresses := make([]Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan address for user %s: %w", userID, err)
		}
		addresses = append(addresses, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating addresses for user %s: %w", userID, err)
	}
	return addresses, nil
}

func (r *repository) GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*Address, error) {
	a, err := scanAddress(db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, addressID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("repository: failed to select address %s: %w", addressID, err)
	}
	return a, nil
}
