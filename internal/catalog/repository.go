package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/shop-service/internal/db"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrDiscountNotFound   = errors.New("discount not found")
	ErrDiscountCodeExists = errors.New("discount code already exists")
	ErrProductInUse       = errors.New("product is referenced by existing orders")
)

type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// GetProductForUpdate locks the product row until the surrounding transaction ends.
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (*Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) error
	ListProducts(ctx context.Context) ([]Product, error)
	SearchProducts(ctx context.Context, filter SearchFilter) ([]Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	CreateCategory(ctx context.Context, c *Category) error
	GetCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)

	CreateDiscount(ctx context.Context, d *Discount) error
	ListDiscounts(ctx context.Context) ([]Discount, error)
	GetActiveDiscountByCode(ctx context.Context, code string, at time.Time) (*Discount, error)
	AttachDiscount(ctx context.Context, productID, discountID uuid.UUID) error
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(pool db.Querier) Repository {
	return &postgresRepository{db: pool}
}

const productColumns = `
	p.id, p.name, p.description, p.price, p.stock, p.category_id, p.created_at,
	c.id, c.name, c.parent_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var (
		p              Product
		catID, catPrnt uuid.NullUUID
		catName        *string
	)
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.CategoryID,
		&p.CreatedAt,
		&catID,
		&catName,
		&catPrnt,
	)
	if err != nil {
		return nil, err
	}
	if catID.Valid && catName != nil {
		p.Category = &Category{ID: catID.UUID, Name: *catName, ParentID: catPrnt}
	}
	return &p, nil
}

func (r *postgresRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}

	query := `
		INSERT INTO products (id, name, description, price, stock, category_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := db.Conn(ctx, r.db).QueryRow(ctx, query,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.CategoryID,
	).Scan(&p.CreatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return nil
}

func (r *postgresRepository) getProduct(ctx context.Context, id uuid.UUID, lock bool) (*Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`
	if lock {
		query += ` FOR UPDATE OF p`
	}

	p, err := scanProduct(db.Conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}
	return p, nil
}

func (r *postgresRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return r.getProduct(ctx, id, false)
}

func (r *postgresRepository) GetProductForUpdate(ctx context.Context, id uuid.UUID) (*Product, error) {
	return r.getProduct(ctx, id, true)
}

func (r *postgresRepository) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, `UPDATE products SET stock = $1 WHERE id = $2`, stock, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update stock for product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepository) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}
	return products, nil
}

func (r *postgresRepository) ListProducts(ctx context.Context) ([]Product, error) {
	return r.queryProducts(ctx, `SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.created_at DESC`)
}

func (r *postgresRepository) SearchProducts(ctx context.Context, filter SearchFilter) ([]Product, error) {
	var (
		conds []string
		args  []any
	)

	if filter.Keyword != "" {
		args = append(args, "%"+filter.Keyword+"%")
		conds = append(conds, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	if filter.Category != "" {
		args = append(args, "%"+filter.Category+"%")
		conds = append(conds, fmt.Sprintf("c.name ILIKE $%d", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		conds = append(conds, fmt.Sprintf("p.price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		conds = append(conds, fmt.Sprintf("p.price <= $%d", len(args)))
	}

	query := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY p.created_at DESC"

	return r.queryProducts(ctx, query, args...)
}

func (r *postgresRepository) UpdateProduct(ctx context.Context, p *Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock = $4, category_id = $5
		WHERE id = $6
	`
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, query,
		p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.ID,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrProductInUse
		}
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepository) CreateCategory(ctx context.Context, c *Category) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate category ID: %w", err)
		}
		c.ID = id
	}

	_, err := db.Conn(ctx, r.db).Exec(ctx,
		`INSERT INTO categories (id, name, parent_id) VALUES ($1, $2, $3)`,
		c.ID, c.Name, c.ParentID,
	)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("repository: failed to insert category: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	var c Category
	err := db.Conn(ctx, r.db).QueryRow(ctx,
		`SELECT id, name, parent_id FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.ParentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("repository: failed to select category %s: %w", id, err)
	}
	return &c, nil
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx, `SELECT id, name, parent_id FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating categories: %w", err)
	}
	return categories, nil
}

func (r *postgresRepository) CreateDiscount(ctx context.Context, d *Discount) error {
	if d.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate discount ID: %w", err)
		}
		d.ID = id
	}

	query := `
		INSERT INTO discounts (id, code, type, value, valid_from, valid_to, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.Conn(ctx, r.db).Exec(ctx, query,
		d.ID, d.Code, string(d.Type), d.Value, d.ValidFrom, d.ValidTo, d.IsActive,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDiscountCodeExists
		}
		return fmt.Errorf("repository: failed to insert discount: %w", err)
	}
	return nil
}

func scanDiscount(row rowScanner) (*Discount, error) {
	var d Discount
	err := row.Scan(&d.ID, &d.Code, &d.Type, &d.Value, &d.ValidFrom, &d.ValidTo, &d.IsActive)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *postgresRepository) ListDiscounts(ctx context.Context) ([]Discount, error) {
	rows, err := db.Conn(ctx, r.db).Query(ctx,
		`SELECT id, code, type, value, valid_from, valid_to, is_active FROM discounts ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query discounts: %w", err)
	}
	defer rows.Close()

	discounts := make([]Discount, 0)
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan discount: %w", err)
		}
		discounts = append(discounts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating discounts: %w", err)
	}
	return discounts, nil
}

func (r *postgresRepository) GetActiveDiscountByCode(ctx context.Context, code string, at time.Time) (*Discount, error) {
	query := `
		SELECT id, code, type, value, valid_from, valid_to, is_active
		FROM discounts
		WHERE code = $1
		  AND is_active
		  AND (valid_from IS NULL OR valid_from <= $2)
		  AND (valid_to IS NULL OR valid_to >= $2)
	`
	d, err := scanDiscount(db.Conn(ctx, r.db).QueryRow(ctx, query, code, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDiscountNotFound
		}
		return nil, fmt.Errorf("repository: failed to select discount %q: %w", code, err)
	}
	return d, nil
}

func (r *postgresRepository) AttachDiscount(ctx context.Context, productID, discountID uuid.UUID) error {
	query := `
		INSERT INTO product_discounts (product_id, discount_id)
		VALUES ($1, $2)
		ON CONFLICT (product_id, discount_id) DO NOTHING
	`
	if _, err := db.Conn(ctx, r.db).Exec(ctx, query, productID, discountID); err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("repository: failed to attach discount %s to product %s: %w", discountID, productID, err)
	}
	return nil
}
