package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID       uuid.UUID     `json:"id" db:"id"`
	Name     string        `json:"name" db:"name"`
	ParentID uuid.NullUUID `json:"parent_id" db:"parent_id"`
}

type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	CategoryID  uuid.NullUUID   `json:"category_id" db:"category_id"`
	Category    *Category       `json:"category,omitempty" db:"-"` // filled by a LEFT JOIN on reads
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

type Discount struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Code      string          `json:"code" db:"code"`
	Type      DiscountType    `json:"type" db:"type"`
	Value     decimal.Decimal `json:"value" db:"value"`
	ValidFrom *time.Time      `json:"valid_from,omitempty" db:"valid_from"`
	ValidTo   *time.Time      `json:"valid_to,omitempty" db:"valid_to"`
	IsActive  bool            `json:"is_active" db:"is_active"`
}

// SearchFilter narrows a product search. Zero values are ignored.
type SearchFilter struct {
	Keyword  string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}
