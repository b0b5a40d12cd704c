package cart

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/shop-service/internal/catalog"
)

type Cart struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Items     []CartItem `json:"items" db:"-"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type CartItem struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	CartID    uuid.UUID        `json:"cart_id" db:"cart_id"`
	ProductID uuid.UUID        `json:"product_id" db:"product_id"`
	Quantity  int              `json:"quantity" db:"quantity"`
	Product   *catalog.Product `json:"product,omitempty" db:"-"`
	AddedAt   time.Time        `json:"added_at" db:"added_at"`
}

// UpdateResult reports what UpdateItem did with the line.
type UpdateResult string

const (
	ResultUpdated UpdateResult = "updated"
	ResultDeleted UpdateResult = "deleted"
)
