package payment

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultMethod = "unknown"
	DefaultStatus = "initiated"
)

type Payment struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	Method    string          `json:"method" db:"method"`
	Status    string          `json:"status" db:"status"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Reason explains why a payment did not settle its order.
type Reason string

const (
	ReasonAmountMismatch   Reason = "amount_mismatch"
	ReasonStatusNotPayable Reason = "status_not_payable"
)

// Reconciliation is the outcome of matching a payment against its order.
// Reason is empty when Reconciled is true.
type Reconciliation struct {
	Reconciled bool   `json:"reconciled"`
	Reason     Reason `json:"reason,omitempty"`
}

// RecordPaymentInput describes a payment attempt. A nil Amount means the order total.
type RecordPaymentInput struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	Method  string
	Amount  *decimal.Decimal
	Status  string
}

type Result struct {
	Payment        Payment        `json:"payment"`
	Reconciliation Reconciliation `json:"reconciliation"`
	OrderStatus    string         `json:"order_status"`
}
