package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/shop-service/internal/db"
	"github.com/vasiliy-maslov/shop-service/internal/order"
)

var ErrInvalidAmount = errors.New("payment amount must be non-negative with at most two decimal places")

// OrderStore is the part of the order repository payments need.
type OrderStore interface {
	GetForUser(ctx context.Context, userID, orderID uuid.UUID, forUpdate bool) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status order.Status) error
}

type Metrics interface {
	PaymentRecorded(rec Reconciliation)
}

type nopMetrics struct{}

func (nopMetrics) PaymentRecorded(Reconciliation) {}

type Service interface {
	RecordPayment(ctx context.Context, in RecordPaymentInput) (*Result, error)
}

type service struct {
	repo    Repository
	orders  OrderStore
	tx      db.TxManager
	metrics Metrics
}

func NewService(repo Repository, orders OrderStore, tx db.TxManager, m Metrics) Service {
	if m == nil {
		m = nopMetrics{}
	}
	return &service{repo: repo, orders: orders, tx: tx, metrics: m}
}

// Reconcile decides whether p settles o. Only a pending order paid in full is reconciled.
func Reconcile(o *order.Order, p *Payment) Reconciliation {
	if o.Status != order.StatusPending {
		return Reconciliation{Reason: ReasonStatusNotPayable}
	}
	if !p.Amount.Equal(o.TotalPrice) {
		return Reconciliation{Reason: ReasonAmountMismatch}
	}
	return Reconciliation{Reconciled: true}
}

func (s *service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*Result, error) {
	if in.Amount != nil {
		if in.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount)
		}
		// Stored as numeric(12,2); finer amounts would be rounded on write.
		if !in.Amount.Equal(in.Amount.Round(2)) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount)
		}
	}

	var res *Result
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUser(ctx, in.UserID, in.OrderID, true)
		if err != nil {
			return err
		}

		p := &Payment{
			OrderID: o.ID,
			Method:  strings.TrimSpace(in.Method),
			Status:  strings.TrimSpace(in.Status),
			Amount:  o.TotalPrice,
		}
		if p.Method == "" {
			p.Method = DefaultMethod
		}
		if p.Status == "" {
			p.Status = DefaultStatus
		}
		if in.Amount != nil {
			p.Amount = *in.Amount
		}

		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}

		rec := Reconcile(o, p)
		if rec.Reconciled {
			if err := s.orders.UpdateStatus(ctx, o.ID, order.StatusPaid); err != nil {
				return err
			}
			o.Status = order.StatusPaid
		}

		res = &Result{Payment: *p, Reconciliation: rec, OrderStatus: o.Status.String()}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			return nil, order.ErrOrderNotFound
		case errors.Is(err, ErrPaymentExists):
			log.Warn().Stringer("order_id", in.OrderID).Msg("service: duplicate payment rejected")
			return nil, ErrPaymentExists
		}
		log.Error().Err(err).Stringer("order_id", in.OrderID).Msg("service: failed to record payment")
		return nil, fmt.Errorf("service: failed to record payment: %w", err)
	}

	s.metrics.PaymentRecorded(res.Reconciliation)
	if !res.Reconciliation.Reconciled {
		log.Info().
			Stringer("order_id", in.OrderID).
			Str("amount", res.Payment.Amount.String()).
			Str("reason", string(res.Reconciliation.Reason)).
			Msg("service: payment recorded without settling order")
	} else {
		log.Info().Stringer("order_id", in.OrderID).Stringer("payment_id", res.Payment.ID).Msg("service: order paid")
	}
	return res, nil
}
