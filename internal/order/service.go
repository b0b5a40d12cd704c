package order

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/shop-service/internal/cart"
	"github.com/vasiliy-maslov/shop-service/internal/catalog"
	"github.com/vasiliy-maslov/shop-service/internal/db"
	"github.com/vasiliy-maslov/shop-service/internal/user"
)

var (
	ErrEmptyOrder              = errors.New("order has no items")
	ErrInvalidLineItem         = errors.New("line item needs a product_id and a positive quantity")
	ErrInvalidStatus           = errors.New("unknown order status")
	ErrInvalidStatusTransition = errors.New("order status transition not allowed")
	ErrStatusNotSettable       = errors.New("order status cannot be set by the customer")
)

// customerStatuses are the statuses an owner may request directly. Paid is
// reached only by recording a payment.
var customerStatuses = map[Status]bool{
	StatusCancelled: true,
}

// ProductStore reads and writes product stock inside the order transaction.
type ProductStore interface {
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) error
}

type AddressFinder interface {
	GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*user.Address, error)
}

// CartSource supplies and empties the caller's cart for checkout.
type CartSource interface {
	Items(ctx context.Context, userID uuid.UUID) ([]cart.CartItem, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

// Metrics receives order workflow events.
type Metrics interface {
	OrderPlaced(total decimal.Decimal)
	StockClamped()
}

type nopMetrics struct{}

func (nopMetrics) OrderPlaced(decimal.Decimal) {}
func (nopMetrics) StockClamped()               {}

type Service interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error)
	Checkout(ctx context.Context, userID uuid.UUID, shippingAddressID *uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)
	// UpdateOrderStatus applies an owner-requested status change. Only
	// cancellation of a pending order is accepted.
	UpdateOrderStatus(ctx context.Context, userID, orderID uuid.UUID, status Status) (*Order, error)
}

type Option func(*service)

// WithStockRule replaces ClampToZero.
func WithStockRule(rule StockRule) Option {
	return func(s *service) { s.stockRule = rule }
}

func WithMetrics(m Metrics) Option {
	return func(s *service) { s.metrics = m }
}

type service struct {
	repo      Repository
	products  ProductStore
	addresses AddressFinder
	carts     CartSource
	tx        db.TxManager
	stockRule StockRule
	metrics   Metrics
}

func NewService(repo Repository, products ProductStore, addresses AddressFinder, carts CartSource, tx db.TxManager, opts ...Option) Service {
	s := &service{
		repo:      repo,
		products:  products,
		addresses: addresses,
		carts:     carts,
		tx:        tx,
		stockRule: ClampToZero,
		metrics:   nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}
	for i, it := range items {
		if it.ProductID == uuid.Nil || it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d", ErrInvalidLineItem, i)
		}
	}
	return nil
}

func (s *service) resolveAddress(ctx context.Context, userID uuid.UUID, addressID *uuid.UUID) (uuid.NullUUID, error) {
	if addressID == nil {
		return uuid.NullUUID{}, nil
	}
	a, err := s.addresses.GetAddress(ctx, userID, *addressID)
	if err != nil {
		if errors.Is(err, user.ErrAddressNotFound) {
			return uuid.NullUUID{}, user.ErrAddressNotFound
		}
		return uuid.NullUUID{}, fmt.Errorf("service: failed to resolve shipping address: %w", err)
	}
	return uuid.NullUUID{UUID: a.ID, Valid: true}, nil
}

func (s *service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	if err := validateLineItems(in.Items); err != nil {
		return nil, err
	}

	shipping, err := s.resolveAddress(ctx, in.UserID, in.ShippingAddressID)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", in.UserID).Msg("service: shipping address rejected")
		return nil, err
	}

	var o *Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.place(ctx, in.UserID, in.Items, shipping)
		return err
	})
	if err != nil {
		return nil, s.orderError(err, in.UserID)
	}

	s.metrics.OrderPlaced(o.TotalPrice)
	log.Info().Stringer("order_id", o.ID).Stringer("user_id", o.UserID).Str("total", o.TotalPrice.StringFixed(2)).Msg("service: order placed")
	return o, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, shippingAddressID *uuid.UUID) (*Order, error) {
	shipping, err := s.resolveAddress(ctx, userID, shippingAddressID)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("service: shipping address rejected")
		return nil, err
	}

	var o *Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cartItems, err := s.carts.Items(ctx, userID)
		if err != nil {
			if errors.Is(err, cart.ErrCartNotFound) {
				return ErrEmptyOrder
			}
			return err
		}
		if len(cartItems) == 0 {
			return ErrEmptyOrder
		}

		items := make([]LineItem, 0, len(cartItems))
		for _, ci := range cartItems {
			items = append(items, LineItem{ProductID: ci.ProductID, Quantity: ci.Quantity})
		}

		o, err = s.place(ctx, userID, items, shipping)
		if err != nil {
			return err
		}
		return s.carts.ClearCart(ctx, userID)
	})
	if err != nil {
		return nil, s.orderError(err, userID)
	}

	s.metrics.OrderPlaced(o.TotalPrice)
	log.Info().Stringer("order_id", o.ID).Stringer("user_id", userID).Msg("service: cart checked out")
	return o, nil
}

// place runs the order steps against ctx's transaction. Any error aborts the whole order.
func (s *service) place(ctx context.Context, userID uuid.UUID, items []LineItem, shipping uuid.NullUUID) (*Order, error) {
	products, err := s.lockProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	o := &Order{
		UserID:            userID,
		TotalPrice:        decimal.Zero,
		Status:            StatusPending,
		ShippingAddressID: shipping,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, it := range items {
		p := products[it.ProductID]

		line := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		item := OrderItem{
			OrderID:     o.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    it.Quantity,
			Price:       line,
		}
		if err := s.repo.AddItem(ctx, &item); err != nil {
			return nil, err
		}

		next, clamped := s.stockRule(p.Stock, it.Quantity)
		if clamped {
			s.metrics.StockClamped()
			log.Warn().Stringer("product_id", p.ID).Int("stock", p.Stock).Int("requested", it.Quantity).Msg("service: order exceeds stock, clamping")
		}
		if err := s.products.UpdateStock(ctx, p.ID, next); err != nil {
			return nil, err
		}
		p.Stock = next

		total = total.Add(line)
		o.Items = append(o.Items, item)
	}

	if err := s.repo.SetTotal(ctx, o.ID, total); err != nil {
		return nil, err
	}
	o.TotalPrice = total
	return o, nil
}

// lockProducts locks each distinct product once, in ascending id order, so
// every order acquires its row locks in the same sequence.
func (s *service) lockProducts(ctx context.Context, items []LineItem) (map[uuid.UUID]*catalog.Product, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})

	products := make(map[uuid.UUID]*catalog.Product, len(ids))
	for _, id := range ids {
		p, err := s.products.GetProductForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		products[id] = p
	}
	return products, nil
}

func (s *service) orderError(err error, userID uuid.UUID) error {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		log.Warn().Stringer("user_id", userID).Msg("service: order references unknown product, rolled back")
		return catalog.ErrProductNotFound
	case errors.Is(err, ErrEmptyOrder):
		return ErrEmptyOrder
	}
	log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to place order")
	return fmt.Errorf("service: failed to place order: %w", err)
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetForUser(ctx, userID, orderID, false)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to get order")
		return nil, fmt.Errorf("service: failed to get order: %w", err)
	}
	return o, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, userID, orderID uuid.UUID, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if !customerStatuses[status] {
		log.Warn().Stringer("order_id", orderID).Stringer("status", status).Msg("service: rejected customer status change")
		return nil, fmt.Errorf("%w: %s", ErrStatusNotSettable, status)
	}

	var o *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.repo.GetForUser(ctx, userID, orderID, true)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, status)
		}
		if err := s.repo.UpdateStatus(ctx, orderID, status); err != nil {
			return err
		}
		o.Status = status
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			return nil, ErrOrderNotFound
		case errors.Is(err, ErrInvalidStatusTransition):
			log.Warn().Err(err).Stringer("order_id", orderID).Msg("service: rejected status change")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("status", status).Msg("service: order status updated")
	return o, nil
}
