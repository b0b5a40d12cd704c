package payment_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/shop-service/internal/order"
	"github.com/vasiliy-maslov/shop-service/internal/payment"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) GetForUser(ctx context.Context, userID, orderID uuid.UUID, forUpdate bool) (*order.Order, error) {
	args := m.Called(ctx, userID, orderID, forUpdate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, orderID uuid.UUID, status order.Status) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordedMetrics struct {
	got []payment.Reconciliation
}

func (m *recordedMetrics) PaymentRecorded(rec payment.Reconciliation) {
	m.got = append(m.got, rec)
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func pendingOrder(userID uuid.UUID, total string) *order.Order {
	return &order.Order{
		ID:         uuid.Must(uuid.NewV4()),
		UserID:     userID,
		TotalPrice: decimal.RequireFromString(total),
		Status:     order.StatusPending,
	}
}

func TestRecordPayment_ExactAmountMarksPaid(t *testing.T) {
	repo := new(MockPaymentRepository)
	orders := new(MockOrderStore)
	m := &recordedMetrics{}
	svc := payment.NewService(repo, orders, passthroughTx{}, m)

	userID := uuid.Must(uuid.NewV4())
	o := pendingOrder(userID, "70.00")

	orders.On("GetForUser", mock.Anything, userID, o.ID, true).Return(o, nil).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p *payment.Payment) bool {
		return p.OrderID == o.ID && p.Amount.Equal(decimal.NewFromInt(70))
	})).Return(nil).Once()
	orders.On("UpdateStatus", mock.Anything, o.ID, order.StatusPaid).Return(nil).Once()

	res, err := svc.RecordPayment(context.Background(), payment.RecordPaymentInput{
		OrderID: o.ID,
		UserID:  userID,
		Method:  "card",
		Amount:  amount("70"),
	})
	require.NoError(t, err)

	assert.Equal(t, payment.Reconciliation{Reconciled: true}, res.Reconciliation)
	assert.Equal(t, "paid", res.OrderStatus)
	assert.Equal(t, "card", res.Payment.Method)
	assert.Equal(t, payment.DefaultStatus, res.Payment.Status)
	require.Len(t, m.got, 1)
	repo.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestRecordPayment_DefaultsToOrderTotal(t *testing.T) {
	repo := new(MockPaymentRepository)
	orders := new(MockOrderStore)
	svc := payment.NewService(repo, orders, passthroughTx{}, nil)

	userID := uuid.Must(uuid.NewV4())
	o := pendingOrder(userID, "12.34")

	orders.On("GetForUser", mock.Anything, userID, o.ID, true).Return(o, nil).Once()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil).Once()
	orders.On("UpdateStatus", mock.Anything, o.ID, order.StatusPaid).Return(nil).Once()

	res, err := svc.RecordPayment(context.Background(), payment.RecordPaymentInput{OrderID: o.ID, UserID: userID})
	require.NoError(t, err)

	assert.Equal(t, "12.34", res.Payment.Amount.StringFixed(2))
	assert.Equal(t, payment.DefaultMethod, res.Payment.Method)
	assert.True(t, res.Reconciliation.Reconciled)
	orders.AssertExpectations(t)
}

func TestRecordPayment_NotReconciled(t *testing.T) {
	tests := []struct {
		name       string
		status     order.Status
		amount     *decimal.Decimal
		wantReason payment.Reason
	}{
		{name: "short payment", status: order.StatusPending, amount: amount("69.99"), wantReason: payment.ReasonAmountMismatch},
		{name: "over payment", status: order.StatusPending, amount: amount("70.01"), wantReason: payment.ReasonAmountMismatch},
		{name: "cancelled order", status: order.StatusCancelled, amount: amount("70.00"), wantReason: payment.ReasonStatusNotPayable},
		{name: "already paid", status: order.StatusPaid, amount: amount("70.00"), wantReason: payment.ReasonStatusNotPayable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPaymentRepository)
			orders := new(MockOrderStore)
			svc := payment.NewService(repo, orders, passthroughTx{}, nil)

			userID := uuid.Must(uuid.NewV4())
			o := pendingOrder(userID, "70.00")
			o.Status = tt.status

			orders.On("GetForUser", mock.Anything, userID, o.ID, true).Return(o, nil).Once()
			repo.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil).Once()

			res, err := svc.RecordPayment(context.Background(), payment.RecordPaymentInput{
				OrderID: o.ID,
				UserID:  userID,
				Amount:  tt.amount,
			})
			require.NoError(t, err)

			assert.False(t, res.Reconciliation.Reconciled)
			assert.Equal(t, tt.wantReason, res.Reconciliation.Reason)
			assert.Equal(t, tt.status.String(), res.OrderStatus)
			orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRecordPayment_Errors(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())

	t.Run("order not found", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		orders := new(MockOrderStore)
		svc := payment.NewService(repo, orders, passthroughTx{}, nil)
		orderID := uuid.Must(uuid.NewV4())

		orders.On("GetForUser", mock.Anything, userID, orderID, true).Return(nil, order.ErrOrderNotFound).Once()

		_, err := svc.RecordPayment(context.Background(), payment.RecordPaymentInput{OrderID: orderID, UserID: userID})
		require.ErrorIs(t, err, order.ErrOrderNotFound)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate payment", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		orders := new(MockOrderStore)
		svc := payment.NewService(repo, orders, passthroughTx{}, nil)
		o := pendingOrder(userID, "5.00")

		orders.On("GetForUser", mock.Anything, userID, o.ID, true).Return(o, nil).Once()
		repo.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(payment.ErrPaymentExists).Once()

		_, err := svc.RecordPayment(context.Background(), payment.RecordPaymentInput{OrderID: o.ID, UserID: userID})
		require.ErrorIs(t, err, payment.ErrPaymentExists)
		orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("negative amount", func(t *testing.T) {
		svc := payment.NewService(new(MockPaymentRepository), new(MockOrderStore), passthroughTx{}, nil)

		_, err := svc.RecordPayment(context.Background(), payment.RecordPaymentInput{
			OrderID: uuid.Must(uuid.NewV4()),
			UserID:  userID,
			Amount:  amount("-1"),
		})
		require.ErrorIs(t, err, payment.ErrInvalidAmount)
	})

	t.Run("sub-cent amount", func(t *testing.T) {
		repo := new(MockPaymentRepository)
		orders := new(MockOrderStore)
		svc := payment.NewService(repo, orders, passthroughTx{}, nil)

		_, err := svc.RecordPayment(context.Background(), payment.RecordPaymentInput{
			OrderID: uuid.Must(uuid.NewV4()),
			UserID:  userID,
			Amount:  amount("70.001"),
		})
		require.ErrorIs(t, err, payment.ErrInvalidAmount)
		orders.AssertNotCalled(t, "GetForUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestRecordPayment_TrailingZerosAreNotExtraPrecision(t *testing.T) {
	repo := new(MockPaymentRepository)
	orders := new(MockOrderStore)
	svc := payment.NewService(repo, orders, passthroughTx{}, nil)
	userID := uuid.Must(uuid.NewV4())
	o := pendingOrder(userID, "70.00")

	orders.On("GetForUser", mock.Anything, userID, o.ID, true).Return(o, nil).Once()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*payment.Payment")).Return(nil).Once()
	orders.On("UpdateStatus", mock.Anything, o.ID, order.StatusPaid).Return(nil).Once()

	res, err := svc.RecordPayment(context.Background(), payment.RecordPaymentInput{OrderID: o.ID, UserID: userID, Amount: amount("70.000")})
	require.NoError(t, err)
	assert.True(t, res.Reconciliation.Reconciled)
	repo.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestReconcile_NormalizesScale(t *testing.T) {
	o := &order.Order{Status: order.StatusPending, TotalPrice: decimal.RequireFromString("70.00")}

	rec := payment.Reconcile(o, &payment.Payment{Amount: decimal.RequireFromString("70")})
	assert.True(t, rec.Reconciled)
	assert.Empty(t, rec.Reason)
}
