package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/shop-service/internal/cart"
	"github.com/vasiliy-maslov/shop-service/internal/order"
	"github.com/vasiliy-maslov/shop-service/internal/payment"
	"github.com/vasiliy-maslov/shop-service/internal/user"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: cart.ErrInvalidQuantity, want: http.StatusBadRequest},
		{err: fmt.Errorf("service: %w", order.ErrEmptyOrder), want: http.StatusBadRequest},
		{err: user.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{err: cart.ErrCartNotFound, want: http.StatusNotFound},
		{err: fmt.Errorf("repository: %w", order.ErrOrderNotFound), want: http.StatusNotFound},
		{err: payment.ErrPaymentExists, want: http.StatusConflict},
		{err: order.ErrInvalidStatusTransition, want: http.StatusConflict},
		{err: errors.New("connection reset"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToStatusCode(tt.err))
		})
	}
}
