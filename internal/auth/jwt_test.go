package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndValidate(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	userID := uuid.Must(uuid.NewV4())

	token, err := m.Issue(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokenManager_Validate(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())
	issuer := NewTokenManager("secret", time.Hour)
	valid, err := issuer.Issue(userID)
	require.NoError(t, err)

	expiredIssuer := NewTokenManager("secret", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredIssuer.Issue(userID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		manager *TokenManager
		token   string
	}{
		{name: "wrong secret", manager: NewTokenManager("other", time.Hour), token: valid},
		{name: "expired", manager: issuer, token: expired},
		{name: "garbage", manager: issuer, token: "not.a.token"},
		{name: "empty", manager: issuer, token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.manager.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	userID := uuid.Must(uuid.NewV4())
	token, err := m.Issue(userID)
	require.NoError(t, err)

	var seen uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := m.Middleware(next)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, userID, seen)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"missing bearer token"}`, rr.Body.String())
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
