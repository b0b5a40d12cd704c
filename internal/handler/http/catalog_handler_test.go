package http_test

import (
	"net/http"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/shop-service/internal/catalog"
)

func TestCatalogHandler_Search(t *testing.T) {
	t.Run("filters parsed", func(t *testing.T) {
		router, m := newTestRouter(t, nil)
		m.catalog.On("SearchProducts", mock.Anything, mock.MatchedBy(func(f catalog.SearchFilter) bool {
			return f.Keyword == "shirt" && f.MinPrice != nil && f.MinPrice.Equal(decimal.NewFromInt(10)) && f.MaxPrice == nil
		})).Return([]catalog.Product{}, nil).Once()

		rr := doRequest(t, router, http.MethodGet, "/products/search?keyword=shirt&min_price=10", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("bad price", func(t *testing.T) {
		router, _ := newTestRouter(t, nil)

		rr := doRequest(t, router, http.MethodGet, "/products/search?max_price=cheap", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCatalogHandler_GetProduct(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	t.Run("found", func(t *testing.T) {
		router, m := newTestRouter(t, nil)
		m.catalog.On("GetProduct", mock.Anything, id).Return(&catalog.Product{ID: id, Name: "Shirt"}, nil).Once()

		rr := doRequest(t, router, http.MethodGet, "/products/"+id.String(), nil)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Shirt", decodeBody(t, rr)["name"])
	})

	t.Run("missing", func(t *testing.T) {
		router, m := newTestRouter(t, nil)
		m.catalog.On("GetProduct", mock.Anything, id).Return(nil, catalog.ErrProductNotFound).Once()

		rr := doRequest(t, router, http.MethodGet, "/products/"+id.String(), nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCatalogHandler_DeleteProductInUse(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	router, m := newTestRouter(t, nil)
	m.catalog.On("DeleteProduct", mock.Anything, id).Return(catalog.ErrProductInUse).Once()

	rr := doRequest(t, router, http.MethodDelete, "/products/"+id.String(), nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
}
