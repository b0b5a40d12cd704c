package catalog_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/shop-service/internal/catalog"
)

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) CreateProduct(ctx context.Context, p *catalog.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockCatalogRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogRepository) GetProductForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogRepository) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	args := m.Called(ctx, id, stock)
	return args.Error(0)
}

func (m *MockCatalogRepository) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogRepository) SearchProducts(ctx context.Context, filter catalog.SearchFilter) ([]catalog.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogRepository) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockCatalogRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCatalogRepository) CreateCategory(ctx context.Context, c *catalog.Category) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCatalogRepository) GetCategoryByID(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCatalogRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCatalogRepository) CreateDiscount(ctx context.Context, d *catalog.Discount) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockCatalogRepository) ListDiscounts(ctx context.Context) ([]catalog.Discount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Discount), args.Error(1)
}

func (m *MockCatalogRepository) GetActiveDiscountByCode(ctx context.Context, code string, at time.Time) (*catalog.Discount, error) {
	args := m.Called(ctx, code, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Discount), args.Error(1)
}

func (m *MockCatalogRepository) AttachDiscount(ctx context.Context, productID, discountID uuid.UUID) error {
	args := m.Called(ctx, productID, discountID)
	return args.Error(0)
}

// memCache stores JSON like the Redis cache does.
type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dest any) bool {
	data, ok := c.entries[key]
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (c *memCache) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func TestCatalogService_CreateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("price rounded", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := catalog.NewService(repo, nil)
		repo.On("CreateProduct", ctx, mock.AnythingOfType("*catalog.Product")).Return(nil).Once()

		p, err := service.CreateProduct(ctx, &catalog.Product{Name: "  Shirt ", Price: decimal.RequireFromString("9.999"), Stock: 3})

		require.NoError(t, err)
		assert.Equal(t, "Shirt", p.Name)
		assert.True(t, p.Price.Equal(decimal.RequireFromString("10.00")))
		repo.AssertExpectations(t)
	})

	tests := []struct {
		name    string
		product catalog.Product
	}{
		{name: "no name", product: catalog.Product{Price: decimal.NewFromInt(1)}},
		{name: "negative price", product: catalog.Product{Name: "x", Price: decimal.NewFromInt(-1)}},
		{name: "negative stock", product: catalog.Product{Name: "x", Stock: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockCatalogRepository)
			service := catalog.NewService(repo, nil)

			_, err := service.CreateProduct(ctx, &tt.product)

			assert.ErrorIs(t, err, catalog.ErrInvalidProduct)
			repo.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
		})
	}
}

func TestCatalogService_GetProductUsesCache(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCatalogRepository)
	service := catalog.NewService(repo, newMemCache())
	id := uuid.Must(uuid.NewV4())
	repo.On("GetProductByID", ctx, id).Return(&catalog.Product{ID: id, Name: "Shirt", Price: decimal.NewFromInt(10)}, nil).Once()

	first, err := service.GetProduct(ctx, id)
	require.NoError(t, err)
	second, err := service.GetProduct(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.True(t, first.Price.Equal(second.Price))
	repo.AssertNumberOfCalls(t, "GetProductByID", 1)
}

func TestCatalogService_UpdateProductInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCatalogRepository)
	c := newMemCache()
	service := catalog.NewService(repo, c)
	id := uuid.Must(uuid.NewV4())

	repo.On("GetProductByID", ctx, id).Return(&catalog.Product{ID: id, Name: "Old"}, nil).Once()
	_, err := service.GetProduct(ctx, id)
	require.NoError(t, err)

	repo.On("UpdateProduct", ctx, mock.AnythingOfType("*catalog.Product")).Return(nil).Once()
	repo.On("GetProductByID", ctx, id).Return(&catalog.Product{ID: id, Name: "New"}, nil).Twice()

	_, err = service.UpdateProduct(ctx, &catalog.Product{ID: id, Name: "New"})
	require.NoError(t, err)

	p, err := service.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New", p.Name)
	repo.AssertExpectations(t)
}

func TestCatalogService_SearchRejectsInvertedRange(t *testing.T) {
	repo := new(MockCatalogRepository)
	service := catalog.NewService(repo, nil)
	lo, hi := decimal.NewFromInt(50), decimal.NewFromInt(10)

	_, err := service.SearchProducts(context.Background(), catalog.SearchFilter{MinPrice: &lo, MaxPrice: &hi})

	assert.ErrorIs(t, err, catalog.ErrInvalidProduct)
}

func TestCatalogService_CreateDiscount(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name     string
		discount catalog.Discount
		wantErr  error
	}{
		{name: "valid percentage", discount: catalog.Discount{Code: "SAVE10", Type: catalog.DiscountPercentage, Value: decimal.NewFromInt(10)}},
		{name: "missing code", discount: catalog.Discount{Type: catalog.DiscountFixed, Value: decimal.NewFromInt(5)}, wantErr: catalog.ErrInvalidDiscount},
		{name: "unknown type", discount: catalog.Discount{Code: "X", Type: "bogus", Value: decimal.NewFromInt(5)}, wantErr: catalog.ErrInvalidDiscount},
		{name: "over 100 percent", discount: catalog.Discount{Code: "X", Type: catalog.DiscountPercentage, Value: decimal.NewFromInt(101)}, wantErr: catalog.ErrInvalidDiscount},
		{name: "zero value", discount: catalog.Discount{Code: "X", Type: catalog.DiscountFixed}, wantErr: catalog.ErrInvalidDiscount},
		{name: "inverted window", discount: catalog.Discount{Code: "X", Type: catalog.DiscountFixed, Value: decimal.NewFromInt(1), ValidFrom: &now, ValidTo: &earlier}, wantErr: catalog.ErrInvalidDiscount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockCatalogRepository)
			service := catalog.NewService(repo, nil)
			if tt.wantErr == nil {
				repo.On("CreateDiscount", mock.Anything, mock.AnythingOfType("*catalog.Discount")).Return(nil).Once()
			}

			_, err := service.CreateDiscount(context.Background(), &tt.discount)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestCatalogService_ApplyDiscount(t *testing.T) {
	ctx := context.Background()
	productID := uuid.Must(uuid.NewV4())
	discountID := uuid.Must(uuid.NewV4())

	t.Run("attached", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := catalog.NewService(repo, nil)
		repo.On("GetProductByID", ctx, productID).Return(&catalog.Product{ID: productID}, nil).Once()
		repo.On("GetActiveDiscountByCode", ctx, "SAVE10", mock.AnythingOfType("time.Time")).
			Return(&catalog.Discount{ID: discountID, Code: "SAVE10"}, nil).Once()
		repo.On("AttachDiscount", ctx, productID, discountID).Return(nil).Once()

		require.NoError(t, service.ApplyDiscount(ctx, productID, " SAVE10 "))
		repo.AssertExpectations(t)
	})

	t.Run("inactive code", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := catalog.NewService(repo, nil)
		repo.On("GetProductByID", ctx, productID).Return(&catalog.Product{ID: productID}, nil).Once()
		repo.On("GetActiveDiscountByCode", ctx, "OLD", mock.Anything).Return(nil, catalog.ErrDiscountNotFound).Once()

		err := service.ApplyDiscount(ctx, productID, "OLD")

		assert.ErrorIs(t, err, catalog.ErrDiscountNotFound)
		repo.AssertNotCalled(t, "AttachDiscount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown product", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		service := catalog.NewService(repo, nil)
		repo.On("GetProductByID", ctx, productID).Return(nil, catalog.ErrProductNotFound).Once()

		assert.ErrorIs(t, service.ApplyDiscount(ctx, productID, "SAVE10"), catalog.ErrProductNotFound)
	})
}

func TestCatalogService_DeleteProductInUse(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCatalogRepository)
	service := catalog.NewService(repo, nil)
	id := uuid.Must(uuid.NewV4())
	repo.On("DeleteProduct", ctx, id).Return(catalog.ErrProductInUse).Once()

	assert.ErrorIs(t, service.DeleteProduct(ctx, id), catalog.ErrProductInUse)
}
