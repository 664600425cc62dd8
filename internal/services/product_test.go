package service_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	cacheMocks "github.com/aaravmahajanofficial/ecommerce-basket/internal/cache/mocks"
	appErrors "github.com/aaravmahajanofficial/ecommerce-basket/internal/errors"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/repositories/mocks"
	service "github.com/aaravmahajanofficial/ecommerce-basket/internal/services"
	serviceMocks "github.com/aaravmahajanofficial/ecommerce-basket/internal/services/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type productServiceDeps struct {
	repo      *mocks.ProductRepository
	cache     *cacheMocks.Cache
	publisher *serviceMocks.PriceChangePublisher
}

func setupProductServiceTest() (service.ProductService, productServiceDeps) {
	deps := productServiceDeps{
		repo:      new(mocks.ProductRepository),
		cache:     new(cacheMocks.Cache),
		publisher: new(serviceMocks.PriceChangePublisher),
	}

	return service.NewProductService(deps.repo, deps.cache, deps.publisher, time.Minute), deps
}

func TestCreateProduct(t *testing.T) {
	ctx := t.Context()

	t.Run("Success - Create Product", func(t *testing.T) {
		// Arrange
		productService, deps := setupProductServiceTest()
		req := &models.CreateProductRequest{
			Name:        "Camping Tent<script>alert(1)</script>",
			Description: "<b>Sleeps</b> four",
			Price:       price("99.99"),
			ImageURL:    "https://img.example.com/tent.png",
		}

		deps.repo.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
			return p.Name == "Camping Tent" && p.Description == "Sleeps four"
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Product).ID = 10
		}).Return(nil).Once()

		// Act
		product, err := productService.CreateProduct(ctx, req)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(10), product.ID)
		assert.True(t, product.Price.Equal(price("99.99")))
		assert.Equal(t, req.ImageURL, product.ImageURL)
		deps.repo.AssertExpectations(t)
	})

	t.Run("Failure - Negative Price", func(t *testing.T) {
		productService, deps := setupProductServiceTest()

		product, err := productService.CreateProduct(ctx, &models.CreateProductRequest{Name: "Tent", Price: price("-1")})

		assert.Nil(t, product)
		assertAppErrorCode(t, err, appErrors.ErrCodeValidation)
		deps.repo.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Name Only Markup", func(t *testing.T) {
		productService, _ := setupProductServiceTest()

		_, err := productService.CreateProduct(ctx, &models.CreateProductRequest{Name: "<i></i>", Price: price("1")})

		assertAppErrorCode(t, err, appErrors.ErrCodeValidation)
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		deps.repo.On("CreateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).Return(errors.New("db down")).Once()

		product, err := productService.CreateProduct(ctx, &models.CreateProductRequest{Name: "Tent", Price: price("1")})

		assert.Nil(t, product)
		assertAppErrorCode(t, err, appErrors.ErrCodeDatabaseError)
		assert.Contains(t, err.Error(), "Failed to create product")
	})
}

func TestGetProductByID(t *testing.T) {
	ctx := t.Context()

	t.Run("Success - Cache Hit", func(t *testing.T) {
		// Arrange
		productService, deps := setupProductServiceTest()
		deps.cache.On("Get", mock.Anything, "product:1", mock.AnythingOfType("*models.Product")).
			Run(func(args mock.Arguments) {
				p := args.Get(2).(*models.Product)
				p.ID = 1
				p.Name = "Solar Flashlight"
				p.Price = price("10.00")
			}).Return(true, nil).Once()

		// Act
		product, err := productService.GetProductByID(ctx, 1)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "Solar Flashlight", product.Name)
		deps.repo.AssertNotCalled(t, "GetProductByID", mock.Anything, mock.Anything)
	})

	t.Run("Success - Cache Miss Fills Cache", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		stored := &models.Product{ID: 2, Name: "Hiking Poles", Price: price("24.99")}

		deps.cache.On("Get", mock.Anything, "product:2", mock.Anything).Return(false, nil).Once()
		deps.repo.On("GetProductByID", mock.Anything, int64(2)).Return(stored, nil).Once()
		deps.cache.On("Set", mock.Anything, "product:2", stored, time.Minute).Return(nil).Once()

		product, err := productService.GetProductByID(ctx, 2)

		require.NoError(t, err)
		assert.Equal(t, stored, product)
		deps.repo.AssertExpectations(t)
		deps.cache.AssertExpectations(t)
	})

	t.Run("Success - Cache Failure Falls Back To Database", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		stored := &models.Product{ID: 3, Name: "Jacket"}

		deps.cache.On("Get", mock.Anything, "product:3", mock.Anything).Return(false, errors.New("redis down")).Once()
		deps.repo.On("GetProductByID", mock.Anything, int64(3)).Return(stored, nil).Once()
		deps.cache.On("Set", mock.Anything, "product:3", stored, mock.Anything).Return(errors.New("redis down")).Once()

		product, err := productService.GetProductByID(ctx, 3)

		require.NoError(t, err)
		assert.Equal(t, stored, product)
	})

	t.Run("Failure - Not Found", func(t *testing.T) {
		productService, deps := setupProductServiceTest()

		deps.cache.On("Get", mock.Anything, "product:404", mock.Anything).Return(false, nil).Once()
		deps.repo.On("GetProductByID", mock.Anything, int64(404)).
			Return(nil, fmt.Errorf("querying database: %w", sql.ErrNoRows)).Once()

		product, err := productService.GetProductByID(ctx, 404)

		assert.Nil(t, product)
		assertAppErrorCode(t, err, appErrors.ErrCodeNotFound)
		deps.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		productService, deps := setupProductServiceTest()

		deps.cache.On("Get", mock.Anything, "product:5", mock.Anything).Return(false, nil).Once()
		deps.repo.On("GetProductByID", mock.Anything, int64(5)).Return(nil, errors.New("db down")).Once()

		_, err := productService.GetProductByID(ctx, 5)

		assertAppErrorCode(t, err, appErrors.ErrCodeDatabaseError)
		assert.Contains(t, err.Error(), "Failed to get product")
	})
}

func TestUpdateProduct(t *testing.T) {
	ctx := t.Context()

	existing := func() *models.Product {
		return &models.Product{ID: 1, Name: "Solar Flashlight", Description: "Bright", Price: price("10.00")}
	}

	t.Run("Success - Price Change Is Published After Commit", func(t *testing.T) {
		// Arrange
		productService, deps := setupProductServiceTest()
		req := &models.UpdateProductRequest{Name: "Solar Flashlight", Description: "Bright", Price: price("12.50")}
		var committed bool

		deps.repo.On("GetProductByID", mock.Anything, int64(1)).Return(existing(), nil).Once()
		deps.repo.On("UpdateProduct", mock.Anything, mock.AnythingOfType("*models.Product")).
			Run(func(args mock.Arguments) { committed = true }).Return(nil).Once()
		deps.cache.On("Delete", mock.Anything, "product:1").Return(nil).Twice()
		deps.publisher.On("PublishProductPriceChanged", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
			return committed && p.ID == 1 && p.Price.Equal(price("12.50"))
		})).Return(nil).Once()

		// Act
		product, err := productService.UpdateProduct(ctx, 1, req)

		// Assert
		require.NoError(t, err)
		assert.True(t, product.Price.Equal(price("12.50")))
		deps.repo.AssertExpectations(t)
		deps.cache.AssertExpectations(t)
		deps.publisher.AssertExpectations(t)
	})

	t.Run("Success - Cache Evicted Again After Publish", func(t *testing.T) {
		// Arrange
		productService, deps := setupProductServiceTest()
		req := &models.UpdateProductRequest{Name: "Solar Flashlight", Price: price("12.50")}
		var order []string

		deps.repo.On("GetProductByID", mock.Anything, int64(1)).Return(existing(), nil).Once()
		deps.repo.On("UpdateProduct", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { order = append(order, "commit") }).Return(nil).Once()
		deps.cache.On("Delete", mock.Anything, "product:1").
			Run(func(args mock.Arguments) { order = append(order, "evict") }).Return(nil).Twice()
		deps.publisher.On("PublishProductPriceChanged", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { order = append(order, "publish") }).Return(nil).Once()

		// Act
		_, err := productService.UpdateProduct(ctx, 1, req)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"commit", "evict", "publish", "evict"}, order,
			"an old row cached by a read racing the update must not survive the publish")
		deps.cache.AssertExpectations(t)
	})

	t.Run("Success - Same Price Publishes Nothing", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		req := &models.UpdateProductRequest{Name: "Renamed", Price: price("10")}

		deps.repo.On("GetProductByID", mock.Anything, int64(1)).Return(existing(), nil).Once()
		deps.repo.On("UpdateProduct", mock.Anything, mock.Anything).Return(nil).Once()
		deps.cache.On("Delete", mock.Anything, "product:1").Return(nil).Twice()

		product, err := productService.UpdateProduct(ctx, 1, req)

		require.NoError(t, err)
		assert.Equal(t, "Renamed", product.Name)
		deps.publisher.AssertNotCalled(t, "PublishProductPriceChanged", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Publish Error After Commit", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		req := &models.UpdateProductRequest{Name: "Solar Flashlight", Price: price("11")}

		deps.repo.On("GetProductByID", mock.Anything, int64(1)).Return(existing(), nil).Once()
		deps.repo.On("UpdateProduct", mock.Anything, mock.Anything).Return(nil).Once()
		deps.cache.On("Delete", mock.Anything, "product:1").Return(errors.New("redis down")).Twice()
		deps.publisher.On("PublishProductPriceChanged", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

		product, err := productService.UpdateProduct(ctx, 1, req)

		assert.Nil(t, product)
		assertAppErrorCode(t, err, appErrors.ErrCodeThirdPartyError)
		deps.repo.AssertExpectations(t)
	})

	t.Run("Failure - Database Error Publishes Nothing", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		req := &models.UpdateProductRequest{Name: "Solar Flashlight", Price: price("11")}

		deps.repo.On("GetProductByID", mock.Anything, int64(1)).Return(existing(), nil).Once()
		deps.repo.On("UpdateProduct", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

		product, err := productService.UpdateProduct(ctx, 1, req)

		assert.Nil(t, product)
		assertAppErrorCode(t, err, appErrors.ErrCodeDatabaseError)
		deps.publisher.AssertNotCalled(t, "PublishProductPriceChanged", mock.Anything, mock.Anything)
		deps.cache.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Not Found", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		deps.repo.On("GetProductByID", mock.Anything, int64(9)).Return(nil, sql.ErrNoRows).Once()

		_, err := productService.UpdateProduct(ctx, 9, &models.UpdateProductRequest{Name: "x", Price: price("1")})

		assertAppErrorCode(t, err, appErrors.ErrCodeNotFound)
	})
}

func TestDeleteProduct(t *testing.T) {
	ctx := t.Context()

	t.Run("Success - Evicts Cache", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		deps.repo.On("DeleteProduct", mock.Anything, int64(4)).Return(nil).Once()
		deps.cache.On("Delete", mock.Anything, "product:4").Return(nil).Once()

		require.NoError(t, productService.DeleteProduct(ctx, 4))

		deps.repo.AssertExpectations(t)
		deps.cache.AssertExpectations(t)
	})

	t.Run("Failure - Not Found", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		deps.repo.On("DeleteProduct", mock.Anything, int64(4)).Return(sql.ErrNoRows).Once()

		assertAppErrorCode(t, productService.DeleteProduct(ctx, 4), appErrors.ErrCodeNotFound)
	})
}

func TestListProducts(t *testing.T) {
	ctx := t.Context()

	t.Run("Success - Normalizes Paging", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		expected := []*models.Product{{ID: 1}, {ID: 2}}
		deps.repo.On("ListProducts", mock.Anything, 1, 10).Return(expected, 2, nil).Once()

		products, total, err := productService.ListProducts(ctx, 0, 0)

		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, expected, products)
		deps.repo.AssertExpectations(t)
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		deps.repo.On("ListProducts", mock.Anything, 2, 5).Return(nil, 0, errors.New("db down")).Once()

		products, total, err := productService.ListProducts(ctx, 2, 5)

		assert.Nil(t, products)
		assert.Zero(t, total)
		assertAppErrorCode(t, err, appErrors.ErrCodeDatabaseError)
	})
}

func TestSearchProducts(t *testing.T) {
	ctx := t.Context()

	t.Run("Success", func(t *testing.T) {
		productService, deps := setupProductServiceTest()
		expected := []*models.Product{{ID: 9, Name: "Camping Tent"}}
		deps.repo.On("SearchProducts", mock.Anything, "tent").Return(expected, nil).Once()

		products, err := productService.SearchProducts(ctx, "  tent ")

		require.NoError(t, err)
		assert.Equal(t, expected, products)
	})

	t.Run("Failure - Blank Query", func(t *testing.T) {
		productService, deps := setupProductServiceTest()

		_, err := productService.SearchProducts(ctx, " ")

		assertAppErrorCode(t, err, appErrors.ErrCodeValidation)
		deps.repo.AssertNotCalled(t, "SearchProducts", mock.Anything, mock.Anything)
	})
}
