package mocks

import (
	"context"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	"github.com/stretchr/testify/mock"
)

type ProductService struct {
	mock.Mock
}

func (m *ProductService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	args := m.Called(ctx, req)
	return product(args.Get(0)), args.Error(1)
}

func (m *ProductService) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	return product(args.Get(0)), args.Error(1)
}

func (m *ProductService) UpdateProduct(ctx context.Context, id int64, req *models.UpdateProductRequest) (*models.Product, error) {
	args := m.Called(ctx, id, req)
	return product(args.Get(0)), args.Error(1)
}

func (m *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ProductService) ListProducts(ctx context.Context, page, pageSize int) ([]*models.Product, int, error) {
	args := m.Called(ctx, page, pageSize)
	return products(args.Get(0)), args.Int(1), args.Error(2)
}

func (m *ProductService) SearchProducts(ctx context.Context, query string) ([]*models.Product, error) {
	args := m.Called(ctx, query)
	return products(args.Get(0)), args.Error(1)
}

type PriceChangePublisher struct {
	mock.Mock
}

func (m *PriceChangePublisher) PublishProductPriceChanged(ctx context.Context, p *models.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func product(v any) *models.Product {
	if v == nil {
		return nil
	}
	return v.(*models.Product)
}

func products(v any) []*models.Product {
	if v == nil {
		return nil
	}
	return v.([]*models.Product)
}
