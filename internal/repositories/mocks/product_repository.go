package mocks

import (
	"context"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	"github.com/stretchr/testify/mock"
)

type ProductRepository struct {
	mock.Mock
}

func (m *ProductRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *ProductRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)

	var product *models.Product
	if p := args.Get(0); p != nil {
		product = p.(*models.Product)
	}

	return product, args.Error(1)
}

func (m *ProductRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *ProductRepository) DeleteProduct(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ProductRepository) ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error) {
	args := m.Called(ctx, page, size)

	var products []*models.Product
	if p := args.Get(0); p != nil {
		products = p.([]*models.Product)
	}

	return products, args.Int(1), args.Error(2)
}

func (m *ProductRepository) SearchProducts(ctx context.Context, query string) ([]*models.Product, error) {
	args := m.Called(ctx, query)

	var products []*models.Product
	if p := args.Get(0); p != nil {
		products = p.([]*models.Product)
	}

	return products, args.Error(1)
}
