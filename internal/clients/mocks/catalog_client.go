package mocks

import (
	"context"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	"github.com/stretchr/testify/mock"
)

type CatalogClient struct {
	mock.Mock
}

func (m *CatalogClient) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)

	var product *models.Product
	if p := args.Get(0); p != nil {
		product = p.(*models.Product)
	}

	return product, args.Error(1)
}
