package mocks

import (
	"context"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type BasketService struct {
	mock.Mock
}

func (m *BasketService) GetBasket(ctx context.Context, userName string) (*models.ShoppingCart, error) {
	args := m.Called(ctx, userName)

	var cart *models.ShoppingCart
	if c := args.Get(0); c != nil {
		cart = c.(*models.ShoppingCart)
	}

	return cart, args.Error(1)
}

func (m *BasketService) UpdateBasket(ctx context.Context, cart *models.ShoppingCart) (*models.ShoppingCart, error) {
	args := m.Called(ctx, cart)

	var updated *models.ShoppingCart
	if c := args.Get(0); c != nil {
		updated = c.(*models.ShoppingCart)
	}

	return updated, args.Error(1)
}

func (m *BasketService) DeleteBasket(ctx context.Context, userName string) error {
	args := m.Called(ctx, userName)
	return args.Error(0)
}

func (m *BasketService) ApplyPriceChange(ctx context.Context, productID int64, price decimal.Decimal) (int, error) {
	args := m.Called(ctx, productID, price)
	return args.Int(0), args.Error(1)
}
