package mocks

import (
	"context"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	repository "github.com/aaravmahajanofficial/ecommerce-basket/internal/repositories"
	"github.com/stretchr/testify/mock"
)

type BasketRepository struct {
	mock.Mock
}

func (m *BasketRepository) GetBasket(ctx context.Context, userName string) (*models.ShoppingCart, bool, error) {
	args := m.Called(ctx, userName)

	var cart *models.ShoppingCart
	if c := args.Get(0); c != nil {
		cart = c.(*models.ShoppingCart)
	}

	return cart, args.Bool(1), args.Error(2)
}

func (m *BasketRepository) SaveBasket(ctx context.Context, cart *models.ShoppingCart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *BasketRepository) DeleteBasket(ctx context.Context, userName string) error {
	args := m.Called(ctx, userName)
	return args.Error(0)
}

func (m *BasketRepository) BasketsForProduct(ctx context.Context, productID int64) ([]string, error) {
	args := m.Called(ctx, productID)

	var userNames []string
	if u := args.Get(0); u != nil {
		userNames = u.([]string)
	}

	return userNames, args.Error(1)
}

func (m *BasketRepository) PatchBasket(ctx context.Context, productID int64, userName string, fn repository.PatchFunc) (bool, error) {
	args := m.Called(ctx, productID, userName, fn)
	return args.Bool(0), args.Error(1)
}
