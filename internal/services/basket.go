package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/api/middleware"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/clients"
	appErrors "github.com/aaravmahajanofficial/ecommerce-basket/internal/errors"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/metrics"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	repository "github.com/aaravmahajanofficial/ecommerce-basket/internal/repositories"
	"github.com/shopspring/decimal"
)

type BasketService interface {
	GetBasket(ctx context.Context, userName string) (*models.ShoppingCart, error)
	UpdateBasket(ctx context.Context, cart *models.ShoppingCart) (*models.ShoppingCart, error)
	DeleteBasket(ctx context.Context, userName string) error
	ApplyPriceChange(ctx context.Context, productID int64, price decimal.Decimal) (int, error)
}

type basketService struct {
	repo    repository.BasketRepository
	catalog clients.CatalogClient
}

func NewBasketService(repo repository.BasketRepository, catalog clients.CatalogClient) BasketService {
	return &basketService{repo: repo, catalog: catalog}
}

// GetBasket returns nil without an error when the user has no basket.
func (s *basketService) GetBasket(ctx context.Context, userName string) (*models.ShoppingCart, error) {

	if strings.TrimSpace(userName) == "" {
		return nil, appErrors.ValidationError("User name is required")
	}

	cart, found, err := s.repo.GetBasket(ctx, userName)
	if err != nil {
		return nil, basketStoreError("Failed to retrieve basket", err)
	}

	if !found {
		return nil, nil
	}

	return cart, nil
}

// UpdateBasket refreshes every item's price and name from the catalog and then
// replaces the stored basket. A single failed lookup aborts the whole update
// and nothing is written; the caller's cart is never modified.
func (s *basketService) UpdateBasket(ctx context.Context, cart *models.ShoppingCart) (*models.ShoppingCart, error) {

	logger := middleware.LoggerFromContext(ctx)

	if cart == nil || strings.TrimSpace(cart.UserName) == "" {
		return nil, appErrors.ValidationError("User name is required")
	}

	refreshed := cart.Clone()
	products := make(map[int64]*models.Product, len(refreshed.Items))

	for i := range refreshed.Items {
		item := &refreshed.Items[i]

		if item.ProductID <= 0 {
			return nil, appErrors.AddValidationError("productId", "must be a positive catalog id")
		}

		product, ok := products[item.ProductID]
		if !ok {
			var err error

			product, err = s.catalog.GetProductByID(ctx, item.ProductID)
			if err != nil {
				logger.Warn("Catalog lookup failed during basket update",
					slog.String("userName", cart.UserName),
					slog.Int64("productId", item.ProductID),
					slog.String("error", err.Error()))

				if errors.Is(err, clients.ErrProductNotFound) {
					return nil, appErrors.NotFoundError(fmt.Sprintf("Product %d not found", item.ProductID)).WithError(err)
				}

				return nil, appErrors.ThirdPartyError("Failed to fetch product from catalog").WithError(err)
			}

			products[item.ProductID] = product
		}

		item.Price = product.Price
		item.ProductName = product.Name
	}

	if err := s.repo.SaveBasket(ctx, refreshed); err != nil {
		return nil, appErrors.CacheError("Failed to store basket").WithError(err)
	}

	logger.Info("Basket updated", slog.String("userName", refreshed.UserName), slog.Int("items", len(refreshed.Items)))

	return refreshed, nil
}

func (s *basketService) DeleteBasket(ctx context.Context, userName string) error {

	if strings.TrimSpace(userName) == "" {
		return appErrors.ValidationError("User name is required")
	}

	if err := s.repo.DeleteBasket(ctx, userName); err != nil {
		return appErrors.CacheError("Failed to delete basket").WithError(err)
	}

	return nil
}

// ApplyPriceChange sets the new price on every item for productID in every
// basket indexed under that product. Only the price is touched. Baskets that
// are gone or no longer hold the product are dropped from the index, and an
// event that matches nothing is a silent no-op. It returns how many baskets
// were rewritten.
func (s *basketService) ApplyPriceChange(ctx context.Context, productID int64, price decimal.Decimal) (int, error) {

	logger := middleware.LoggerFromContext(ctx).With(slog.Int64("productId", productID), slog.String("price", price.String()))

	userNames, err := s.repo.BasketsForProduct(ctx, productID)
	if err != nil {
		return 0, appErrors.CacheError("Failed to look up baskets for product").WithError(err)
	}

	updated := 0

	for _, userName := range userNames {

		written, err := s.repo.PatchBasket(ctx, productID, userName, func(cart *models.ShoppingCart) bool {
			return cart.SetPrice(productID, price) > 0
		})

		if errors.Is(err, repository.ErrMalformedBasket) {
			logger.Warn("Skipping malformed basket during price change", slog.String("userName", userName), slog.String("error", err.Error()))
			continue
		}

		if err != nil {
			return updated, appErrors.CacheError("Failed to apply price change").WithError(err)
		}

		if written {
			updated++
		}
	}

	metrics.PriceChangeApplied(updated)
	logger.Info("Price change applied", slog.Int("baskets", updated), slog.Int("indexed", len(userNames)))

	return updated, nil
}

func basketStoreError(message string, err error) *appErrors.AppError {
	if errors.Is(err, repository.ErrMalformedBasket) {
		return appErrors.InternalError("Stored basket is corrupted").WithError(err)
	}

	return appErrors.CacheError(message).WithError(err)
}
