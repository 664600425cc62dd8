package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/api/middleware"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/cache"
	appErrors "github.com/aaravmahajanofficial/ecommerce-basket/internal/errors"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	repository "github.com/aaravmahajanofficial/ecommerce-basket/internal/repositories"
	"github.com/microcosm-cc/bluemonday"
)

type ProductService interface {
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, req *models.UpdateProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, page, pageSize int) ([]*models.Product, int, error)
	SearchProducts(ctx context.Context, query string) ([]*models.Product, error)
}

// PriceChangePublisher announces a new product price to other services.
type PriceChangePublisher interface {
	PublishProductPriceChanged(ctx context.Context, product *models.Product) error
}

type productService struct {
	repo      repository.ProductRepository
	cache     cache.Cache
	publisher PriceChangePublisher
	sanitizer *bluemonday.Policy
	cacheTTL  time.Duration
}

// NewProductService caches products for cacheTTL; zero falls back to the
// cache's default expiry.
func NewProductService(repo repository.ProductRepository, cache cache.Cache, publisher PriceChangePublisher, cacheTTL time.Duration) ProductService {
	return &productService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		sanitizer: bluemonday.StrictPolicy(),
		cacheTTL:  cacheTTL,
	}
}

func productCacheKey(id int64) string {
	return cache.Key(cache.ProductKeyPrefix, strconv.FormatInt(id, 10))
}

func (s *productService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {

	if req.Price.IsNegative() {
		return nil, appErrors.AddValidationError("price", "must not be negative")
	}

	product := &models.Product{
		Name:        s.sanitizer.Sanitize(req.Name),
		Description: s.sanitizer.Sanitize(req.Description),
		Price:       req.Price,
		ImageURL:    req.ImageURL,
	}

	if strings.TrimSpace(product.Name) == "" {
		return nil, appErrors.AddValidationError("name", "must contain text")
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, appErrors.DatabaseError("Failed to create product").WithError(err)
	}

	return product, nil
}

// GetProductByID reads through the product cache. A cache failure is logged
// and the database answers instead.
func (s *productService) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {

	logger := middleware.LoggerFromContext(ctx)
	key := productCacheKey(id)

	var cached models.Product
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.Warn("Product cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	} else if found {
		return &cached, nil
	}

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Product not found").WithError(err)
		}
		return nil, appErrors.DatabaseError("Failed to get product").WithError(err)
	}

	if err := s.cache.Set(ctx, key, product, s.cacheTTL); err != nil {
		logger.Warn("Product cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	return product, nil
}

// UpdateProduct publishes a price change only after the database accepted the
// new price. The cache entry is evicted right after the commit and again once
// publishing is over, so a concurrent read that loaded the old row and refilled
// the cache in between does not outlive the update.
func (s *productService) UpdateProduct(ctx context.Context, id int64, req *models.UpdateProductRequest) (*models.Product, error) {

	logger := middleware.LoggerFromContext(ctx)

	if req.Price.IsNegative() {
		return nil, appErrors.AddValidationError("price", "must not be negative")
	}

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Product not found").WithError(err)
		}
		return nil, appErrors.DatabaseError("Failed to get product").WithError(err)
	}

	oldPrice := product.Price

	product.Name = s.sanitizer.Sanitize(req.Name)
	product.Description = s.sanitizer.Sanitize(req.Description)
	product.Price = req.Price
	product.ImageURL = req.ImageURL

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Product not found").WithError(err)
		}
		return nil, appErrors.DatabaseError("Failed to update product").WithError(err)
	}

	s.evict(ctx, id)
	defer s.evict(ctx, id)

	if !oldPrice.Equal(product.Price) {
		if err := s.publisher.PublishProductPriceChanged(ctx, product); err != nil {
			// no outbox: the new price is committed but baskets will not hear about it
			logger.Error("Failed to publish price change",
				slog.Int64("productId", product.ID),
				slog.String("error", err.Error()))
			return nil, appErrors.ThirdPartyError("Product updated but the price change could not be published").WithError(err)
		}

		logger.Info("Price change published",
			slog.Int64("productId", product.ID),
			slog.String("oldPrice", oldPrice.String()),
			slog.String("newPrice", product.Price.String()))
	}

	return product, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id int64) error {

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundError("Product not found").WithError(err)
		}
		return appErrors.DatabaseError("Failed to delete product").WithError(err)
	}

	s.evict(ctx, id)

	return nil
}

// page means "page number requested"
// pageSize means "number of products to be displayed per page"
func (s *productService) ListProducts(ctx context.Context, page, pageSize int) ([]*models.Product, int, error) {

	page, pageSize = models.NormalizePaging(page, pageSize)

	products, total, err := s.repo.ListProducts(ctx, page, pageSize)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to fetch products").WithError(err)
	}

	return products, total, nil
}

func (s *productService) SearchProducts(ctx context.Context, query string) ([]*models.Product, error) {

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErrors.ValidationError("Search query is required")
	}

	products, err := s.repo.SearchProducts(ctx, query)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to search products").WithError(err)
	}

	return products, nil
}

func (s *productService) evict(ctx context.Context, id int64) {
	key := productCacheKey(id)
	if err := s.cache.Delete(ctx, key); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Product cache eviction failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
