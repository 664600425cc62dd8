package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/cache"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/config"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/utils"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrMalformedBasket marks a stored basket that no longer decodes. It is never repaired.
	ErrMalformedBasket = errors.New("malformed basket")
	// ErrBasketContention is returned when a patch keeps losing the optimistic race.
	ErrBasketContention = errors.New("basket modified concurrently")
)

// PatchFunc mutates a loaded basket and reports whether it must be written back.
// Reporting false means the basket no longer holds the patched product.
type PatchFunc func(cart *models.ShoppingCart) bool

type BasketRepository interface {
	GetBasket(ctx context.Context, userName string) (*models.ShoppingCart, bool, error)
	SaveBasket(ctx context.Context, cart *models.ShoppingCart) error
	DeleteBasket(ctx context.Context, userName string) error
	BasketsForProduct(ctx context.Context, productID int64) ([]string, error)
	PatchBasket(ctx context.Context, productID int64, userName string, fn PatchFunc) (bool, error)
}

type basketRepository struct {
	client     *redis.Client
	ttl        time.Duration
	maxRetries int
}

func NewBasketRepo(client *redis.Client, cfg *config.CacheConfig) BasketRepository {
	maxRetries := cfg.MaxPatchRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &basketRepository{client: client, ttl: cfg.BasketTTL, maxRetries: maxRetries}
}

func basketKey(userName string) string {
	return cache.Key(cache.BasketKeyPrefix, userName)
}

func productIndexKey(productID int64) string {
	return cache.Key(cache.BasketProductIndexPrefix, strconv.FormatInt(productID, 10))
}

func decodeBasket(userName, data string) (*models.ShoppingCart, bool, error) {
	if strings.TrimSpace(data) == "" {
		return nil, false, nil
	}

	cart := &models.ShoppingCart{}
	if err := json.Unmarshal([]byte(data), cart); err != nil {
		return nil, false, fmt.Errorf("%w for %s: %w", ErrMalformedBasket, userName, err)
	}

	return cart, true, nil
}

func (r *basketRepository) GetBasket(ctx context.Context, userName string) (*models.ShoppingCart, bool, error) {
	cacheCtx, cancel := utils.WithCacheTimeout(ctx)
	defer cancel()

	data, err := r.client.Get(cacheCtx, basketKey(userName)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get basket %s from redis: %w", userName, err)
	}

	return decodeBasket(userName, data)
}

// SaveBasket replaces the stored basket and indexes it under each contained
// product in the same MULTI block.
func (r *basketRepository) SaveBasket(ctx context.Context, cart *models.ShoppingCart) error {
	cacheCtx, cancel := utils.WithCacheTimeout(ctx)
	defer cancel()

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal basket %s: %w", cart.UserName, err)
	}

	_, err = r.client.TxPipelined(cacheCtx, func(pipe redis.Pipeliner) error {
		pipe.Set(cacheCtx, basketKey(cart.UserName), data, r.ttl)
		for _, productID := range cart.ProductIDs() {
			pipe.SAdd(cacheCtx, productIndexKey(productID), cart.UserName)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store basket %s in redis: %w", cart.UserName, err)
	}

	return nil
}

// DeleteBasket leaves product index entries behind; they are dropped lazily
// the next time a price change walks them.
func (r *basketRepository) DeleteBasket(ctx context.Context, userName string) error {
	cacheCtx, cancel := utils.WithCacheTimeout(ctx)
	defer cancel()

	if err := r.client.Del(cacheCtx, basketKey(userName)).Err(); err != nil {
		return fmt.Errorf("failed to delete basket %s from redis: %w", userName, err)
	}

	return nil
}

func (r *basketRepository) BasketsForProduct(ctx context.Context, productID int64) ([]string, error) {
	cacheCtx, cancel := utils.WithCacheTimeout(ctx)
	defer cancel()

	userNames, err := r.client.SMembers(cacheCtx, productIndexKey(productID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read basket index for product %d: %w", productID, err)
	}

	return userNames, nil
}

// PatchBasket runs an optimistic read-modify-write on a basket indexed under
// productID: the key is WATCHed, and if another writer touches it before EXEC
// the whole cycle is retried. When the basket is gone or fn reports nothing to
// write, userName is removed from the product index in that same transaction,
// so a save racing with the patch aborts it instead of losing its index entry.
// The basket keeps its remaining TTL.
func (r *basketRepository) PatchBasket(ctx context.Context, productID int64, userName string, fn PatchFunc) (bool, error) {
	key := basketKey(userName)
	indexKey := productIndexKey(productID)

	for attempt := 0; attempt < r.maxRetries; attempt++ {

		written := false
		cacheCtx, cancel := utils.WithCacheTimeout(ctx)

		txf := func(tx *redis.Tx) error {
			data, err := tx.Get(cacheCtx, key).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("failed to get basket %s from redis: %w", userName, err)
			}

			cart, found, err := decodeBasket(userName, data)
			if err != nil {
				return err
			}

			if !found || !fn(cart) {
				_, err = tx.TxPipelined(cacheCtx, func(pipe redis.Pipeliner) error {
					pipe.SRem(cacheCtx, indexKey, userName)
					return nil
				})
				return err
			}

			encoded, err := json.Marshal(cart)
			if err != nil {
				return fmt.Errorf("failed to marshal basket %s: %w", userName, err)
			}

			_, err = tx.TxPipelined(cacheCtx, func(pipe redis.Pipeliner) error {
				pipe.Set(cacheCtx, key, encoded, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}

			written = true
			return nil
		}

		err := r.client.Watch(cacheCtx, txf, key)
		cancel()

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, err
		}

		return written, nil
	}

	return false, fmt.Errorf("%w: %s after %d attempts", ErrBasketContention, userName, r.maxRetries)
}
