package repository_test

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/config"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	repository "github.com/aaravmahajanofficial/ecommerce-basket/internal/repositories"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBasketRepoTest(t *testing.T, cfg *config.CacheConfig) (repository.BasketRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	if cfg == nil {
		cfg = &config.CacheConfig{MaxPatchRetries: 100}
	}

	return repository.NewBasketRepo(client, cfg), mr
}

func sampleCart(userName string) *models.ShoppingCart {
	return &models.ShoppingCart{
		UserName: userName,
		Items: []models.ShoppingCartItem{
			{ProductID: 1, Color: "red", Quantity: 2, Price: decimal.RequireFromString("10.00"), ProductName: "Shoe"},
			{ProductID: 2, Color: "blue", Quantity: 1, Price: decimal.RequireFromString("4.25"), ProductName: "Sock"},
		},
	}
}

func TestBasketRepository_GetBasket(t *testing.T) {
	ctx := t.Context()

	t.Run("Absent - No Prior Write", func(t *testing.T) {
		repo, _ := setupBasketRepoTest(t, nil)

		cart, found, err := repo.GetBasket(ctx, "nobody")

		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, cart)
	})

	t.Run("Absent - Blank Value", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, nil)
		require.NoError(t, mr.Set("basket:blank", "   "))

		cart, found, err := repo.GetBasket(ctx, "blank")

		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, cart)
	})

	t.Run("Failure - Malformed Value", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, nil)
		require.NoError(t, mr.Set("basket:broken", `{"userName": 42`))

		cart, found, err := repo.GetBasket(ctx, "broken")

		require.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrMalformedBasket)
		assert.False(t, found)
		assert.Nil(t, cart)
		// the bad entry is left untouched
		assert.True(t, mr.Exists("basket:broken"))
	})

	t.Run("Failure - Redis Down", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, nil)
		mr.Close()

		_, _, err := repo.GetBasket(ctx, "alice")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get basket alice from redis")
	})
}

func TestBasketRepository_SaveBasket(t *testing.T) {
	ctx := t.Context()

	t.Run("Success - Round Trip Keeps Decimal Precision", func(t *testing.T) {
		repo, _ := setupBasketRepoTest(t, nil)
		cart := sampleCart("alice")
		cart.Items[1].Price = decimal.RequireFromString("4.123456789")

		require.NoError(t, repo.SaveBasket(ctx, cart))
		stored, found, err := repo.GetBasket(ctx, "alice")

		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "alice", stored.UserName)
		require.Len(t, stored.Items, 2)
		assert.True(t, stored.Items[0].Price.Equal(decimal.RequireFromString("10")))
		assert.Equal(t, "4.123456789", stored.Items[1].Price.String())
		assert.Equal(t, "red", stored.Items[0].Color)
		assert.Equal(t, 2, stored.Items[0].Quantity)
		assert.Equal(t, "Shoe", stored.Items[0].ProductName)
	})

	t.Run("Success - Empty Basket Is Persisted", func(t *testing.T) {
		repo, _ := setupBasketRepoTest(t, nil)

		require.NoError(t, repo.SaveBasket(ctx, models.NewShoppingCart("bob")))
		stored, found, err := repo.GetBasket(ctx, "bob")

		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, stored.Items)
	})

	t.Run("Success - Indexes Every Product", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, nil)

		require.NoError(t, repo.SaveBasket(ctx, sampleCart("alice")))
		require.NoError(t, repo.SaveBasket(ctx, sampleCart("carol")))

		members, err := mr.Members("basket:product:1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "carol"}, members)

		users, err := repo.BasketsForProduct(ctx, 2)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "carol"}, users)
	})

	t.Run("Success - Applies Basket TTL", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, &config.CacheConfig{BasketTTL: time.Hour, MaxPatchRetries: 1})

		require.NoError(t, repo.SaveBasket(ctx, sampleCart("alice")))

		assert.Equal(t, time.Hour, mr.TTL("basket:alice"))
	})

	t.Run("Success - No TTL By Default", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, nil)

		require.NoError(t, repo.SaveBasket(ctx, sampleCart("alice")))

		assert.Equal(t, time.Duration(0), mr.TTL("basket:alice"))
	})

	t.Run("Concurrent Saves Never Merge", func(t *testing.T) {
		repo, _ := setupBasketRepoTest(t, nil)
		first := sampleCart("dave")
		second := &models.ShoppingCart{
			UserName: "dave",
			Items:    []models.ShoppingCartItem{{ProductID: 9, Color: "green", Quantity: 5, Price: decimal.NewFromInt(3), ProductName: "Hat"}},
		}

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); assert.NoError(t, repo.SaveBasket(ctx, first)) }()
			go func() { defer wg.Done(); assert.NoError(t, repo.SaveBasket(ctx, second)) }()
		}
		wg.Wait()

		stored, found, err := repo.GetBasket(ctx, "dave")
		require.NoError(t, err)
		require.True(t, found)

		switch len(stored.Items) {
		case 2:
			assert.Equal(t, int64(1), stored.Items[0].ProductID)
			assert.Equal(t, int64(2), stored.Items[1].ProductID)
		case 1:
			assert.Equal(t, int64(9), stored.Items[0].ProductID)
		default:
			t.Fatalf("stored basket is a hybrid of both writes: %+v", stored.Items)
		}
	})
}

func TestBasketRepository_DeleteBasket(t *testing.T) {
	ctx := t.Context()
	repo, _ := setupBasketRepoTest(t, nil)
	require.NoError(t, repo.SaveBasket(ctx, sampleCart("alice")))

	require.NoError(t, repo.DeleteBasket(ctx, "alice"))
	require.NoError(t, repo.DeleteBasket(ctx, "alice"), "second delete must be a no-op")

	cart, found, err := repo.GetBasket(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, cart)
}

func TestBasketRepository_PatchBasket(t *testing.T) {
	ctx := t.Context()

	t.Run("Success - Writes When Changed", func(t *testing.T) {
		repo, _ := setupBasketRepoTest(t, nil)
		require.NoError(t, repo.SaveBasket(ctx, sampleCart("alice")))

		written, err := repo.PatchBasket(ctx, 1, "alice", func(cart *models.ShoppingCart) bool {
			return cart.SetPrice(1, decimal.RequireFromString("12.50")) > 0
		})

		require.NoError(t, err)
		assert.True(t, written)
		stored, _, err := repo.GetBasket(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, stored.Items[0].Price.Equal(decimal.RequireFromString("12.50")))
		assert.True(t, stored.Items[1].Price.Equal(decimal.RequireFromString("4.25")))
	})

	t.Run("No Write When Product Is Gone", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, nil)
		require.NoError(t, repo.SaveBasket(ctx, sampleCart("alice")))
		_, err := mr.SAdd("basket:product:99", "alice")
		require.NoError(t, err)
		before, err := mr.Get("basket:alice")
		require.NoError(t, err)

		written, err := repo.PatchBasket(ctx, 99, "alice", func(cart *models.ShoppingCart) bool {
			return cart.SetPrice(99, decimal.NewFromInt(1)) > 0
		})

		require.NoError(t, err)
		assert.False(t, written)
		after, err := mr.Get("basket:alice")
		require.NoError(t, err)
		assert.Equal(t, before, after)

		users, err := repo.BasketsForProduct(ctx, 99)
		require.NoError(t, err)
		assert.Empty(t, users, "stale index entry is dropped")

		users, err = repo.BasketsForProduct(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, users, "other product indexes are untouched")
	})

	t.Run("Save During Patch Keeps Index Entry", func(t *testing.T) {
		repo, _ := setupBasketRepoTest(t, nil)
		require.NoError(t, repo.SaveBasket(ctx, &models.ShoppingCart{
			UserName: "alice",
			Items:    []models.ShoppingCartItem{{ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("4.25")}},
		}))

		calls := 0
		written, err := repo.PatchBasket(ctx, 1, "alice", func(cart *models.ShoppingCart) bool {
			calls++
			if calls == 1 {
				// the user adds product 1 after the patch read the basket
				require.NoError(t, repo.SaveBasket(ctx, sampleCart("alice")))
			}
			return cart.SetPrice(1, decimal.RequireFromString("12.50")) > 0
		})

		require.NoError(t, err)
		assert.True(t, written, "the racing save aborts the first attempt and the retry sees product 1")
		assert.Equal(t, 2, calls)

		users, err := repo.BasketsForProduct(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, users)

		stored, _, err := repo.GetBasket(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, stored.Items[0].Price.Equal(decimal.RequireFromString("12.50")))
	})

	t.Run("Keeps Remaining TTL", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, &config.CacheConfig{BasketTTL: time.Hour, MaxPatchRetries: 5})
		require.NoError(t, repo.SaveBasket(ctx, sampleCart("alice")))
		mr.FastForward(40 * time.Minute)

		written, err := repo.PatchBasket(ctx, 1, "alice", func(cart *models.ShoppingCart) bool {
			return cart.SetPrice(1, decimal.RequireFromString("12.50")) > 0
		})

		require.NoError(t, err)
		assert.True(t, written)
		assert.Equal(t, 20*time.Minute, mr.TTL("basket:alice"), "price changes do not extend the basket's life")
	})

	t.Run("Absent Basket Is Not Written", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, nil)
		_, err := mr.SAdd("basket:product:1", "ghost")
		require.NoError(t, err)
		called := false

		written, err := repo.PatchBasket(ctx, 1, "ghost", func(cart *models.ShoppingCart) bool {
			called = true
			return true
		})

		require.NoError(t, err)
		assert.False(t, written)
		assert.False(t, called)
		assert.False(t, mr.Exists("basket:ghost"))
		assert.False(t, mr.Exists("basket:product:1"))
	})

	t.Run("Failure - Malformed Basket", func(t *testing.T) {
		repo, mr := setupBasketRepoTest(t, nil)
		require.NoError(t, mr.Set("basket:broken", "not-json"))

		written, err := repo.PatchBasket(ctx, 1, "broken", func(cart *models.ShoppingCart) bool { return true })

		require.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrMalformedBasket)
		assert.False(t, written)
	})

	t.Run("Concurrent Patches Are Serialized", func(t *testing.T) {
		repo, _ := setupBasketRepoTest(t, nil)
		require.NoError(t, repo.SaveBasket(ctx, sampleCart("alice")))

		const writers = 20
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.PatchBasket(ctx, 1, "alice", func(cart *models.ShoppingCart) bool {
					cart.Items[0].Quantity++
					return true
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stored, _, err := repo.GetBasket(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 2+writers, stored.Items[0].Quantity, "no increment may be lost")
	})
}
