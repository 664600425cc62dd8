package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/api/middleware"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/metrics"
	"github.com/shopspring/decimal"
)

// ErrMalformedMessage marks a delivery that can never succeed, however often it is retried.
var ErrMalformedMessage = errors.New("malformed message")

// HandlerFunc processes one message body. A returned error rejects the delivery.
type HandlerFunc func(ctx context.Context, body []byte) error

type PriceChangeApplier interface {
	ApplyPriceChange(ctx context.Context, productID int64, price decimal.Decimal) (int, error)
}

// PriceChangedHandler applies each event once, in delivery order. Redelivered
// or reordered events are applied as they come.
func PriceChangedHandler(svc PriceChangeApplier) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		logger := middleware.LoggerFromContext(ctx)

		var ev ProductPriceChangedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			metrics.PriceChangeEvent("rejected")
			return fmt.Errorf("%w: unmarshal %s: %w", ErrMalformedMessage, ProductPriceChangedEventName, err)
		}

		if err := ev.Validate(ProductPriceChangedEventName, ProductPriceChangedEventVersion); err != nil {
			metrics.PriceChangeEvent("rejected")
			return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
		}

		if ev.Payload.ProductID <= 0 {
			metrics.PriceChangeEvent("rejected")
			return fmt.Errorf("%w: invalid productId %d", ErrMalformedMessage, ev.Payload.ProductID)
		}

		if !ev.Payload.Price.Valid {
			metrics.PriceChangeEvent("rejected")
			return fmt.Errorf("%w: missing price for product %d", ErrMalformedMessage, ev.Payload.ProductID)
		}

		price := ev.Payload.Price.Decimal
		if price.IsNegative() {
			metrics.PriceChangeEvent("rejected")
			return fmt.Errorf("%w: negative price %s", ErrMalformedMessage, price)
		}

		updated, err := svc.ApplyPriceChange(ctx, ev.Payload.ProductID, price)
		if err != nil {
			metrics.PriceChangeEvent("failed")
			return fmt.Errorf("apply price change for product %d: %w", ev.Payload.ProductID, err)
		}

		metrics.PriceChangeEvent("ok")
		logger.Info("Price change event handled",
			slog.Int64("productId", ev.Payload.ProductID),
			slog.String("price", price.String()),
			slog.Int("baskets", updated))

		return nil
	}
}
