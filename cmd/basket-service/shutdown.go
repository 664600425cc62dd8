package main

import (
	"context"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/events"
)

// awaitShutdown blocks until ctx is cancelled or the consumer goroutine exits
// on its own. Only the latter yields an error.
func awaitShutdown(ctx context.Context, consumerDone <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-consumerDone:
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = events.ErrDeliveriesClosed
		}
		return err
	}
}
