package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/api/middleware"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed reports that the broker closed the delivery channel
// while the consumer was still meant to be running.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

type Consumer struct {
	conn    *amqp.Connection
	cfg     *config.RabbitMQ
	queue   string
	key     string
	handler HandlerFunc
}

func NewConsumer(conn *amqp.Connection, cfg *config.RabbitMQ, queue, routingKey string, handler HandlerFunc) *Consumer {
	return &Consumer{conn: conn, cfg: cfg, queue: queue, key: routingKey, handler: handler}
}

func (c *Consumer) queueArgs() amqp.Table {
	if c.cfg.DeadLetterExchange == "" {
		return nil
	}
	return amqp.Table{"x-dead-letter-exchange": c.cfg.DeadLetterExchange}
}

// Start declares the topology and consumes in a background goroutine until
// ctx is cancelled or the broker closes the delivery channel. The returned
// channel yields the reason the goroutine stopped, nil after cancellation,
// and is then closed.
func (c *Consumer) Start(ctx context.Context) (<-chan error, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := declareEventsExchange(ch, c.cfg.Exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, c.queueArgs()); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", c.queue, err)
	}

	if err := ch.QueueBind(c.queue, c.key, c.cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind queue %s: %w", c.queue, err)
	}

	msgs, err := ch.Consume(c.queue, BasketServiceName, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	done := make(chan error, 1)

	go func() {
		defer close(done)
		defer ch.Close()

		done <- c.run(ctx, msgs)
	}()

	return done, nil
}

// run drains msgs until ctx is cancelled or msgs is closed. A closed delivery
// channel means the broker dropped the channel or connection; nothing will
// be delivered on it again, so it is reported as ErrDeliveriesClosed.
func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	logger := slog.Default().With(slog.String("queue", c.queue))
	logger.Info("Consumer started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping consumer")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				logger.Error("Delivery channel closed")
				return ErrDeliveriesClosed
			}
			c.deliver(ctx, msg)
		}
	}
}

// deliver acks on success. Any handler error is a terminal rejection; the
// broker dead-letters it only when the queue has a dead-letter exchange.
func (c *Consumer) deliver(ctx context.Context, msg amqp.Delivery) {
	logger := slog.Default().With(
		slog.String("event_id", msg.MessageId),
		slog.String("correlation_id", msg.CorrelationId),
		slog.String("routing_key", msg.RoutingKey),
	)

	msgCtx := middleware.WithCorrelationID(ctx, msg.CorrelationId)
	msgCtx = middleware.WithLogger(msgCtx, logger)

	if err := c.handler(msgCtx, msg.Body); err != nil {
		if errors.Is(err, ErrMalformedMessage) {
			logger.Warn("Rejecting malformed message", slog.String("error", err.Error()))
		} else {
			logger.Error("Message handling failed", slog.String("error", err.Error()))
		}

		if nackErr := msg.Nack(false, false); nackErr != nil {
			logger.Error("Failed to nack message", slog.String("error", nackErr.Error()))
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		logger.Error("Failed to ack message", slog.String("error", ackErr.Error()))
	}
}
