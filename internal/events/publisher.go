package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/api/middleware"
	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 3 * time.Second

// channelPublisher is the part of *amqp.Channel the publisher uses.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	ch       channelPublisher
	closer   func() error
	exchange string
	producer string
}

func NewPublisher(conn *amqp.Connection, exchange, producer string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// declared here too so publishing never depends on a consumer having started first
	if err := declareEventsExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{ch: ch, closer: ch.Close, exchange: exchange, producer: producer}, nil
}

func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// PublishProductPriceChanged takes the correlation id from ctx when there is one.
func (p *Publisher) PublishProductPriceChanged(ctx context.Context, product *models.Product) error {
	ev := NewProductPriceChangedEvent(product, p.producer, middleware.CorrelationIDFromContext(ctx))

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ProductPriceChangedEventName, err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     ev.EventID,
		CorrelationId: ev.CorrelationID,
		Type:          ev.EventName,
		Timestamp:     ev.OccurredAt,
		AppId:         p.producer,
		Body:          body,
	}

	return p.publish(ctx, ProductPriceChangedRoutingKey, msg)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.ch.PublishWithContext(pubCtx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}
