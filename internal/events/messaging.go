package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultEventsExchange           = "ecommerce.events"
	ProductPriceChangedRoutingKey   = "product.price-changed.v1"
	ProductPriceChangedEventName    = "ProductPriceChanged"
	ProductPriceChangedEventVersion = 1

	BasketServiceName  = "basket-service"
	CatalogServiceName = "catalog-service"
)

func serviceQueue(serviceName, routingKey string) string {
	return serviceName + "." + routingKey
}

// BasketPriceChangedQueue is the durable queue the basket service consumes price changes from.
func BasketPriceChangedQueue() string {
	return serviceQueue(BasketServiceName, ProductPriceChangedRoutingKey)
}

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

func declareEventsExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
