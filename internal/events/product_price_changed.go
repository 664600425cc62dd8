package events

import (
	"strconv"
	"time"

	"github.com/aaravmahajanofficial/ecommerce-basket/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const productPriceChangedSchema = "ecommerce/product.price-changed/v1"

// ProductPriceChanged carries the full product snapshot; consumers only rely on ProductID and Price.
// Price is nullable so a missing or null price is told apart from a price of zero.
type ProductPriceChanged struct {
	ProductID   int64               `json:"productId"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.NullDecimal `json:"price"`
	ImageURL    string              `json:"imageUrl"`
}

type ProductPriceChangedEvent = EventEnvelope[ProductPriceChanged]

// NewProductPriceChangedEvent stamps a fresh event id and a UTC timestamp on every call.
func NewProductPriceChangedEvent(product *models.Product, producer, correlationID string) ProductPriceChangedEvent {
	return ProductPriceChangedEvent{
		EventName:     ProductPriceChangedEventName,
		EventVersion:  ProductPriceChangedEventVersion,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		Producer:      producer,
		PartitionKey:  strconv.FormatInt(product.ID, 10),
		OccurredAt:    time.Now().UTC(),
		Schema:        productPriceChangedSchema,
		Payload: ProductPriceChanged{
			ProductID:   product.ID,
			Name:        product.Name,
			Description: product.Description,
			Price:       decimal.NewNullDecimal(product.Price),
			ImageURL:    product.ImageURL,
		},
	}
}
