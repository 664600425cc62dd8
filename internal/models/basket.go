package models

import "github.com/shopspring/decimal"

// ShoppingCartItem holds a snapshot of the catalog price and name taken at the
// last synchronization, not a live link to the product.
type ShoppingCartItem struct {
	ProductID   int64           `json:"productId" validate:"required,gt=0"`
	Color       string          `json:"color"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	Price       decimal.Decimal `json:"price"`
	ProductName string          `json:"productName"`
}

// ShoppingCart is stored as one cache entry keyed by UserName. An empty Items
// slice is a persisted, explicitly empty basket.
type ShoppingCart struct {
	UserName string             `json:"userName" validate:"required"`
	Items    []ShoppingCartItem `json:"items" validate:"dive"`
}

func NewShoppingCart(userName string) *ShoppingCart {
	return &ShoppingCart{UserName: userName, Items: []ShoppingCartItem{}}
}

func (c *ShoppingCart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Clone returns a deep copy so callers can refresh items without touching the input.
func (c *ShoppingCart) Clone() *ShoppingCart {
	items := make([]ShoppingCartItem, len(c.Items))
	copy(items, c.Items)
	return &ShoppingCart{UserName: c.UserName, Items: items}
}

// ProductIDs returns the distinct product ids in the cart, in first-seen order.
func (c *ShoppingCart) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.Items))
	ids := make([]int64, 0, len(c.Items))
	for _, item := range c.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// SetPrice overwrites the price of every item for productID and reports how
// many items changed.
func (c *ShoppingCart) SetPrice(productID int64, price decimal.Decimal) int {
	updated := 0
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Price = price
			updated++
		}
	}
	return updated
}

// UpdateBasketRequest is the client's full replacement basket. Prices and
// names it carries are ignored and refreshed from the catalog.
type UpdateBasketRequest struct {
	UserName string             `json:"userName" validate:"required,max=256"`
	Items    []ShoppingCartItem `json:"items" validate:"dive"`
}

func (r *UpdateBasketRequest) Cart() *ShoppingCart {
	items := make([]ShoppingCartItem, len(r.Items))
	copy(items, r.Items)
	return &ShoppingCart{UserName: r.UserName, Items: items}
}

type BasketResponse struct {
	UserName   string             `json:"userName"`
	Items      []ShoppingCartItem `json:"items"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
}

func NewBasketResponse(cart *ShoppingCart) *BasketResponse {
	items := cart.Items
	if items == nil {
		items = []ShoppingCartItem{}
	}
	return &BasketResponse{UserName: cart.UserName, Items: items, TotalPrice: cart.TotalPrice()}
}
