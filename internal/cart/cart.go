// Package cart models the mutable working copy of a shopper's cart that a
// calculation pass operates on.
package cart

import (
	"github.com/google/uuid"

	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

// Cart holds the ordered items of one calculation pass, including extra
// (granted) items created by rules.
type Cart struct {
	items []*Item
}

// New constructs an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add appends an item, preserving insertion order.
func (c *Cart) Add(item *Item) {
	if item == nil {
		return
	}
	c.items = append(c.items, item)
}

// AddExtraItem creates a granted item for the product. The working price is
// zero; the initial price keeps the catalog price so the strikethrough value
// survives into the quote.
func (c *Cart) AddExtraItem(product catalog.Product, quantity int) *Item {
	item := &Item{
		key:          "extra:" + uuid.NewString(),
		product:      product,
		quantity:     quantity,
		price:        0,
		initialPrice: product.Price,
		extra:        true,
	}
	c.items = append(c.items, item)
	return item
}

// Items returns the regular (non-extra) items in insertion order.
func (c *Cart) Items() []*Item {
	out := make([]*Item, 0, len(c.items))
	for _, item := range c.items {
		if !item.extra {
			out = append(out, item)
		}
	}
	return out
}

// ExtraItems returns the granted items in insertion order.
func (c *Cart) ExtraItems() []*Item {
	var out []*Item
	for _, item := range c.items {
		if item.extra {
			out = append(out, item)
		}
	}
	return out
}

// Item returns the item with the given key, or nil.
func (c *Cart) Item(key string) *Item {
	for _, item := range c.items {
		if item.key == key {
			return item
		}
	}
	return nil
}

// Subtotal sums quantity times the working price over regular items.
func (c *Cart) Subtotal() pricing.Money {
	var total pricing.Money
	for _, item := range c.items {
		if item.extra {
			continue
		}
		total += pricing.Money(item.quantity) * item.price
	}
	return total
}

// OriginTotal sums quantity times the initial price over regular items.
func (c *Cart) OriginTotal() pricing.Money {
	var total pricing.Money
	for _, item := range c.items {
		if item.extra {
			continue
		}
		total += pricing.Money(item.quantity) * item.initialPrice
	}
	return total
}

// Quantity returns the total unit count of regular items.
func (c *Cart) Quantity() int {
	var n int
	for _, item := range c.items {
		if !item.extra {
			n += item.quantity
		}
	}
	return n
}

// ResetModifiers clears audit records and stamped tier quantities on every
// item so a fresh pass starts clean.
func (c *Cart) ResetModifiers() {
	for _, item := range c.items {
		item.ClearModifiers()
		item.ResetBulkQuantity()
	}
}

// Rollback restores every item's working price to its initial price.
func (c *Cart) Rollback() {
	for _, item := range c.items {
		item.Rollback()
	}
}
