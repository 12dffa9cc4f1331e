package cart

import (
	"github.com/google/uuid"

	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

// Modifier records one rule's contribution to an item's price during a pass.
type Modifier struct {
	RuleID          uuid.UUID     `json:"rule_id"`
	RuleName        string        `json:"rule_name"`
	ItemKey         string        `json:"item_key"`
	ModifyQuantity  int           `json:"modify_quantity"`
	DiscountPerUnit pricing.Money `json:"discount_per_unit"`
}

// Item is a single cart line inside a calculation pass. The price is the
// working value rules mutate; the initial price is kept for rollback and for
// showing the pre-discount amount.
type Item struct {
	key          string
	product      catalog.Product
	quantity     int
	price        pricing.Money
	initialPrice pricing.Money
	modifiers    []Modifier
	extra        bool
	locked       bool
	bulkQuantity int
}

// NewItem constructs a regular cart item with the given working price.
func NewItem(key string, product catalog.Product, quantity int, unitPrice pricing.Money) *Item {
	return &Item{
		key:          key,
		product:      product,
		quantity:     quantity,
		price:        unitPrice,
		initialPrice: unitPrice,
	}
}

func (i *Item) Key() string              { return i.key }
func (i *Item) Product() catalog.Product { return i.product }
func (i *Item) Quantity() int            { return i.quantity }
func (i *Item) IsExtra() bool            { return i.extra }

// Price returns the current working unit price.
func (i *Item) Price() pricing.Money { return i.price }

// InitialPrice returns the unit price the item entered the pass with.
func (i *Item) InitialPrice() pricing.Money { return i.initialPrice }

// SetPrice replaces the working unit price.
func (i *Item) SetPrice(p pricing.Money) {
	if p < 0 {
		p = 0
	}
	i.price = p
}

// Rollback restores the working price to the initial price.
func (i *Item) Rollback() { i.price = i.initialPrice }

// Lock prevents further rules from modifying the item.
func (i *Item) Lock() { i.locked = true }

// CanModify reports whether rules may still change the item's price.
func (i *Item) CanModify() bool { return !i.locked }

// Modifiers returns the audit records appended during the pass.
func (i *Item) Modifiers() []Modifier { return i.modifiers }

// AddModifier appends an audit record.
func (i *Item) AddModifier(m Modifier) { i.modifiers = append(i.modifiers, m) }

// ClearModifiers drops all audit records.
func (i *Item) ClearModifiers() { i.modifiers = nil }

// BulkQuantity returns the tier quantity stamped onto the item by a grouping
// step, falling back to the item's own quantity when nothing was stamped.
func (i *Item) BulkQuantity() int {
	if i.bulkQuantity > 0 {
		return i.bulkQuantity
	}
	return i.quantity
}

// SetBulkQuantity stamps the pooled tier quantity for the current pass.
func (i *Item) SetBulkQuantity(q int) { i.bulkQuantity = q }

// ResetBulkQuantity clears the stamped tier quantity.
func (i *Item) ResetBulkQuantity() { i.bulkQuantity = 0 }
