// Package rule implements the merchant-authored pricing rules: bulk quantity
// tiers, buy-x-get-y grants, and whole-cart discounts.
package rule

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/pricing-api/internal/cart"
	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/condition"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

// Kind identifies a rule implementation.
type Kind string

const (
	KindBulkPricing  Kind = "bulk_pricing"
	KindBuyXGetY     Kind = "buy_x_get_y"
	KindCartDiscount Kind = "cart_discount"
)

// ErrUnknownKind reports a stored rule whose kind has no implementation.
var ErrUnknownKind = errors.New("rule: unknown rule kind")

// Config is the merchant-authored configuration shared by all rule kinds.
// Not every field applies to every kind; loaders populate what the kind uses.
type Config struct {
	ID       uuid.UUID
	Name     string
	Kind     Kind
	Priority int
	Enabled  bool

	MatchType condition.MatchType
	Filters   []condition.Filter
	// ReceiveFilters select the items a buy-x-get-y rule grants against.
	ReceiveFilters []condition.Filter

	Ranges            []pricing.Range
	PricingType       pricing.Type
	PricingValue      int64
	MaximumAdjustment pricing.Money

	// GroupVariations pools variation quantities under their parent product;
	// when false each cart line counts on its own.
	GroupVariations bool
	// AllTogether pools every eligible line into one quantity before the
	// tier lookup.
	AllTogether bool
	// Combinable lets the rule stack on items another rule already touched.
	Combinable bool

	MinSubtotal pricing.Money
	UseLimit    int
	UseCount    int

	BuyQuantity     int
	ReceiveQuantity int
	Repeat          bool
	FreeProduct     *catalog.Product
}

// Meta exposes the configuration through the Rule interface.
func (c Config) Meta() Config { return c }

// Active reports whether the rule may participate in a pass: enabled and not
// past its use limit.
func (c Config) Active() bool {
	if !c.Enabled {
		return false
	}
	return c.UseLimit <= 0 || c.UseCount < c.UseLimit
}

// eligible reports whether the rule's buy-side filters accept the item.
func (c Config) eligible(item *cart.Item) bool {
	return condition.MatchesAll(item.Product(), c.Filters, c.MatchType)
}

// cartEligible checks cart-level conditions (currently minimum subtotal).
func (c Config) cartEligible(crt *cart.Cart) bool {
	return c.MinSubtotal <= 0 || crt.Subtotal() >= c.MinSubtotal
}

// Adjustment is a rule's prospective contribution to a cart, computed before
// any mutation so the orchestrator can veto or apply it atomically.
type Adjustment struct {
	// Items are the cart lines the rule would modify, in application order.
	Items []*cart.Item
	// GrantQuantity is the number of units a buy-x-get-y rule grants.
	GrantQuantity int
	// CartAmount is the whole-cart discount a cart rule contributes.
	CartAmount pricing.Money
}

// DiscountPreview describes a discount a rule can give a product without a
// live cart, for catalog display.
type DiscountPreview struct {
	PricingType  pricing.Type  `json:"pricing_type"`
	PricingValue int64         `json:"pricing_value"`
	Maximum      pricing.Money `json:"maximum_adjustment"`
}

// Encouragement tells the shopper what is missing to unlock the next tier.
type Encouragement struct {
	RuleID          uuid.UUID     `json:"rule_id"`
	RuleName        string        `json:"rule_name"`
	ItemKey         string        `json:"item_key,omitempty"`
	MissingQuantity int           `json:"missing_quantity,omitempty"`
	MissingSubtotal pricing.Money `json:"missing_subtotal,omitempty"`
}

// Rule is the capability set shared by all rule kinds. PossibleAdjustment
// returns nil when the rule has nothing to contribute.
type Rule interface {
	Meta() Config
	PossibleAdjustment(c *cart.Cart) (*Adjustment, error)
	Apply(c *cart.Cart, adj *Adjustment) error
	Encouragement(c *cart.Cart, product *catalog.Product) *Encouragement
}

// DiscountPreviewer is implemented by rules able to advertise catalog-level
// min/max discounts.
type DiscountPreviewer interface {
	MinDiscount(p catalog.Product) DiscountPreview
	MaxDiscount(p catalog.Product) DiscountPreview
}

// New builds the concrete rule for the configured kind.
func New(cfg Config) (Rule, error) {
	switch cfg.Kind {
	case KindBulkPricing:
		return &BulkPricing{Config: cfg}, nil
	case KindBuyXGetY:
		return &BuyXGetY{Config: cfg}, nil
	case KindCartDiscount:
		return &CartDiscount{Config: cfg}, nil
	}
	return nil, fmt.Errorf("%q: %w", cfg.Kind, ErrUnknownKind)
}

// ProductStage reports whether the rule runs in the item-pricing stage (true)
// or the cart-discount stage (false).
func ProductStage(r Rule) bool {
	return r.Meta().Kind != KindCartDiscount
}

// discountFromAmount turns a pricing helper result into money taken off one
// unit. Flat and percentage-discount amounts are remaining prices, so the
// discount is re-derived by subtraction; other types cap the amount at the
// unit price.
func discountFromAmount(t pricing.Type, price, amount pricing.Money) pricing.Money {
	if t.IsFlat() || t == pricing.PercentageDiscount {
		d := price - amount
		if d < 0 {
			d = 0
		}
		return d
	}
	if amount > price {
		return price
	}
	return amount
}
