package rule

import (
	"github.com/noah-isme/pricing-api/internal/cart"
	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

// CartDiscount contributes a whole-cart adjustment computed against the
// subtotal the item-pricing stage produced. It never mutates items; the
// orchestrator turns the contribution into a coupon line.
type CartDiscount struct {
	Config
}

// PossibleAdjustment computes the cart-level discount amount.
func (r *CartDiscount) PossibleAdjustment(c *cart.Cart) (*Adjustment, error) {
	subtotal := c.Subtotal()
	if subtotal <= 0 || !r.cartEligible(c) {
		return nil, nil
	}

	kept, err := pricing.AdjustmentAmount(subtotal, r.PricingType, r.PricingValue, r.MaximumAdjustment)
	if err != nil {
		return nil, err
	}
	var amount pricing.Money
	if r.PricingType == pricing.FlatFee {
		amount = kept
	} else {
		amount = subtotal - kept
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount <= 0 {
		return nil, nil
	}
	return &Adjustment{CartAmount: amount}, nil
}

// Apply is a no-op: cart discounts surface as coupons, not item mutations.
func (r *CartDiscount) Apply(c *cart.Cart, adj *Adjustment) error {
	return nil
}

// Encouragement reports the missing spend when a minimum subtotal gates the
// discount.
func (r *CartDiscount) Encouragement(c *cart.Cart, _ *catalog.Product) *Encouragement {
	if r.MinSubtotal <= 0 {
		return nil
	}
	subtotal := c.Subtotal()
	if subtotal >= r.MinSubtotal {
		return nil
	}
	return &Encouragement{
		RuleID:          r.ID,
		RuleName:        r.Name,
		MissingSubtotal: r.MinSubtotal - subtotal,
	}
}
