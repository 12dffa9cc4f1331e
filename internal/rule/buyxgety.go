package rule

import (
	"sort"

	"github.com/noah-isme/pricing-api/internal/cart"
	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/condition"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

// BuyXGetY grants discounted or free receive-side units once the buy-side
// quantity threshold is met. With a FreeProduct configured the grant becomes
// an extra cart item; otherwise it is taken from the cheapest matching lines
// already in the cart.
type BuyXGetY struct {
	Config
}

// PossibleAdjustment counts the buy-side quantity and resolves the receive
// lines. Repeat multiplies the grant per full buy threshold.
func (r *BuyXGetY) PossibleAdjustment(c *cart.Cart) (*Adjustment, error) {
	if !r.cartEligible(c) {
		return nil, nil
	}
	if r.BuyQuantity <= 0 || r.ReceiveQuantity <= 0 {
		return nil, nil
	}

	bought := 0
	for _, item := range c.Items() {
		if r.eligible(item) {
			bought += item.Quantity()
		}
	}
	if bought < r.BuyQuantity {
		return nil, nil
	}

	times := 1
	if r.Repeat {
		times = bought / r.BuyQuantity
	}
	grant := times * r.ReceiveQuantity
	if grant <= 0 {
		return nil, nil
	}

	if r.FreeProduct != nil {
		return &Adjustment{GrantQuantity: grant}, nil
	}

	var receive []*cart.Item
	for _, item := range c.Items() {
		if condition.MatchesAll(item.Product(), r.ReceiveFilters, r.MatchType) {
			receive = append(receive, item)
		}
	}
	if len(receive) == 0 {
		return nil, nil
	}
	sort.SliceStable(receive, func(i, j int) bool {
		return receive[i].Price() < receive[j].Price()
	})
	return &Adjustment{Items: receive, GrantQuantity: grant}, nil
}

// Apply realises the grant. A free product is added as an extra item; cart
// grants spread each granted unit's discount over its line so the unit price
// stays uniform.
func (r *BuyXGetY) Apply(c *cart.Cart, adj *Adjustment) error {
	if adj == nil {
		return nil
	}
	if r.FreeProduct != nil {
		item := c.AddExtraItem(*r.FreeProduct, adj.GrantQuantity)
		item.AddModifier(cart.Modifier{
			RuleID:          r.ID,
			RuleName:        r.Name,
			ItemKey:         item.Key(),
			ModifyQuantity:  adj.GrantQuantity,
			DiscountPerUnit: r.FreeProduct.Price,
		})
		return nil
	}

	remaining := adj.GrantQuantity
	for _, item := range adj.Items {
		if remaining <= 0 {
			break
		}
		if !item.CanModify() {
			continue
		}
		if len(item.Modifiers()) > 0 && !r.Combinable {
			continue
		}
		units := item.Quantity()
		if units > remaining {
			units = remaining
		}
		perUnit, err := r.discountPerUnit(item)
		if err != nil {
			return err
		}
		if perUnit > 0 {
			lineDiscount := perUnit * pricing.Money(units)
			item.SetPrice(item.Price() - lineDiscount/pricing.Money(item.Quantity()))
			item.AddModifier(cart.Modifier{
				RuleID:          r.ID,
				RuleName:        r.Name,
				ItemKey:         item.Key(),
				ModifyQuantity:  units,
				DiscountPerUnit: perUnit,
			})
		}
		remaining -= units
	}
	return nil
}

func (r *BuyXGetY) discountPerUnit(item *cart.Item) (pricing.Money, error) {
	amount, err := pricing.AdjustmentAmount(item.Price(), r.PricingType, r.PricingValue, r.MaximumAdjustment)
	if err != nil {
		return 0, err
	}
	return discountFromAmount(r.PricingType, item.Price(), amount), nil
}

// Encouragement reports how many buy-side units are missing to unlock the
// grant. It stays quiet once the threshold is met.
func (r *BuyXGetY) Encouragement(c *cart.Cart, product *catalog.Product) *Encouragement {
	if r.BuyQuantity <= 0 {
		return nil
	}
	bought := 0
	var firstKey string
	for _, item := range c.Items() {
		if product != nil {
			p := item.Product()
			if p.ID != product.ID && p.ParentID != product.ID {
				continue
			}
		}
		if !r.eligible(item) {
			continue
		}
		if firstKey == "" {
			firstKey = item.Key()
		}
		bought += item.Quantity()
	}
	if firstKey == "" || bought >= r.BuyQuantity {
		return nil
	}
	return &Encouragement{
		RuleID:          r.ID,
		RuleName:        r.Name,
		ItemKey:         firstKey,
		MissingQuantity: r.BuyQuantity - bought,
	}
}
