package rule

import (
	"sort"

	"github.com/noah-isme/pricing-api/internal/cart"
	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

// BulkPricing discounts items whose pooled purchased quantity crosses a
// quantity tier.
type BulkPricing struct {
	Config
}

type bulkGroup struct {
	quantity int
	items    []*cart.Item
}

// PossibleAdjustment pools eligible lines, stamps the pooled quantity onto
// each item, and returns the lines whose pool matched a tier. Grouping is by
// resolved product (parent for variations) when GroupVariations is set,
// otherwise by cart line.
func (r *BulkPricing) PossibleAdjustment(c *cart.Cart) (*Adjustment, error) {
	if !r.cartEligible(c) {
		return nil, nil
	}

	groups := map[string]*bulkGroup{}
	var order []string
	for _, item := range c.Items() {
		if !r.eligible(item) {
			continue
		}
		key := item.Key()
		if r.GroupVariations {
			key = item.Product().GroupID().String()
		}
		g := groups[key]
		if g == nil {
			g = &bulkGroup{}
			groups[key] = g
			order = append(order, key)
		}
		g.quantity += item.Quantity()
		g.items = append(g.items, item)
	}

	var discountable []*cart.Item
	if r.AllTogether {
		total := 0
		for _, key := range order {
			total += groups[key].quantity
		}
		if pricing.MatchRange(r.Ranges, total) != nil {
			for _, key := range order {
				for _, item := range groups[key].items {
					item.SetBulkQuantity(total)
				}
				discountable = append(discountable, groups[key].items...)
			}
		}
	} else {
		for _, key := range order {
			g := groups[key]
			if pricing.MatchRange(r.Ranges, g.quantity) == nil {
				continue
			}
			for _, item := range g.items {
				item.SetBulkQuantity(g.quantity)
			}
			discountable = append(discountable, g.items...)
		}
	}

	if len(discountable) == 0 {
		return nil, nil
	}
	return &Adjustment{Items: discountable}, nil
}

// Apply discounts every adjustable item in the adjustment. Items already
// touched by another rule are skipped unless the rule is combinable.
func (r *BulkPricing) Apply(c *cart.Cart, adj *Adjustment) error {
	if adj == nil {
		return nil
	}
	for _, item := range adj.Items {
		if !item.CanModify() {
			continue
		}
		if len(item.Modifiers()) > 0 && !r.Combinable {
			continue
		}
		if err := r.DiscountItem(item); err != nil {
			return err
		}
	}
	return nil
}

// rangeFor resolves the tier pricing for a stamped quantity. A quantity below
// every tier degrades to a zero fixed discount.
func (r *BulkPricing) rangeFor(qty int) (pricing.Type, int64, pricing.Money) {
	m := pricing.MatchRange(r.Ranges, qty)
	if m == nil {
		return pricing.FixedDiscount, 0, 0
	}
	return m.PricingType, m.PricingValue, m.MaximumAdjustment
}

// AdjustmentAmount runs the pricing helper against the item's working price
// using the tier its stamped quantity falls into.
func (r *BulkPricing) AdjustmentAmount(item *cart.Item) (pricing.Money, error) {
	t, value, max := r.rangeFor(item.BulkQuantity())
	return pricing.AdjustmentAmount(item.Price(), t, value, max)
}

// DiscountPerUnit returns the money taken off one unit of the item.
func (r *BulkPricing) DiscountPerUnit(item *cart.Item) (pricing.Money, error) {
	t, _, _ := r.rangeFor(item.BulkQuantity())
	amount, err := r.AdjustmentAmount(item)
	if err != nil {
		return 0, err
	}
	return discountFromAmount(t, item.Price(), amount), nil
}

// DiscountValuePerUnit mirrors DiscountPerUnit but reports percentage tiers
// by their configured basis-point value instead of the computed money.
func (r *BulkPricing) DiscountValuePerUnit(item *cart.Item) (int64, error) {
	t, value, _ := r.rangeFor(item.BulkQuantity())
	if t.IsPercentage() {
		return value, nil
	}
	d, err := r.DiscountPerUnit(item)
	return int64(d), err
}

// DiscountItem lowers the item's working price and appends the audit record.
func (r *BulkPricing) DiscountItem(item *cart.Item) error {
	d, err := r.DiscountPerUnit(item)
	if err != nil {
		return err
	}
	item.SetPrice(item.Price() - d)
	item.AddModifier(cart.Modifier{
		RuleID:          r.ID,
		RuleName:        r.Name,
		ItemKey:         item.Key(),
		ModifyQuantity:  item.BulkQuantity(),
		DiscountPerUnit: d,
	})
	return nil
}

// Encouragement finds the eligible line closest to its next tier. Ties keep
// cart order; the optional product narrows the search to lines of that
// product or its variations.
func (r *BulkPricing) Encouragement(c *cart.Cart, product *catalog.Product) *Encouragement {
	type candidate struct {
		item    *cart.Item
		missing int
	}
	var candidates []candidate
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
		next := pricing.NextRange(r.Ranges, item.BulkQuantity())
		if next == nil {
			continue
		}
		missing := next.MinQuantity - item.BulkQuantity()
		if missing <= 0 {
			continue
		}
		candidates = append(candidates, candidate{item: item, missing: missing})
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].missing < candidates[j].missing
	})
	enc := &Encouragement{
		RuleID:          r.ID,
		RuleName:        r.Name,
		ItemKey:         candidates[0].item.Key(),
		MissingQuantity: candidates[0].missing,
	}
	if r.MinSubtotal > 0 && c.Subtotal() < r.MinSubtotal {
		enc.MissingSubtotal = r.MinSubtotal - c.Subtotal()
	}
	return enc
}

// MinDiscount previews the smallest per-unit discount any tier gives the
// product, using a synthetic single-unit item per tier. Without a tier that
// starts at one unit the honest minimum is no discount at all.
func (r *BulkPricing) MinDiscount(p catalog.Product) DiscountPreview {
	var (
		best    DiscountPreview
		bestSet bool
		min     pricing.Money
	)
	for i := range r.Ranges {
		rg := &r.Ranges[i]
		d, err := r.previewDiscount(p, rg)
		if err != nil {
			continue
		}
		if !bestSet || d < min {
			min = d
			best = DiscountPreview{PricingType: rg.PricingType, PricingValue: rg.PricingValue, Maximum: rg.MaximumAdjustment}
			bestSet = true
		}
	}
	if !pricing.HasUnitRange(r.Ranges) {
		maximum := best.Maximum
		best = DiscountPreview{PricingType: pricing.FixedDiscount, PricingValue: 0, Maximum: maximum}
	}
	return best
}

// MaxDiscount previews the largest per-unit discount any tier gives the
// product.
func (r *BulkPricing) MaxDiscount(p catalog.Product) DiscountPreview {
	var (
		best    DiscountPreview
		bestSet bool
		max     pricing.Money
	)
	for i := range r.Ranges {
		rg := &r.Ranges[i]
		d, err := r.previewDiscount(p, rg)
		if err != nil {
			continue
		}
		if !bestSet || d > max {
			max = d
			best = DiscountPreview{PricingType: rg.PricingType, PricingValue: rg.PricingValue, Maximum: rg.MaximumAdjustment}
			bestSet = true
		}
	}
	return best
}

func (r *BulkPricing) previewDiscount(p catalog.Product, rg *pricing.Range) (pricing.Money, error) {
	item := cart.NewItem("preview:"+p.ID.String(), p, 1, p.Price)
	item.SetBulkQuantity(rg.MinQuantity)
	return r.DiscountPerUnit(item)
}
