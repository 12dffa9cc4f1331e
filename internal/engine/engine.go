// Package engine orchestrates a pricing pass: item-pricing rules first, then
// cart-discount rules, each stage in priority order.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/cart"
	"github.com/noah-isme/pricing-api/internal/obs"
	"github.com/noah-isme/pricing-api/internal/pricing"
	"github.com/noah-isme/pricing-api/internal/rule"
)

// CombinedCouponCode names the synthetic coupon used when cart discounts are
// merged into a single line.
const CombinedCouponCode = "combined_discount"

// Calculation owns the working cart for one trigger. The ran flag guards
// against the same calculation being executed twice; a second Run returns the
// first result unchanged.
type Calculation struct {
	cart   *cart.Cart
	ran    bool
	result *Result
}

// NewCalculation wraps a cart for a single pass.
func NewCalculation(c *cart.Cart) *Calculation {
	return &Calculation{cart: c}
}

// Cart exposes the working cart.
func (c *Calculation) Cart() *cart.Cart { return c.cart }

// Coupon is a cart-level discount line in the quote.
type Coupon struct {
	Code    string        `json:"code"`
	Name    string        `json:"name"`
	Amount  pricing.Money `json:"amount"`
	RuleIDs []uuid.UUID   `json:"rule_ids"`
}

// QuoteItem is the published view of a cart line after the pass.
type QuoteItem struct {
	Key               string          `json:"key"`
	ProductID         uuid.UUID       `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitPrice         pricing.Money   `json:"unit_price"`
	OriginalUnitPrice pricing.Money   `json:"original_unit_price"`
	Modifiers         []cart.Modifier `json:"modifiers,omitempty"`
}

// Result is the outcome of one pass.
type Result struct {
	Items       []QuoteItem   `json:"items"`
	ExtraItems  []QuoteItem   `json:"extra_items,omitempty"`
	Coupons     []Coupon      `json:"coupons,omitempty"`
	OriginTotal pricing.Money `json:"origin_total"`
	Subtotal    pricing.Money `json:"subtotal"`
	Discount    pricing.Money `json:"discount"`
	Total       pricing.Money `json:"total"`
}

// AppliedRuleIDs lists every rule that contributed to the result.
func (r *Result) AppliedRuleIDs() []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if id != uuid.Nil && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, item := range r.Items {
		for _, m := range item.Modifiers {
			add(m.RuleID)
		}
	}
	for _, item := range r.ExtraItems {
		for _, m := range item.Modifiers {
			add(m.RuleID)
		}
	}
	for _, coupon := range r.Coupons {
		for _, id := range coupon.RuleIDs {
			add(id)
		}
	}
	return out
}

// Engine runs calculation passes.
type Engine struct {
	Logger zerolog.Logger
	// CombineCartDiscounts merges all cart-discount contributions into one
	// synthetic coupon.
	CombineCartDiscounts bool
}

// Run executes the pass. Rule failures and panics are logged and skipped;
// pricing configuration errors abort the pass.
func (e *Engine) Run(calc *Calculation, rules []rule.Rule) (*Result, error) {
	if calc == nil || calc.cart == nil {
		return nil, errors.New("engine: calculation not configured")
	}
	if calc.ran {
		return calc.result, nil
	}
	calc.ran = true

	c := calc.cart
	c.ResetModifiers()

	itemRules, cartRules := splitStages(rules)

	for _, r := range itemRules {
		if !r.Meta().Active() {
			continue
		}
		if err := e.applyRule(c, r); err != nil {
			if pricing.IsConfigError(err) {
				return nil, fmt.Errorf("rule %q: %w", r.Meta().Name, err)
			}
			e.Logger.Error().Err(err).Str("rule", r.Meta().Name).Msg("item rule skipped")
			countRuleApply(r, "error")
			continue
		}
		countRuleApply(r, "ok")
	}

	var coupons []Coupon
	for _, r := range cartRules {
		if !r.Meta().Active() {
			continue
		}
		adj, err := e.possibleAdjustment(c, r)
		if err != nil {
			if pricing.IsConfigError(err) {
				return nil, fmt.Errorf("rule %q: %w", r.Meta().Name, err)
			}
			e.Logger.Error().Err(err).Str("rule", r.Meta().Name).Msg("cart rule skipped")
			countRuleApply(r, "error")
			continue
		}
		if adj == nil || adj.CartAmount <= 0 {
			continue
		}
		countRuleApply(r, "ok")
		meta := r.Meta()
		coupons = append(coupons, Coupon{
			Code:    meta.ID.String(),
			Name:    meta.Name,
			Amount:  adj.CartAmount,
			RuleIDs: []uuid.UUID{meta.ID},
		})
	}
	if e.CombineCartDiscounts && len(coupons) > 1 {
		coupons = []Coupon{combineCoupons(coupons)}
	}

	calc.result = publish(c, coupons)
	return calc.result, nil
}

func (e *Engine) applyRule(c *cart.Cart, r rule.Rule) error {
	adj, err := e.possibleAdjustment(c, r)
	if err != nil || adj == nil {
		return err
	}
	return e.apply(c, r, adj)
}

func (e *Engine) possibleAdjustment(c *cart.Cart, r rule.Rule) (adj *rule.Adjustment, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("engine: rule panicked: %v", rec)
		}
	}()
	return r.PossibleAdjustment(c)
}

func (e *Engine) apply(c *cart.Cart, r rule.Rule, adj *rule.Adjustment) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("engine: rule panicked: %v", rec)
		}
	}()
	return r.Apply(c, adj)
}

func countRuleApply(r rule.Rule, result string) {
	if obs.RuleApplyTotal != nil {
		obs.RuleApplyTotal.WithLabelValues(string(r.Meta().Kind), result).Inc()
	}
}

// splitStages separates item-pricing rules from cart-discount rules and
// sorts each stage by priority, keeping stored order on ties.
func splitStages(rules []rule.Rule) (items, carts []rule.Rule) {
	for _, r := range rules {
		if rule.ProductStage(r) {
			items = append(items, r)
		} else {
			carts = append(carts, r)
		}
	}
	byPriority := func(rs []rule.Rule) {
		sort.SliceStable(rs, func(i, j int) bool {
			return rs[i].Meta().Priority < rs[j].Meta().Priority
		})
	}
	byPriority(items)
	byPriority(carts)
	return items, carts
}

func combineCoupons(coupons []Coupon) Coupon {
	combined := Coupon{Code: CombinedCouponCode, Name: "Combined discount"}
	for _, c := range coupons {
		combined.Amount += c.Amount
		combined.RuleIDs = append(combined.RuleIDs, c.RuleIDs...)
	}
	return combined
}

func publish(c *cart.Cart, coupons []Coupon) *Result {
	res := &Result{Coupons: coupons}
	for _, item := range c.Items() {
		res.Items = append(res.Items, toQuoteItem(item))
	}
	for _, item := range c.ExtraItems() {
		res.ExtraItems = append(res.ExtraItems, toQuoteItem(item))
	}
	res.OriginTotal = c.OriginTotal()
	res.Subtotal = c.Subtotal()

	var couponTotal pricing.Money
	for _, coupon := range coupons {
		couponTotal += coupon.Amount
	}
	res.Total = res.Subtotal - couponTotal
	if res.Total < 0 {
		res.Total = 0
	}
	res.Discount = (res.OriginTotal - res.Subtotal) + couponTotal
	return res
}

func toQuoteItem(item *cart.Item) QuoteItem {
	return QuoteItem{
		Key:               item.Key(),
		ProductID:         item.Product().ID,
		Quantity:          item.Quantity(),
		UnitPrice:         item.Price(),
		OriginalUnitPrice: item.InitialPrice(),
		Modifiers:         item.Modifiers(),
	}
}
