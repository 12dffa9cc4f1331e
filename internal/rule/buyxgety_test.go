package rule

import (
	"testing"

	"github.com/google/uuid"

	"github.com/noah-isme/pricing-api/internal/cart"
	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/condition"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

func bxgyRule(cfg Config) *BuyXGetY {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Name == "" {
		cfg.Name = "bxgy"
	}
	cfg.Kind = KindBuyXGetY
	cfg.Enabled = true
	return &BuyXGetY{Config: cfg}
}

func TestBuyXGetYBelowThreshold(t *testing.T) {
	r := bxgyRule(Config{BuyQuantity: 3, ReceiveQuantity: 1, PricingType: pricing.PercentageDiscount, PricingValue: pricing.PercentScale})
	c := cart.New()
	c.Add(cart.NewItem("a", catalog.Product{ID: uuid.New(), Price: 10_00}, 2, 10_00))

	adj, err := r.PossibleAdjustment(c)
	if err != nil {
		t.Fatalf("possible adjustment: %v", err)
	}
	if adj != nil {
		t.Fatalf("below the buy threshold there is nothing to grant, got %+v", adj)
	}
}

func TestBuyXGetYFreeProductGrant(t *testing.T) {
	gift := catalog.Product{ID: uuid.New(), Name: "gift", Price: 15_00}
	r := bxgyRule(Config{BuyQuantity: 2, ReceiveQuantity: 1, FreeProduct: &gift})
	c := cart.New()
	c.Add(cart.NewItem("a", catalog.Product{ID: uuid.New(), Price: 10_00}, 2, 10_00))

	adj, err := r.PossibleAdjustment(c)
	if err != nil {
		t.Fatalf("possible adjustment: %v", err)
	}
	if adj == nil || adj.GrantQuantity != 1 {
		t.Fatalf("expected a single-unit grant, got %+v", adj)
	}
	if err := r.Apply(c, adj); err != nil {
		t.Fatalf("apply: %v", err)
	}
	extras := c.ExtraItems()
	if len(extras) != 1 {
		t.Fatalf("expected one extra item, got %d", len(extras))
	}
	if extras[0].Price() != 0 || extras[0].InitialPrice() != 15_00 {
		t.Fatalf("extra item pricing wrong: %d/%d", extras[0].Price(), extras[0].InitialPrice())
	}
	if c.Subtotal() != 20_00 {
		t.Fatalf("extras must not move the subtotal, got %d", c.Subtotal())
	}
}

func TestBuyXGetYRepeatMultipliesGrant(t *testing.T) {
	gift := catalog.Product{ID: uuid.New(), Price: 5_00}
	r := bxgyRule(Config{BuyQuantity: 2, ReceiveQuantity: 1, Repeat: true, FreeProduct: &gift})
	c := cart.New()
	c.Add(cart.NewItem("a", catalog.Product{ID: uuid.New(), Price: 10_00}, 5, 10_00))

	adj, err := r.PossibleAdjustment(c)
	if err != nil {
		t.Fatalf("possible adjustment: %v", err)
	}
	if adj == nil || adj.GrantQuantity != 2 {
		t.Fatalf("five bought at buy-2 should grant twice, got %+v", adj)
	}
}

func TestBuyXGetYDiscountsCheapestReceiveLine(t *testing.T) {
	buyID := uuid.New()
	receiveID := uuid.New()
	r := bxgyRule(Config{
		BuyQuantity:     2,
		ReceiveQuantity: 1,
		PricingType:     pricing.PercentageDiscount,
		PricingValue:    pricing.PercentScale, // free
		Filters: []condition.Filter{
			{Attribute: condition.AttrProduct, Comparator: condition.In, IDs: []uuid.UUID{buyID}},
		},
		ReceiveFilters: []condition.Filter{
			{Attribute: condition.AttrProduct, Comparator: condition.In, IDs: []uuid.UUID{receiveID}},
		},
	})
	c := cart.New()
	buy := cart.NewItem("buy", catalog.Product{ID: buyID, Price: 10_00}, 2, 10_00)
	receive := cart.NewItem("receive", catalog.Product{ID: receiveID, Price: 8_00}, 2, 8_00)
	c.Add(buy)
	c.Add(receive)

	adj, err := r.PossibleAdjustment(c)
	if err != nil {
		t.Fatalf("possible adjustment: %v", err)
	}
	if adj == nil || adj.GrantQuantity != 1 || len(adj.Items) != 1 {
		t.Fatalf("expected one receive line, got %+v", adj)
	}
	if err := r.Apply(c, adj); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// one free unit spread over a two-unit line: 16_00 -> 8_00 line total
	if receive.Price() != 4_00 {
		t.Fatalf("expected spread unit price 4_00, got %d", receive.Price())
	}
	if buy.Price() != 10_00 {
		t.Fatalf("buy line must stay untouched, got %d", buy.Price())
	}
	mods := receive.Modifiers()
	if len(mods) != 1 || mods[0].ModifyQuantity != 1 || mods[0].DiscountPerUnit != 8_00 {
		t.Fatalf("modifier mismatch: %+v", mods)
	}
}

func TestBuyXGetYPrefersCheaperLines(t *testing.T) {
	r := bxgyRule(Config{
		BuyQuantity:     2,
		ReceiveQuantity: 1,
		PricingType:     pricing.PercentageDiscount,
		PricingValue:    5000,
	})
	c := cart.New()
	pricey := cart.NewItem("pricey", catalog.Product{ID: uuid.New(), Price: 50_00}, 1, 50_00)
	cheap := cart.NewItem("cheap", catalog.Product{ID: uuid.New(), Price: 10_00}, 1, 10_00)
	c.Add(pricey)
	c.Add(cheap)

	adj, err := r.PossibleAdjustment(c)
	if err != nil {
		t.Fatalf("possible adjustment: %v", err)
	}
	if err := r.Apply(c, adj); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cheap.Price() != 5_00 {
		t.Fatalf("cheapest line should take the grant, got %d", cheap.Price())
	}
	if pricey.Price() != 50_00 {
		t.Fatalf("pricier line must stay untouched, got %d", pricey.Price())
	}
}

func TestBuyXGetYEncouragement(t *testing.T) {
	r := bxgyRule(Config{BuyQuantity: 4, ReceiveQuantity: 1})
	c := cart.New()
	c.Add(cart.NewItem("a", catalog.Product{ID: uuid.New(), Price: 10_00}, 3, 10_00))

	enc := r.Encouragement(c, nil)
	if enc == nil || enc.MissingQuantity != 1 {
		t.Fatalf("expected 1 missing unit, got %+v", enc)
	}

	c.Add(cart.NewItem("b", catalog.Product{ID: uuid.New(), Price: 10_00}, 1, 10_00))
	if enc := r.Encouragement(c, nil); enc != nil {
		t.Fatalf("met threshold should silence the encouragement, got %+v", enc)
	}
}
