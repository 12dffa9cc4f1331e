package cart

import (
	"testing"

	"github.com/google/uuid"

	"github.com/noah-isme/pricing-api/internal/catalog"
)

func product(price int64) catalog.Product {
	return catalog.Product{ID: uuid.New(), Price: price}
}

func TestTotalsExcludeExtras(t *testing.T) {
	c := New()
	c.Add(NewItem("a", product(10_00), 2, 10_00))
	c.Add(NewItem("b", product(5_00), 1, 5_00))
	c.AddExtraItem(product(99_00), 3)

	if got := c.Subtotal(); got != 25_00 {
		t.Fatalf("subtotal: expected 25_00 got %d", got)
	}
	if got := c.OriginTotal(); got != 25_00 {
		t.Fatalf("origin total: expected 25_00 got %d", got)
	}
	if got := c.Quantity(); got != 3 {
		t.Fatalf("quantity: expected 3 got %d", got)
	}
	if got := len(c.ExtraItems()); got != 1 {
		t.Fatalf("expected 1 extra item, got %d", got)
	}
	if got := len(c.Items()); got != 2 {
		t.Fatalf("expected 2 regular items, got %d", got)
	}
}

func TestSubtotalTracksWorkingPrice(t *testing.T) {
	c := New()
	item := NewItem("a", product(10_00), 2, 10_00)
	c.Add(item)

	item.SetPrice(8_00)
	if got := c.Subtotal(); got != 16_00 {
		t.Fatalf("expected 16_00 got %d", got)
	}
	if got := c.OriginTotal(); got != 20_00 {
		t.Fatalf("origin total must not move, got %d", got)
	}

	c.Rollback()
	if got := c.Subtotal(); got != 20_00 {
		t.Fatalf("rollback should restore 20_00, got %d", got)
	}
}

func TestExtraItemShape(t *testing.T) {
	c := New()
	extra := c.AddExtraItem(product(30_00), 2)
	if extra.Price() != 0 {
		t.Fatalf("extra items carry a zero working price, got %d", extra.Price())
	}
	if extra.InitialPrice() != 30_00 {
		t.Fatalf("extra items keep the catalog price as initial, got %d", extra.InitialPrice())
	}
	if !extra.IsExtra() {
		t.Fatalf("extra flag missing")
	}
	if c.Item(extra.Key()) != extra {
		t.Fatalf("extra item not addressable by key")
	}
}

func TestBulkQuantityFallback(t *testing.T) {
	item := NewItem("a", product(10_00), 4, 10_00)
	if got := item.BulkQuantity(); got != 4 {
		t.Fatalf("expected fallback to quantity, got %d", got)
	}
	item.SetBulkQuantity(9)
	if got := item.BulkQuantity(); got != 9 {
		t.Fatalf("expected stamped quantity, got %d", got)
	}
	item.ResetBulkQuantity()
	if got := item.BulkQuantity(); got != 4 {
		t.Fatalf("expected fallback after reset, got %d", got)
	}
}

func TestResetModifiers(t *testing.T) {
	c := New()
	item := NewItem("a", product(10_00), 1, 10_00)
	item.AddModifier(Modifier{RuleName: "x", DiscountPerUnit: 1_00})
	item.SetBulkQuantity(7)
	c.Add(item)

	c.ResetModifiers()
	if len(item.Modifiers()) != 0 {
		t.Fatalf("modifiers not cleared")
	}
	if item.BulkQuantity() != 1 {
		t.Fatalf("bulk quantity not reset, got %d", item.BulkQuantity())
	}
}

func TestLockBlocksModification(t *testing.T) {
	item := NewItem("a", product(10_00), 1, 10_00)
	if !item.CanModify() {
		t.Fatalf("fresh item should be modifiable")
	}
	item.Lock()
	if item.CanModify() {
		t.Fatalf("locked item reported modifiable")
	}
}
