package pricing

import "testing"

func tiers() []Range {
	return []Range{
		{MinQuantity: 1, PricingType: PercentageDiscount, PricingValue: 1000},
		{MinQuantity: 5, PricingType: PercentageDiscount, PricingValue: 2000},
		{MinQuantity: 10, PricingType: FixedPrice, PricingValue: 50_00},
	}
}

func TestMatchRange(t *testing.T) {
	cases := []struct {
		qty  int
		want int // expected MinQuantity, -1 for nil
	}{
		{0, -1},
		{1, 1},
		{4, 1},
		{5, 5},
		{9, 5},
		{10, 10},
		{100, 10},
	}
	for _, tc := range cases {
		got := MatchRange(tiers(), tc.qty)
		if tc.want == -1 {
			if got != nil {
				t.Fatalf("qty %d: expected no match, got min %d", tc.qty, got.MinQuantity)
			}
			continue
		}
		if got == nil || got.MinQuantity != tc.want {
			t.Fatalf("qty %d: expected min %d, got %+v", tc.qty, tc.want, got)
		}
	}
}

func TestMatchRangeEqualThresholdsEarlierWins(t *testing.T) {
	ranges := []Range{
		{MinQuantity: 3, PricingValue: 111},
		{MinQuantity: 3, PricingValue: 222},
	}
	got := MatchRange(ranges, 3)
	if got == nil || got.PricingValue != 111 {
		t.Fatalf("expected earlier range to win, got %+v", got)
	}
}

func TestNextRange(t *testing.T) {
	if next := NextRange(tiers(), 4); next == nil || next.MinQuantity != 5 {
		t.Fatalf("expected next tier at 5, got %+v", next)
	}
	if next := NextRange(tiers(), 10); next != nil {
		t.Fatalf("expected no tier above the top, got %+v", next)
	}
	if next := NextRange(tiers(), 0); next == nil || next.MinQuantity != 1 {
		t.Fatalf("expected first tier, got %+v", next)
	}
}

func TestHasUnitRange(t *testing.T) {
	if !HasUnitRange(tiers()) {
		t.Fatalf("tier starting at 1 not detected")
	}
	if HasUnitRange(tiers()[1:]) {
		t.Fatalf("false positive for unit range")
	}
}
