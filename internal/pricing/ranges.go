package pricing

// Range binds a quantity threshold to pricing configuration. Ranges are kept
// in the order the merchant authored them; each one covers quantities from
// its MinQuantity up to (but excluding) the next range's MinQuantity, and the
// last range is open ended.
type Range struct {
	MinQuantity       int   `json:"min_quantity"`
	PricingType       Type  `json:"pricing_type"`
	PricingValue      int64 `json:"pricing_value"`
	MaximumAdjustment Money `json:"maximum_adjustment"`
}

// MatchRange returns the first range whose interval contains qty, or nil when
// qty is below every threshold. When two ranges share a threshold the earlier
// one wins.
func MatchRange(ranges []Range, qty int) *Range {
	for i := range ranges {
		if qty < ranges[i].MinQuantity {
			continue
		}
		if i+1 < len(ranges) && qty >= ranges[i+1].MinQuantity && ranges[i+1].MinQuantity > ranges[i].MinQuantity {
			continue
		}
		return &ranges[i]
	}
	return nil
}

// NextRange returns the first range whose threshold is strictly above qty,
// or nil when qty already sits in the top tier.
func NextRange(ranges []Range, qty int) *Range {
	for i := range ranges {
		if ranges[i].MinQuantity > qty {
			return &ranges[i]
		}
	}
	return nil
}

// HasUnitRange reports whether any range already applies to a single unit.
func HasUnitRange(ranges []Range) bool {
	for i := range ranges {
		if ranges[i].MinQuantity == 1 {
			return true
		}
	}
	return false
}
