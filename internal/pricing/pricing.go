package pricing

import (
	"errors"
	"fmt"
)

// Money is a monetary amount in minor units (e.g. cents).
type Money = int64

// PercentScale is the basis-point scale for percentage pricing values
// (10000 = 100%).
const PercentScale = 10000

// Type identifies how a pricing value modifies a base price. Percentage
// types carry their value in basis points, flat types in minor units.
type Type string

const (
	PercentageDiscount Type = "percentage_discount"
	PercentageMarkup   Type = "percentage_markup"
	FixedDiscount      Type = "fixed_discount"
	FixedPrice         Type = "fixed_price"
	FlatFee            Type = "flat_fee"
)

var (
	// ErrUnknownType reports a pricing type outside the supported set.
	ErrUnknownType = errors.New("pricing: unknown pricing type")
	// ErrInvalidValue reports a negative base price or pricing value.
	ErrInvalidValue = errors.New("pricing: invalid value")
)

// Valid reports whether t is a supported pricing type.
func (t Type) Valid() bool {
	switch t {
	case PercentageDiscount, PercentageMarkup, FixedDiscount, FixedPrice, FlatFee:
		return true
	}
	return false
}

// IsFlat reports whether the adjustment amount for t is an absolute price
// rather than a derived one.
func (t Type) IsFlat() bool {
	switch t {
	case FixedDiscount, FixedPrice, FlatFee:
		return true
	}
	return false
}

// IsPercentage reports whether the pricing value for t is in basis points.
func (t Type) IsPercentage() bool {
	return t == PercentageDiscount || t == PercentageMarkup
}

// Discounts reports whether t can lower the base price.
func (t Type) Discounts() bool {
	switch t {
	case PercentageDiscount, FixedDiscount, FixedPrice:
		return true
	}
	return false
}

// AdjustmentAmount applies the pricing to basePrice and returns the resulting
// unit amount. For discounting types the result is the price that remains
// after the discount; FlatFee returns the fee itself. When maxAdjustment is
// positive the price never drops more than maxAdjustment below basePrice.
func AdjustmentAmount(basePrice Money, t Type, value int64, maxAdjustment Money) (Money, error) {
	if basePrice < 0 || value < 0 {
		return 0, fmt.Errorf("base %d value %d: %w", basePrice, value, ErrInvalidValue)
	}

	var amount Money
	switch t {
	case PercentageDiscount:
		amount = basePrice - basePrice*value/PercentScale
	case PercentageMarkup:
		amount = basePrice + basePrice*value/PercentScale
	case FixedDiscount:
		amount = basePrice - value
	case FixedPrice:
		amount = value
	case FlatFee:
		return value, nil
	default:
		return 0, fmt.Errorf("%q: %w", t, ErrUnknownType)
	}

	if amount < 0 {
		amount = 0
	}
	if maxAdjustment > 0 && amount < basePrice {
		floor := basePrice - maxAdjustment
		if floor < 0 {
			floor = 0
		}
		if amount < floor {
			amount = floor
		}
	}
	return amount, nil
}

// IsConfigError reports whether err stems from rule authoring rather than
// runtime state. Config errors abort a calculation pass instead of being
// skipped.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnknownType) || errors.Is(err, ErrInvalidValue)
}
