// Package condition evaluates rule filters against catalog products.
package condition

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

// Attribute names the product property a filter inspects.
type Attribute string

const (
	AttrAllProducts Attribute = "all_products"
	AttrProduct     Attribute = "product"
	AttrCategory    Attribute = "category"
	AttrTag         Attribute = "tag"
	AttrPrice       Attribute = "price"
)

// Comparator selects how the attribute is compared with the filter operands.
type Comparator string

const (
	In      Comparator = "in"
	NotIn   Comparator = "not_in"
	AtLeast Comparator = "at_least"
	AtMost  Comparator = "at_most"
)

// MatchType combines multiple filters.
type MatchType string

const (
	MatchAny MatchType = "any"
	MatchAll MatchType = "all"
)

// ErrUnknownFilter reports a filter with an unsupported attribute or
// comparator combination.
var ErrUnknownFilter = errors.New("condition: unknown attribute or comparator")

// Filter is one merchant-authored eligibility clause. Set-valued attributes
// use IDs with In/NotIn; price uses Amount with AtLeast/AtMost.
type Filter struct {
	Attribute  Attribute     `json:"attribute"`
	Comparator Comparator    `json:"comparator"`
	IDs        []uuid.UUID   `json:"ids,omitempty"`
	Amount     pricing.Money `json:"amount,omitempty"`
}

// Matches evaluates a single filter against the product. Variations match
// product filters through their parent as well.
func Matches(p catalog.Product, f Filter) (bool, error) {
	switch f.Attribute {
	case AttrAllProducts:
		return true, nil
	case AttrProduct:
		hit := containsUUID(f.IDs, p.ID) || (p.IsVariation() && containsUUID(f.IDs, p.ParentID))
		return applySetComparator(hit, f.Comparator)
	case AttrCategory:
		return applySetComparator(intersects(f.IDs, p.CategoryIDs), f.Comparator)
	case AttrTag:
		return applySetComparator(intersects(f.IDs, p.TagIDs), f.Comparator)
	case AttrPrice:
		switch f.Comparator {
		case AtLeast:
			return p.Price >= f.Amount, nil
		case AtMost:
			return p.Price <= f.Amount, nil
		}
		return false, fmt.Errorf("price %q: %w", f.Comparator, ErrUnknownFilter)
	}
	return false, fmt.Errorf("%q %q: %w", f.Attribute, f.Comparator, ErrUnknownFilter)
}

// MatchesAll combines the filters under the given match type. An empty filter
// list matches every product. Filters that cannot be evaluated count as no
// match rather than failing the whole set.
func MatchesAll(p catalog.Product, filters []Filter, mt MatchType) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		ok, err := Matches(p, f)
		if err != nil {
			ok = false
		}
		if mt == MatchAll {
			if !ok {
				return false
			}
			continue
		}
		if ok {
			return true
		}
	}
	return mt == MatchAll
}

func applySetComparator(hit bool, cmp Comparator) (bool, error) {
	switch cmp {
	case In:
		return hit, nil
	case NotIn:
		return !hit, nil
	}
	return false, fmt.Errorf("%q: %w", cmp, ErrUnknownFilter)
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func intersects(a, b []uuid.UUID) bool {
	for _, id := range b {
		if containsUUID(a, id) {
			return true
		}
	}
	return false
}
