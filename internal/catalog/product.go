package catalog

import (
	"github.com/google/uuid"

	"github.com/noah-isme/pricing-api/internal/pricing"
)

// Product carries the catalog metadata rules match against.
type Product struct {
	ID          uuid.UUID     `json:"id"`
	ParentID    uuid.UUID     `json:"parent_id"`
	Name        string        `json:"name"`
	Price       pricing.Money `json:"price"`
	CategoryIDs []uuid.UUID   `json:"category_ids"`
	TagIDs      []uuid.UUID   `json:"tag_ids"`
}

// IsVariation reports whether the product is a variation of a parent product.
func (p Product) IsVariation() bool {
	return p.ParentID != uuid.Nil
}

// GroupID returns the identifier used when pooling variations together: the
// parent for a variation, the product itself otherwise.
func (p Product) GroupID() uuid.UUID {
	if p.IsVariation() {
		return p.ParentID
	}
	return p.ID
}
