package condition

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/noah-isme/pricing-api/internal/catalog"
)

func TestMatchesProductFilter(t *testing.T) {
	p := catalog.Product{ID: uuid.New(), Price: 10_00}
	other := uuid.New()

	ok, err := Matches(p, Filter{Attribute: AttrProduct, Comparator: In, IDs: []uuid.UUID{p.ID}})
	if err != nil || !ok {
		t.Fatalf("expected product to match its own id, ok=%v err=%v", ok, err)
	}
	ok, err = Matches(p, Filter{Attribute: AttrProduct, Comparator: In, IDs: []uuid.UUID{other}})
	if err != nil || ok {
		t.Fatalf("expected no match for a foreign id, ok=%v err=%v", ok, err)
	}
	ok, err = Matches(p, Filter{Attribute: AttrProduct, Comparator: NotIn, IDs: []uuid.UUID{other}})
	if err != nil || !ok {
		t.Fatalf("not_in should match foreign ids, ok=%v err=%v", ok, err)
	}
}

func TestMatchesVariationThroughParent(t *testing.T) {
	parent := uuid.New()
	variation := catalog.Product{ID: uuid.New(), ParentID: parent}
	ok, err := Matches(variation, Filter{Attribute: AttrProduct, Comparator: In, IDs: []uuid.UUID{parent}})
	if err != nil || !ok {
		t.Fatalf("variation should match a filter naming its parent, ok=%v err=%v", ok, err)
	}
}

func TestMatchesCategoryAndTag(t *testing.T) {
	cat := uuid.New()
	tag := uuid.New()
	p := catalog.Product{ID: uuid.New(), CategoryIDs: []uuid.UUID{cat}, TagIDs: []uuid.UUID{tag}}

	if ok, _ := Matches(p, Filter{Attribute: AttrCategory, Comparator: In, IDs: []uuid.UUID{cat}}); !ok {
		t.Fatalf("category filter missed")
	}
	if ok, _ := Matches(p, Filter{Attribute: AttrTag, Comparator: NotIn, IDs: []uuid.UUID{tag}}); ok {
		t.Fatalf("not_in tag filter should reject a tagged product")
	}
}

func TestMatchesPrice(t *testing.T) {
	p := catalog.Product{ID: uuid.New(), Price: 50_00}
	if ok, _ := Matches(p, Filter{Attribute: AttrPrice, Comparator: AtLeast, Amount: 40_00}); !ok {
		t.Fatalf("price at_least missed")
	}
	if ok, _ := Matches(p, Filter{Attribute: AttrPrice, Comparator: AtMost, Amount: 40_00}); ok {
		t.Fatalf("price at_most should reject")
	}
}

func TestMatchesUnknownFilter(t *testing.T) {
	p := catalog.Product{ID: uuid.New()}
	_, err := Matches(p, Filter{Attribute: Attribute("brand"), Comparator: In})
	if !errors.Is(err, ErrUnknownFilter) {
		t.Fatalf("expected ErrUnknownFilter, got %v", err)
	}
	_, err = Matches(p, Filter{Attribute: AttrPrice, Comparator: In})
	if !errors.Is(err, ErrUnknownFilter) {
		t.Fatalf("expected ErrUnknownFilter for price/in, got %v", err)
	}
}

func TestMatchesAll(t *testing.T) {
	cat := uuid.New()
	p := catalog.Product{ID: uuid.New(), Price: 30_00, CategoryIDs: []uuid.UUID{cat}}
	hit := Filter{Attribute: AttrCategory, Comparator: In, IDs: []uuid.UUID{cat}}
	miss := Filter{Attribute: AttrPrice, Comparator: AtLeast, Amount: 99_00}
	broken := Filter{Attribute: Attribute("brand"), Comparator: In}

	if !MatchesAll(p, nil, MatchAll) {
		t.Fatalf("empty filter list must match")
	}
	if !MatchesAll(p, []Filter{hit, miss}, MatchAny) {
		t.Fatalf("any-match should succeed with one hit")
	}
	if MatchesAll(p, []Filter{hit, miss}, MatchAll) {
		t.Fatalf("all-match should fail with one miss")
	}
	if MatchesAll(p, []Filter{broken}, MatchAny) {
		t.Fatalf("unevaluable filter must count as no match")
	}
}
