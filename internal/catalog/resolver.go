package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const getProductSQL = `
SELECT p.id,
       COALESCE(p.parent_id, '00000000-0000-0000-0000-000000000000'::uuid),
       p.name,
       p.price,
       COALESCE(array_agg(DISTINCT pc.category_id) FILTER (WHERE pc.category_id IS NOT NULL), '{}'),
       COALESCE(array_agg(DISTINCT pt.tag_id) FILTER (WHERE pt.tag_id IS NOT NULL), '{}')
FROM products p
LEFT JOIN product_categories pc ON pc.product_id = p.id
LEFT JOIN product_tags pt ON pt.product_id = p.id
WHERE p.id = $1
GROUP BY p.id
`

// Resolver loads product metadata from Postgres with a read-through cache.
type Resolver struct {
	Pool  *pgxpool.Pool
	Cache *Cache
}

// Resolve returns the product for the given id. The boolean reports whether
// the product exists.
func (r *Resolver) Resolve(ctx context.Context, id uuid.UUID) (Product, bool, error) {
	if r == nil || r.Pool == nil {
		return Product{}, false, errors.New("catalog: resolver not configured")
	}

	key := "catalog:product:" + id.String()
	var cached Product
	if ok, err := r.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, true, nil
	}

	var (
		rowID     pgtype.UUID
		rowParent pgtype.UUID
		name      string
		price     int64
		cats      []pgtype.UUID
		tags      []pgtype.UUID
	)
	err := r.Pool.QueryRow(ctx, getProductSQL, toPgUUID(id)).Scan(&rowID, &rowParent, &name, &price, &cats, &tags)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, false, nil
		}
		return Product{}, false, fmt.Errorf("catalog: get product: %w", err)
	}

	p := Product{
		ID:          fromPgUUID(rowID),
		ParentID:    fromPgUUID(rowParent),
		Name:        name,
		Price:       price,
		CategoryIDs: fromPgUUIDs(cats),
		TagIDs:      fromPgUUIDs(tags),
	}
	_ = r.Cache.SetJSON(ctx, key, p)
	return p, true, nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func fromPgUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}

func fromPgUUIDs(ids []pgtype.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id.Valid {
			out = append(out, uuid.UUID(id.Bytes))
		}
	}
	return out
}
