// Package rulestore loads merchant pricing rules from Postgres and turns the
// stored rows into executable rule implementations.
package rulestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/condition"
	"github.com/noah-isme/pricing-api/internal/pricing"
	"github.com/noah-isme/pricing-api/internal/rule"
)

const listActiveSQL = `
SELECT id,
       name,
       kind,
       priority,
       enabled,
       match_type,
       filters,
       receive_filters,
       ranges,
       pricing_type,
       pricing_value,
       maximum_adjustment,
       group_variations,
       all_together,
       combinable,
       min_subtotal,
       use_limit,
       use_count,
       buy_quantity,
       receive_quantity,
       repeat_grant,
       COALESCE(free_product_id, '00000000-0000-0000-0000-000000000000'::uuid)
FROM pricing_rules
WHERE enabled = TRUE
ORDER BY priority, created_at
`

const activeRulesCacheKey = "pricing:rules:active"

// ProductResolver narrows the catalog dependency to what free-item grants need.
type ProductResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (catalog.Product, bool, error)
}

// Row is the storage shape of one rule. Condition filters and quantity ranges
// live in JSONB columns so merchants can author arbitrary combinations without
// schema churn.
type Row struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Kind              string          `json:"kind"`
	Priority          int             `json:"priority"`
	Enabled           bool            `json:"enabled"`
	MatchType         string          `json:"match_type"`
	Filters           json.RawMessage `json:"filters"`
	ReceiveFilters    json.RawMessage `json:"receive_filters"`
	Ranges            json.RawMessage `json:"ranges"`
	PricingType       string          `json:"pricing_type"`
	PricingValue      int64           `json:"pricing_value"`
	MaximumAdjustment int64           `json:"maximum_adjustment"`
	GroupVariations   bool            `json:"group_variations"`
	AllTogether       bool            `json:"all_together"`
	Combinable        bool            `json:"combinable"`
	MinSubtotal       int64           `json:"min_subtotal"`
	UseLimit          int             `json:"use_limit"`
	UseCount          int             `json:"use_count"`
	BuyQuantity       int             `json:"buy_quantity"`
	ReceiveQuantity   int             `json:"receive_quantity"`
	RepeatGrant       bool            `json:"repeat_grant"`
	FreeProductID     uuid.UUID       `json:"free_product_id"`
}

// Store reads rules from Postgres with a short-lived Redis cache in front.
type Store struct {
	Pool     *pgxpool.Pool
	Cache    *catalog.Cache
	Products ProductResolver
	Logger   zerolog.Logger
}

// ListActive returns the enabled rules ordered by priority. Rows that fail to
// decode are skipped with a log line so one bad rule cannot take quoting down.
func (s *Store) ListActive(ctx context.Context) ([]rule.Rule, error) {
	rows, err := s.listRows(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]rule.Rule, 0, len(rows))
	for _, row := range rows {
		cfg, err := s.toConfig(ctx, row)
		if err != nil {
			s.Logger.Warn().Err(err).Str("rule_id", row.ID.String()).Str("rule", row.Name).Msg("skip rule")
			continue
		}
		r, err := rule.New(cfg)
		if err != nil {
			s.Logger.Warn().Err(err).Str("rule_id", row.ID.String()).Str("rule", row.Name).Msg("skip rule")
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) listRows(ctx context.Context) ([]Row, error) {
	var cached []Row
	if ok, err := s.Cache.GetJSON(ctx, activeRulesCacheKey, &cached); err == nil && ok {
		return cached, nil
	}

	if s.Pool == nil {
		return nil, errors.New("rulestore: pool not configured")
	}
	rows, err := s.Pool.Query(ctx, listActiveSQL)
	if err != nil {
		return nil, fmt.Errorf("rulestore: list rules: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var (
			r      Row
			id     pgtype.UUID
			freeID pgtype.UUID
		)
		err := rows.Scan(
			&id, &r.Name, &r.Kind, &r.Priority, &r.Enabled, &r.MatchType,
			&r.Filters, &r.ReceiveFilters, &r.Ranges,
			&r.PricingType, &r.PricingValue, &r.MaximumAdjustment,
			&r.GroupVariations, &r.AllTogether, &r.Combinable,
			&r.MinSubtotal, &r.UseLimit, &r.UseCount,
			&r.BuyQuantity, &r.ReceiveQuantity, &r.RepeatGrant, &freeID,
		)
		if err != nil {
			return nil, fmt.Errorf("rulestore: scan rule: %w", err)
		}
		if id.Valid {
			r.ID = uuid.UUID(id.Bytes)
		}
		if freeID.Valid {
			r.FreeProductID = uuid.UUID(freeID.Bytes)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rulestore: list rules: %w", err)
	}

	_ = s.Cache.SetJSON(ctx, activeRulesCacheKey, result)
	return result, nil
}

func (s *Store) toConfig(ctx context.Context, row Row) (rule.Config, error) {
	cfg, err := DecodeRow(row)
	if err != nil {
		return rule.Config{}, err
	}
	if row.FreeProductID != uuid.Nil {
		if s.Products == nil {
			return rule.Config{}, errors.New("free product configured but resolver missing")
		}
		p, ok, err := s.Products.Resolve(ctx, row.FreeProductID)
		if err != nil {
			return rule.Config{}, fmt.Errorf("resolve free product: %w", err)
		}
		if !ok {
			return rule.Config{}, fmt.Errorf("free product %s not found", row.FreeProductID)
		}
		cfg.FreeProduct = &p
	}
	return cfg, nil
}

// DecodeRow maps a stored row onto a rule configuration. Free product
// resolution is left to the caller.
func DecodeRow(row Row) (rule.Config, error) {
	filters, err := decodeFilters(row.Filters)
	if err != nil {
		return rule.Config{}, fmt.Errorf("decode filters: %w", err)
	}
	receive, err := decodeFilters(row.ReceiveFilters)
	if err != nil {
		return rule.Config{}, fmt.Errorf("decode receive filters: %w", err)
	}
	ranges, err := decodeRanges(row.Ranges)
	if err != nil {
		return rule.Config{}, fmt.Errorf("decode ranges: %w", err)
	}

	matchType := condition.MatchType(row.MatchType)
	if matchType == "" {
		matchType = condition.MatchAny
	}

	return rule.Config{
		ID:                row.ID,
		Name:              row.Name,
		Kind:              rule.Kind(row.Kind),
		Priority:          row.Priority,
		Enabled:           row.Enabled,
		MatchType:         matchType,
		Filters:           filters,
		ReceiveFilters:    receive,
		Ranges:            ranges,
		PricingType:       pricing.Type(row.PricingType),
		PricingValue:      row.PricingValue,
		MaximumAdjustment: row.MaximumAdjustment,
		GroupVariations:   row.GroupVariations,
		AllTogether:       row.AllTogether,
		Combinable:        row.Combinable,
		MinSubtotal:       row.MinSubtotal,
		UseLimit:          row.UseLimit,
		UseCount:          row.UseCount,
		BuyQuantity:       row.BuyQuantity,
		ReceiveQuantity:   row.ReceiveQuantity,
		Repeat:            row.RepeatGrant,
	}, nil
}

func decodeFilters(raw json.RawMessage) ([]condition.Filter, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var filters []condition.Filter
	if err := json.Unmarshal(raw, &filters); err != nil {
		return nil, err
	}
	return filters, nil
}

func decodeRanges(raw json.RawMessage) ([]pricing.Range, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var ranges []pricing.Range
	if err := json.Unmarshal(raw, &ranges); err != nil {
		return nil, err
	}
	return ranges, nil
}
