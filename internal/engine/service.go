package engine

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/cart"
	"github.com/noah-isme/pricing-api/internal/catalog"
	"github.com/noah-isme/pricing-api/internal/common"
	"github.com/noah-isme/pricing-api/internal/events"
	"github.com/noah-isme/pricing-api/internal/obs"
	"github.com/noah-isme/pricing-api/internal/pricing"
	"github.com/noah-isme/pricing-api/internal/rule"
)

// RuleSource lists the rules eligible for a pass.
type RuleSource interface {
	ListActive(ctx context.Context) ([]rule.Rule, error)
}

// ProductSource resolves catalog metadata for cart lines.
type ProductSource interface {
	Resolve(ctx context.Context, id uuid.UUID) (catalog.Product, bool, error)
}

// Line is one entry of the cart snapshot a caller submits.
type Line struct {
	Key       string
	ProductID uuid.UUID
	Quantity  int
	UnitPrice pricing.Money
}

// PreviewResult is the catalog-level min/max discount for one product and rule.
type PreviewResult struct {
	ProductID uuid.UUID            `json:"product_id"`
	RuleID    uuid.UUID            `json:"rule_id"`
	Min       rule.DiscountPreview `json:"min"`
	Max       rule.DiscountPreview `json:"max"`
}

// Service glues rule storage, catalog resolution and the engine together.
type Service struct {
	Rules    RuleSource
	Products ProductSource
	Events   *events.Bus
	Engine   *Engine
	Logger   zerolog.Logger
}

// BuildCart turns a snapshot into a working cart. Lines whose product cannot
// be resolved fall back to the submitted unit price with bare metadata, so a
// catalog outage degrades to fewer matches instead of a failed quote.
func (s *Service) BuildCart(ctx context.Context, lines []Line) *cart.Cart {
	c := cart.New()
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		p, ok, err := s.Products.Resolve(ctx, line.ProductID)
		if err != nil {
			s.Logger.Warn().Err(err).Str("product_id", line.ProductID.String()).Msg("resolve product")
			ok = false
		}
		if !ok {
			p = catalog.Product{ID: line.ProductID, Price: line.UnitPrice}
		}
		unitPrice := line.UnitPrice
		if unitPrice <= 0 {
			unitPrice = p.Price
		}
		key := line.Key
		if key == "" {
			key = line.ProductID.String()
		}
		c.Add(cart.NewItem(key, p, line.Quantity, unitPrice))
	}
	return c
}

// Quote runs a full pass over the snapshot and returns the published result.
func (s *Service) Quote(ctx context.Context, lines []Line) (*Result, error) {
	rules, err := s.Rules.ListActive(ctx)
	if err != nil {
		s.countQuote("error")
		return nil, fmt.Errorf("list rules: %w", err)
	}
	c := s.BuildCart(ctx, lines)
	res, err := s.Engine.Run(NewCalculation(c), rules)
	if err != nil {
		s.countQuote("invalid")
		return nil, err
	}
	s.countQuote("ok")

	if s.Events != nil {
		quoteID := uuid.New()
		payload := map[string]any{
			"quote_id":     quoteID,
			"origin_total": res.OriginTotal,
			"subtotal":     res.Subtotal,
			"discount":     res.Discount,
			"total":        res.Total,
			"rule_ids":     res.AppliedRuleIDs(),
		}
		if _, err := s.Events.Emit(ctx, events.TopicQuoteComputed, pgtype.UUID{Bytes: quoteID, Valid: true}, payload); err != nil {
			s.Logger.Error().Err(err).Msg("emit quote event")
		}
	}
	return res, nil
}

// Encouragements runs a pass and collects the per-rule nudges, nearest tier
// first. A non-nil product narrows the nudges to that product's lines.
func (s *Service) Encouragements(ctx context.Context, lines []Line, productID *uuid.UUID) ([]rule.Encouragement, error) {
	rules, err := s.Rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	c := s.BuildCart(ctx, lines)
	if _, err := s.Engine.Run(NewCalculation(c), rules); err != nil {
		return nil, err
	}

	var product *catalog.Product
	if productID != nil {
		p, ok, err := s.Products.Resolve(ctx, *productID)
		if err != nil {
			return nil, fmt.Errorf("resolve product: %w", err)
		}
		if !ok {
			return nil, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)
		}
		product = &p
	}

	var out []rule.Encouragement
	for _, r := range rules {
		if !r.Meta().Active() {
			continue
		}
		if enc := r.Encouragement(c, product); enc != nil {
			out = append(out, *enc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MissingQuantity < out[j].MissingQuantity
	})
	return out, nil
}

// DiscountPreview returns the min/max discount a rule can give a product,
// computed without a live cart.
func (s *Service) DiscountPreview(ctx context.Context, productID, ruleID uuid.UUID) (*PreviewResult, error) {
	p, ok, err := s.Products.Resolve(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("resolve product: %w", err)
	}
	if !ok {
		return nil, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)
	}

	rules, err := s.Rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	for _, r := range rules {
		if r.Meta().ID != ruleID {
			continue
		}
		previewer, ok := r.(rule.DiscountPreviewer)
		if !ok {
			return nil, common.NewAppError("UNSUPPORTED", "rule kind has no catalog preview", http.StatusUnprocessableEntity, nil)
		}
		return &PreviewResult{
			ProductID: productID,
			RuleID:    ruleID,
			Min:       previewer.MinDiscount(p),
			Max:       previewer.MaxDiscount(p),
		}, nil
	}
	return nil, common.NewAppError("NOT_FOUND", "rule not found", http.StatusNotFound, nil)
}

func (s *Service) countQuote(result string) {
	if obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues(result).Inc()
	}
}
