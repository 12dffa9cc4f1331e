// Package usetime settles rule usage counters after a purchase completes, so
// limited-use rules stop matching once their budget is spent.
package usetime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/events"
	"github.com/noah-isme/pricing-api/internal/obs"
)

// Querier is the storage surface usage settlement needs.
type Querier interface {
	GetRuleUsageByOrder(ctx context.Context, ruleID, orderID uuid.UUID) (bool, error)
	InsertRuleUsage(ctx context.Context, ruleID, orderID uuid.UUID) error
	IncreaseRuleUseCount(ctx context.Context, ruleID uuid.UUID) error
}

const (
	getRuleUsageSQL = `SELECT 1 FROM rule_usages WHERE rule_id = $1 AND order_id = $2`

	insertRuleUsageSQL = `INSERT INTO rule_usages (rule_id, order_id) VALUES ($1, $2)`

	increaseUseCountSQL = `UPDATE pricing_rules SET use_count = use_count + 1 WHERE id = $1`
)

// PG implements Querier on a pgx pool.
type PG struct {
	Pool *pgxpool.Pool
}

func (p PG) GetRuleUsageByOrder(ctx context.Context, ruleID, orderID uuid.UUID) (bool, error) {
	var one int
	err := p.Pool.QueryRow(ctx, getRuleUsageSQL, toPg(ruleID), toPg(orderID)).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p PG) InsertRuleUsage(ctx context.Context, ruleID, orderID uuid.UUID) error {
	_, err := p.Pool.Exec(ctx, insertRuleUsageSQL, toPg(ruleID), toPg(orderID))
	return err
}

func (p PG) IncreaseRuleUseCount(ctx context.Context, ruleID uuid.UUID) error {
	_, err := p.Pool.Exec(ctx, increaseUseCountSQL, toPg(ruleID))
	return err
}

func toPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// Service records one usage per (rule, order) pair and bumps the rule counter.
type Service struct {
	Q      Querier
	Events *events.Bus
	Logger zerolog.Logger
}

// Settle is idempotent: an order that was already settled for the rule is a
// no-op, including the race where two deliveries insert concurrently.
func (s *Service) Settle(ctx context.Context, ruleID, orderID uuid.UUID) error {
	exists, err := s.Q.GetRuleUsageByOrder(ctx, ruleID, orderID)
	if err != nil {
		s.count("error")
		return fmt.Errorf("usetime: lookup usage: %w", err)
	}
	if exists {
		s.count("duplicate")
		return nil
	}

	if err := s.Q.InsertRuleUsage(ctx, ruleID, orderID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			s.count("duplicate")
			return nil
		}
		s.count("error")
		return fmt.Errorf("usetime: insert usage: %w", err)
	}

	if err := s.Q.IncreaseRuleUseCount(ctx, ruleID); err != nil {
		s.count("error")
		return fmt.Errorf("usetime: increase use count: %w", err)
	}
	s.count("ok")

	if s.Events != nil {
		payload := map[string]any{"rule_id": ruleID, "order_id": orderID}
		if _, err := s.Events.Emit(ctx, events.TopicRuleUseSettled, toPg(orderID), payload); err != nil {
			s.Logger.Error().Err(err).Str("rule_id", ruleID.String()).Msg("emit settle event")
		}
	}
	return nil
}

func (s *Service) count(result string) {
	if obs.UseTimeSettleTotal != nil {
		obs.UseTimeSettleTotal.WithLabelValues(result).Inc()
	}
}
