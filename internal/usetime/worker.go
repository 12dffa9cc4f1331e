package usetime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/queue"
)

// Worker processes settlement tasks from the queue.
type Worker struct {
	Svc    *Service
	Logger zerolog.Logger
}

// Handle settles every rule referenced by the task. Rules that fail are
// reported together so the task retries as a whole; already-settled rules are
// skipped by the service.
func (w Worker) Handle(ctx context.Context, t queue.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		// Malformed payloads never become processable, drop instead of retrying.
		w.Logger.Error().Err(err).Str("key", t.IdempotencyKey).Msg("drop malformed settlement task")
		return nil
	}

	var errs []error
	for _, ruleID := range payload.RuleIDs {
		if err := w.Svc.Settle(ctx, ruleID, payload.OrderID); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", ruleID, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	w.Logger.Info().Str("order_id", payload.OrderID.String()).Int("rules", len(payload.RuleIDs)).Msg("usage settled")
	return nil
}
