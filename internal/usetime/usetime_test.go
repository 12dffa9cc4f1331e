package usetime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/queue"
)

type stubQuerier struct {
	existing  map[string]bool
	insertErr error
	inserted  []string
	increased []string
}

func usageKey(ruleID, orderID uuid.UUID) string {
	return ruleID.String() + ":" + orderID.String()
}

func (q *stubQuerier) GetRuleUsageByOrder(_ context.Context, ruleID, orderID uuid.UUID) (bool, error) {
	return q.existing[usageKey(ruleID, orderID)], nil
}

func (q *stubQuerier) InsertRuleUsage(_ context.Context, ruleID, orderID uuid.UUID) error {
	if q.insertErr != nil {
		return q.insertErr
	}
	q.inserted = append(q.inserted, usageKey(ruleID, orderID))
	return nil
}

func (q *stubQuerier) IncreaseRuleUseCount(_ context.Context, ruleID uuid.UUID) error {
	q.increased = append(q.increased, ruleID.String())
	return nil
}

func TestSettleRecordsUsageOnce(t *testing.T) {
	q := &stubQuerier{existing: map[string]bool{}}
	svc := &Service{Q: q, Logger: zerolog.Nop()}
	ruleID, orderID := uuid.New(), uuid.New()

	if err := svc.Settle(context.Background(), ruleID, orderID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(q.inserted) != 1 || len(q.increased) != 1 {
		t.Fatalf("expected one insert and one increment, got %d/%d", len(q.inserted), len(q.increased))
	}

	q.existing[usageKey(ruleID, orderID)] = true
	if err := svc.Settle(context.Background(), ruleID, orderID); err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if len(q.increased) != 1 {
		t.Fatalf("duplicate settle must not increment again")
	}
}

func TestSettleUniqueViolationIsIdempotent(t *testing.T) {
	q := &stubQuerier{
		existing:  map[string]bool{},
		insertErr: &pgconn.PgError{Code: "23505"},
	}
	svc := &Service{Q: q, Logger: zerolog.Nop()}

	if err := svc.Settle(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unique violation should settle cleanly: %v", err)
	}
	if len(q.increased) != 0 {
		t.Fatalf("lost race must not increment")
	}
}

func TestSettleOtherInsertErrorPropagates(t *testing.T) {
	q := &stubQuerier{existing: map[string]bool{}, insertErr: errors.New("db down")}
	svc := &Service{Q: q, Logger: zerolog.Nop()}

	if err := svc.Settle(context.Background(), uuid.New(), uuid.New()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWorkerHandleSettlesEveryRule(t *testing.T) {
	q := &stubQuerier{existing: map[string]bool{}}
	w := Worker{Svc: &Service{Q: q, Logger: zerolog.Nop()}, Logger: zerolog.Nop()}

	payload, _ := json.Marshal(TaskPayload{OrderID: uuid.New(), RuleIDs: []uuid.UUID{uuid.New(), uuid.New()}})
	if err := w.Handle(context.Background(), queue.Task{Kind: TaskKind, Payload: payload}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(q.increased) != 2 {
		t.Fatalf("expected 2 increments, got %d", len(q.increased))
	}
}

func TestWorkerHandleDropsMalformedPayload(t *testing.T) {
	w := Worker{Svc: &Service{Q: &stubQuerier{existing: map[string]bool{}}, Logger: zerolog.Nop()}, Logger: zerolog.Nop()}
	if err := w.Handle(context.Background(), queue.Task{Kind: TaskKind, Payload: []byte("{")}); err != nil {
		t.Fatalf("malformed payload must not retry: %v", err)
	}
}

func TestWebhookEnqueuesDeduplicated(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := Webhook{
		Queue:    queue.Enqueuer{R: client, Prefix: "pricing", DedupTTL: time.Hour},
		Validate: validator.New(),
		Logger:   zerolog.Nop(),
	}

	body, _ := json.Marshal(map[string]any{
		"order_id": uuid.New(),
		"rule_ids": []uuid.UUID{uuid.New()},
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/purchase-completed", bytes.NewReader(body))
		h.PurchaseCompleted(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("delivery %d: expected 202, got %d", i+1, rec.Code)
		}
	}

	n, err := client.ZCard(context.Background(), "pricing:queue:usetime:settle").Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if n != 1 {
		t.Fatalf("repeated deliveries must enqueue once, got %d", n)
	}
}

func TestWebhookRejectsMissingRules(t *testing.T) {
	h := Webhook{Validate: validator.New(), Logger: zerolog.Nop()}
	body, _ := json.Marshal(map[string]any{"order_id": uuid.New(), "rule_ids": []uuid.UUID{}})

	rec := httptest.NewRecorder()
	h.PurchaseCompleted(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/purchase-completed", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
