package usetime

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/common"
	"github.com/noah-isme/pricing-api/internal/events"
	"github.com/noah-isme/pricing-api/internal/queue"
)

// TaskKind is the queue kind usage settlement tasks are published under.
const TaskKind = "usetime:settle"

// TaskPayload is the JSON body of a settlement task.
type TaskPayload struct {
	OrderID uuid.UUID   `json:"order_id"`
	RuleIDs []uuid.UUID `json:"rule_ids"`
}

type purchaseCompletedRequest struct {
	OrderID uuid.UUID   `json:"order_id" validate:"required"`
	RuleIDs []uuid.UUID `json:"rule_ids" validate:"required,min=1,dive,required"`
}

// Webhook accepts purchase notifications and defers settlement to the queue.
type Webhook struct {
	Queue       queue.Enqueuer
	Events      *events.Bus
	Validate    *validator.Validate
	Logger      zerolog.Logger
	MaxAttempts int
}

// PurchaseCompleted enqueues a settlement task keyed by the order id, so
// repeated webhook deliveries collapse into one task.
func (h Webhook) PurchaseCompleted(w http.ResponseWriter, r *http.Request) {
	var req purchaseCompletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "order_id and rule_ids are required", err.Error())
			return
		}
	}

	payload, err := json.Marshal(TaskPayload{OrderID: req.OrderID, RuleIDs: req.RuleIDs})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "encode task", nil)
		return
	}
	task := queue.Task{
		Kind:           TaskKind,
		Payload:        payload,
		IdempotencyKey: req.OrderID.String(),
		MaxAttempts:    h.MaxAttempts,
	}
	if err := h.Queue.Enqueue(r.Context(), task); err != nil {
		h.Logger.Error().Err(err).Str("order_id", req.OrderID.String()).Msg("enqueue settlement")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not accept webhook", nil)
		return
	}

	if h.Events != nil {
		aggregate := pgtype.UUID{Bytes: req.OrderID, Valid: true}
		eventPayload := map[string]any{"order_id": req.OrderID, "rule_ids": req.RuleIDs}
		if _, err := h.Events.Emit(r.Context(), events.TopicPurchaseCompleted, aggregate, eventPayload); err != nil {
			h.Logger.Error().Err(err).Str("order_id", req.OrderID.String()).Msg("emit purchase event")
		}
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"status": "accepted"}})
}
