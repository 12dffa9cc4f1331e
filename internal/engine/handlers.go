package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pricing-api/internal/common"
	"github.com/noah-isme/pricing-api/internal/obs"
	"github.com/noah-isme/pricing-api/internal/pricing"
)

// Handler exposes the quoting API over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type quoteLine struct {
	Key       string    `json:"key"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
	UnitPrice int64     `json:"unit_price" validate:"gte=0"`
}

type quoteRequest struct {
	Items []quoteLine `json:"items" validate:"required,min=1,dive"`
}

type encouragementsRequest struct {
	Items     []quoteLine `json:"items" validate:"required,min=1,dive"`
	ProductID *uuid.UUID  `json:"product_id,omitempty"`
}

func toLines(items []quoteLine) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			Key:       item.Key,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: pricing.Money(item.UnitPrice),
		})
	}
	return lines
}

// Quote prices a cart snapshot.
func (h Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	start := time.Now()
	res, err := h.Svc.Quote(r.Context(), toLines(req.Items))
	if obs.QuoteDuration != nil {
		obs.QuoteDuration.Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Encouragements returns the nudges unlocking the next tiers for the snapshot.
func (h Handler) Encouragements(w http.ResponseWriter, r *http.Request) {
	var req encouragementsRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.Svc.Encouragements(r.Context(), toLines(req.Items), req.ProductID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// DiscountPreview returns the min/max catalog discount of one rule for one
// product.
func (h Handler) DiscountPreview(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	ruleID, err := uuid.Parse(r.URL.Query().Get("rule_id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "rule_id query parameter is required", nil)
		return
	}

	res, err := h.Svc.DiscountPreview(r.Context(), productID, ruleID)
	if err != nil {
		h.renderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

func (h Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request", err.Error())
			return false
		}
	}
	return true
}

func (h Handler) renderError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	if pricing.IsConfigError(err) {
		common.JSONError(w, http.StatusUnprocessableEntity, "RULE_CONFIG_INVALID", err.Error(), nil)
		return
	}
	h.Logger.Error().Err(err).Msg("quote request failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
