package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/common"
	"github.com/noah-isme/backend-vat/internal/country"
)

// Handler exposes subscription endpoints.
type Handler struct {
	service  *Service
	enqueuer Enqueuer
	country  country.Resolver
	period   time.Duration
	log      zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Enqueuer Enqueuer
	Country  country.Resolver
	Period   time.Duration
	Log      zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	period := cfg.Period
	if period <= 0 {
		period = 30 * 24 * time.Hour
	}
	return &Handler{service: cfg.Service, enqueuer: cfg.Enqueuer, country: cfg.Country, period: period, log: cfg.Log}
}

type subscribeRequest struct {
	ProductID      int64           `json:"productId"`
	Price          decimal.Decimal `json:"price"`
	BillingCountry string          `json:"billingCountry"`
}

// Subscribe handles POST /api/v1/subscriptions.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "billing service not configured", nil)
		return
	}
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	cc := h.country.Resolve(r.Context(), req.BillingCountry, common.ClientIP(r))
	sub, err := h.service.Subscribe(r.Context(), req.ProductID, cc, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.enqueuer.Client != nil {
		if err := h.enqueuer.EnqueueRenewal(sub.ID, time.Now().Add(h.period)); err != nil {
			h.log.Error().Err(err).Str("subscription_id", sub.ID.String()).Msg("enqueue renewal failed")
		}
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sub})
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		message := appErr.Message
		if message == "" {
			message = "internal error"
		}
		common.JSONError(w, status, code, message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
