package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-vat/internal/catalog"
	"github.com/noah-isme/backend-vat/internal/common"
	"github.com/noah-isme/backend-vat/internal/country"
)

// Handler exposes the public tax endpoints.
type Handler struct {
	service *Service
	country country.Resolver
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Country country.Resolver
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, country: cfg.Country}
}

// Resolve handles GET /api/v1/tax/resolve?productId=&country=.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	productID, err := strconv.ParseInt(r.URL.Query().Get("productId"), 10, 64)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid product id", nil)
		return
	}
	cc := h.country.Resolve(r.Context(), r.URL.Query().Get("country"), common.ClientIP(r))
	result, err := h.service.ResolveRate(r.Context(), productID, cc)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

type quoteRequest struct {
	Items          []catalog.CartEntry `json:"items"`
	BillingCountry string              `json:"billingCountry"`
}

// Quote handles POST /api/v1/tax/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	cc := h.country.Resolve(r.Context(), req.BillingCountry, common.ClientIP(r))
	result, err := h.service.QuoteCart(r.Context(), req.Items, cc)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
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
