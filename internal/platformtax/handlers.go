package platformtax

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/common"
)

// Directory is the store surface the admin handlers need.
type Directory interface {
	SetRate(ctx context.Context, country string, rate decimal.Decimal) error
	ListRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Handler exposes the platform default rate table to admins.
type Handler struct {
	Store Directory
}

// List handles GET /api/v1/admin/default-rates.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.Store.ListRates(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Set handles PUT /api/v1/admin/default-rates/{country}.
func (h Handler) Set(w http.ResponseWriter, r *http.Request) {
	country := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "country")))
	if len(country) != 2 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid country code", nil)
		return
	}
	var input struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	if input.Rate.IsNegative() || input.Rate.GreaterThan(decimal.NewFromInt(100)) {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "rate must be between 0 and 100", nil)
		return
	}
	if err := h.Store.SetRate(r.Context(), country, input.Rate); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"country": country,
		"rate":    input.Rate,
	}})
}
