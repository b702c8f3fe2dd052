package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-vat/internal/catalog"
	"github.com/noah-isme/backend-vat/internal/common"
	"github.com/noah-isme/backend-vat/internal/country"
	"github.com/noah-isme/backend-vat/internal/render"
	"github.com/noah-isme/backend-vat/internal/tax"
)

// Handler exposes order endpoints.
type Handler struct {
	service  *Service
	products catalog.Store
	country  country.Resolver
	mailer   common.EmailSender
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Products catalog.Store
	Country  country.Resolver
	Mailer   common.EmailSender
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, products: cfg.Products, country: cfg.Country, mailer: cfg.Mailer}
}

type finalizeRequest struct {
	Items          []catalog.CartEntry `json:"items"`
	BillingCountry string              `json:"billingCountry"`
	Email          string              `json:"email"`
}

// Finalize handles POST /api/v1/orders.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body", nil)
		return
	}
	cc := h.country.Resolve(r.Context(), req.BillingCountry, common.ClientIP(r))
	o, err := h.service.Finalize(r.Context(), req.Items, cc)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.mailer != nil && req.Email != "" {
		receipt := render.BuildReceipt(o.Summary, h.memberItems(r, o.Items), o.DisplayMode)
		if err := h.mailer.Send(req.Email, "Your purchase receipt", render.PlainText(receipt)); err != nil {
			h.service.log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("receipt email failed")
		}
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": o})
}

// Get handles GET /api/v1/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathOrderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// TaxSummary handles GET /api/v1/orders/{orderID}/tax-summary.
func (h *Handler) TaxSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathOrderID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.TaxSummary(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"summary":  summary,
		"taxLines": render.TaxLines(summary),
		"totalTax": summary.Total(),
	}})
}

// Receipt handles GET /api/v1/orders/{orderID}/receipt.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathOrderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := h.service.TaxSummary(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	members := h.memberItems(r, o.Items)
	receipt := render.BuildReceipt(summary, members, o.DisplayMode)
	common.JSON(w, http.StatusOK, map[string]any{"data": receipt})
}

// memberItems prepares the bundle member rows of a receipt. Name lookups are
// best effort; a missing product renders without a name.
func (h *Handler) memberItems(r *http.Request, items []tax.ItemTax) []tax.MemberItem {
	members := make([]tax.MemberItem, 0, len(items))
	for _, item := range items {
		if item.ParentID == 0 {
			continue
		}
		name := ""
		if h.products != nil {
			if n, ok, err := h.products.ProductName(r.Context(), item.ProductID); err == nil && ok {
				name = n
			}
		}
		members = append(members, tax.MemberItem{
			Name:  name,
			Price: item.Price,
			Rate:  item.Rate,
			Tax:   item.Tax,
		})
	}
	return members
}

func pathOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid order id", nil)
		return uuid.Nil, false
	}
	return id, true
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
