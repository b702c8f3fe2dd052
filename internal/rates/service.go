package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/common"
	"github.com/noah-isme/backend-vat/internal/events"
)

// UpsertInput is the admin payload for creating or replacing an override.
type UpsertInput struct {
	Country string          `json:"country" validate:"required,len=2,alpha"`
	Rate    decimal.Decimal `json:"rate"`
}

// Service orchestrates override management: validation, persistence, and
// CSV import/export.
type Service struct {
	rates    *CachingStore
	products ProductDirectory
	validate *validator.Validate
	bus      *events.Bus
	log      zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Rates    *CachingStore
	Products ProductDirectory
	Bus      *events.Bus
	Log      zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		rates:    cfg.Rates,
		products: cfg.Products,
		validate: validator.New(),
		bus:      cfg.Bus,
		log:      cfg.Log,
	}
}

// emit publishes a domain event when a bus is configured. Event failures are
// logged, never surfaced: the override write already succeeded.
func (s *Service) emit(ctx context.Context, topic, subject string, payload any) {
	if s.bus == nil {
		return
	}
	if _, err := s.bus.Emit(ctx, topic, subject, payload); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Msg("event emit failed")
	}
}

// List returns paginated overrides with product names.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Override, int64, error) {
	return s.rates.List(ctx, limit, offset)
}

// ProductRates returns the country→rate map of one product.
func (s *Service) ProductRates(ctx context.Context, productID int64) (map[string]decimal.Decimal, error) {
	if productID <= 0 {
		return nil, common.NewAppError("VALIDATION", "product id must be positive", http.StatusBadRequest, nil)
	}
	return s.rates.ProductRates(ctx, productID)
}

// Upsert validates and writes one override.
func (s *Service) Upsert(ctx context.Context, productID int64, input UpsertInput) (Override, error) {
	if productID <= 0 {
		return Override{}, common.NewAppError("VALIDATION", "product id must be positive", http.StatusBadRequest, nil)
	}
	if err := s.validate.Struct(input); err != nil {
		return Override{}, common.NewAppError("VALIDATION", "invalid override payload", http.StatusBadRequest, err)
	}
	if input.Rate.IsNegative() || input.Rate.GreaterThan(decimal.NewFromInt(100)) {
		return Override{}, common.NewAppError("VALIDATION", "rate must be between 0 and 100", http.StatusBadRequest, nil)
	}
	name, exists, err := s.products.ProductName(ctx, productID)
	if err != nil {
		return Override{}, fmt.Errorf("product lookup: %w", err)
	}
	if !exists {
		return Override{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)
	}
	country := strings.ToUpper(strings.TrimSpace(input.Country))
	if err := s.rates.Upsert(ctx, productID, country, input.Rate); err != nil {
		return Override{}, err
	}
	s.emit(ctx, events.TopicRateChanged, subject(productID, country), map[string]string{"rate": input.Rate.String()})
	return Override{ProductID: productID, ProductName: name, Country: country, Rate: input.Rate}, nil
}

// Delete removes one pair.
func (s *Service) Delete(ctx context.Context, productID int64, country string) error {
	country = strings.ToUpper(strings.TrimSpace(country))
	err := s.rates.Delete(ctx, productID, country)
	if errors.Is(err, ErrNotFound) {
		return common.NewAppError("NOT_FOUND", "override not found", http.StatusNotFound, err)
	}
	if err == nil {
		s.emit(ctx, events.TopicRateDeleted, subject(productID, country), nil)
	}
	return err
}

// DeleteProduct removes every override of one product.
func (s *Service) DeleteProduct(ctx context.Context, productID int64) error {
	if productID <= 0 {
		return common.NewAppError("VALIDATION", "product id must be positive", http.StatusBadRequest, nil)
	}
	if err := s.rates.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.emit(ctx, events.TopicRateDeleted, strconv.FormatInt(productID, 10), nil)
	return nil
}

// DeleteAll wipes the override table.
func (s *Service) DeleteAll(ctx context.Context) error {
	if err := s.rates.DeleteAll(ctx); err != nil {
		return err
	}
	s.emit(ctx, events.TopicRatesWiped, "all", nil)
	return nil
}

func subject(productID int64, country string) string {
	return strconv.FormatInt(productID, 10) + ":" + country
}

// Export renders the full override table as CSV.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	overrides := make([]Override, 0, 256)
	offset := 0
	for {
		page, _, err := s.rates.List(ctx, 500, offset)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, page...)
		if len(page) < 500 {
			break
		}
		offset += len(page)
	}
	return ExportCSV(overrides)
}

// Import applies a CSV upload row by row.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	imp := Importer{Rates: s.rates, Products: s.products}
	result, err := imp.Import(ctx, r)
	if err == nil && result.Imported > 0 {
		s.emit(ctx, events.TopicRatesImported, "csv", map[string]int{
			"imported": result.Imported,
			"skipped":  result.Skipped,
		})
	}
	return result, err
}
