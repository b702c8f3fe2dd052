package rates

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/obs"
)

var csvHeader = []string{"Product Name", "Product ID", "Country", "Tax Rate"}

// ProductDirectory answers whether a product exists and what it is called.
type ProductDirectory interface {
	ProductName(ctx context.Context, productID int64) (string, bool, error)
}

// RowError records why a single import row was rejected.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportResult summarises a CSV import run.
type ImportResult struct {
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
}

// ExportCSV renders every override as CSV. The product name column is
// informational only; import ignores it.
func ExportCSV(overrides []Override) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		record := []string{o.ProductName, strconv.FormatInt(o.ProductID, 10), o.Country, o.Rate.String()}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RateWriter accepts validated overrides.
type RateWriter interface {
	Upsert(ctx context.Context, productID int64, country string, rate decimal.Decimal) error
}

// Importer validates CSV rows against the product directory and writes the
// valid ones through the rate writer.
type Importer struct {
	Rates    RateWriter
	Products ProductDirectory
}

// Import reads CSV rows and upserts each valid override. Invalid rows are
// collected per line and never abort the run. The first row is skipped when
// it matches the export header.
func (imp Importer) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := ImportResult{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Line: line, Reason: "malformed row"})
			continue
		}
		if line == 1 && isHeader(record) {
			continue
		}
		if reason := imp.importRow(ctx, record); reason != "" {
			result.Skipped++
			result.Errors = append(result.Errors, RowError{Line: line, Reason: reason})
			obs.IncRateImportRow("skipped")
			continue
		}
		result.Imported++
		obs.IncRateImportRow("ok")
	}
	return result, nil
}

// importRow applies one record and returns a rejection reason, or "" on
// success. Only columns 2-4 matter: product id, country, rate.
func (imp Importer) importRow(ctx context.Context, record []string) string {
	if len(record) < 4 {
		return "expected 4 columns"
	}
	productID, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
	if err != nil || productID <= 0 {
		return "invalid product id"
	}
	country := strings.ToUpper(strings.TrimSpace(record[2]))
	if len(country) != 2 {
		return "invalid country code"
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(record[3]))
	if err != nil {
		return "invalid tax rate"
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return "tax rate out of range"
	}
	_, exists, err := imp.Products.ProductName(ctx, productID)
	if err != nil {
		return fmt.Sprintf("product lookup failed: %v", err)
	}
	if !exists {
		return "unknown product"
	}
	if err := imp.Rates.Upsert(ctx, productID, country, rate); err != nil {
		return fmt.Sprintf("write failed: %v", err)
	}
	return ""
}

func isHeader(record []string) bool {
	if len(record) != len(csvHeader) {
		return false
	}
	for i, field := range record {
		if !strings.EqualFold(strings.TrimSpace(field), csvHeader[i]) {
			return false
		}
	}
	return true
}
