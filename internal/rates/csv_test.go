package rates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

type fakeDirectory struct {
	names map[int64]string
}

func (f fakeDirectory) ProductName(_ context.Context, productID int64) (string, bool, error) {
	name, ok := f.names[productID]
	return name, ok, nil
}

type recordingWriter struct {
	written map[Key]decimal.Decimal
}

func (r *recordingWriter) Upsert(_ context.Context, productID int64, country string, rate decimal.Decimal) error {
	if r.written == nil {
		r.written = make(map[Key]decimal.Decimal)
	}
	r.written[Key{ProductID: productID, Country: country}] = rate
	return nil
}

func TestExportCSVQuotesNamesWithCommas(t *testing.T) {
	data, err := ExportCSV([]Override{
		{ProductID: 123, ProductName: `Premium eBook, "Special" Edition`, Country: "DE", Rate: decimal.RequireFromString("7")},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "Product Name,Product ID,Country,Tax Rate" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != `"Premium eBook, ""Special"" Edition",123,DE,7` {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestImportSkipsHeaderAndAppliesRows(t *testing.T) {
	writer := &recordingWriter{}
	imp := Importer{
		Rates:    writer,
		Products: fakeDirectory{names: map[int64]string{123: "eBook", 456: "Video"}},
	}

	input := strings.Join([]string{
		"Product Name,Product ID,Country,Tax Rate",
		"eBook,123,DE,7",
		"Video,456,fr,5.5",
	}, "\n")
	result, err := imp.Import(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 2 || result.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !writer.written[Key{ProductID: 123, Country: "DE"}].Equal(decimal.NewFromInt(7)) {
		t.Fatalf("missing DE row: %v", writer.written)
	}
	// Country codes are normalised to upper case.
	if !writer.written[Key{ProductID: 456, Country: "FR"}].Equal(decimal.RequireFromString("5.5")) {
		t.Fatalf("missing FR row: %v", writer.written)
	}
}

func TestImportCollectsRowErrorsWithoutAborting(t *testing.T) {
	writer := &recordingWriter{}
	imp := Importer{
		Rates:    writer,
		Products: fakeDirectory{names: map[int64]string{123: "eBook"}},
	}

	input := strings.Join([]string{
		"Product Name,Product ID,Country,Tax Rate",
		"eBook,123,DE,7",
		"Ghost,999,DE,7",
		"eBook,123,GERMANY,7",
		"eBook,123,DE,120",
		"eBook,abc,DE,7",
		"eBook,123,FR,19",
	}, "\n")
	result, err := imp.Import(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("expected 2 imported, got %+v", result)
	}
	if result.Skipped != 4 || len(result.Errors) != 4 {
		t.Fatalf("expected 4 rejected rows, got %+v", result)
	}
	reasons := make([]string, 0, len(result.Errors))
	for _, rowErr := range result.Errors {
		reasons = append(reasons, rowErr.Reason)
	}
	want := []string{"unknown product", "invalid country code", "tax rate out of range", "invalid product id"}
	for i, reason := range want {
		if reasons[i] != reason {
			t.Fatalf("expected reasons %v, got %v", want, reasons)
		}
	}
}

func TestImportRoundTripsExport(t *testing.T) {
	original := []Override{
		{ProductID: 123, ProductName: "eBook", Country: "DE", Rate: decimal.RequireFromString("7")},
		{ProductID: 123, ProductName: "eBook", Country: "FR", Rate: decimal.RequireFromString("5.5")},
		{ProductID: 456, ProductName: "Video, Deluxe", Country: "DE", Rate: decimal.RequireFromString("19")},
	}
	data, err := ExportCSV(original)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	writer := &recordingWriter{}
	imp := Importer{
		Rates:    writer,
		Products: fakeDirectory{names: map[int64]string{123: "eBook", 456: "Video, Deluxe"}},
	}
	result, err := imp.Import(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != len(original) || result.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for _, o := range original {
		got, ok := writer.written[Key{ProductID: o.ProductID, Country: o.Country}]
		if !ok || !got.Equal(o.Rate) {
			t.Fatalf("round trip lost %+v, got %v", o, writer.written)
		}
	}
}
