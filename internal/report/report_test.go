package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"electrostock/internal/domain"
)

func TestRangePresets(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 4, 5, 0, time.UTC)

	cases := []struct {
		period   string
		wantFrom time.Time
	}{
		{PeriodLastWeek, time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)},
		{PeriodLastTwoWeeks, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)},
		{PeriodLastMonth, time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)},
		{PeriodLastThreeMonths, time.Date(2026, 5, 29, 0, 0, 0, 0, time.UTC)},
		{PeriodLastSemester, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodLastYear, time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		from, to, err := Range(tc.period, now)
		if err != nil {
			t.Fatalf("%s: %v", tc.period, err)
		}
		if !from.Equal(tc.wantFrom) {
			t.Fatalf("%s: expected from %s, got %s", tc.period, tc.wantFrom, from)
		}
		wantTo := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
		if !to.Equal(wantTo) {
			t.Fatalf("%s: expected to %s, got %s", tc.period, wantTo, to)
		}
	}
}

func TestRangeRejectsUnknownPeriod(t *testing.T) {
	if _, _, err := Range("fortnightly", time.Now()); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}

func sampleSalesReport() domain.SalesReport {
	return domain.SalesReport{
		From:           time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:             time.Date(2026, 8, 29, 23, 59, 59, 0, time.UTC),
		TotalSales:     decimal.NewFromFloat(12345.50),
		TotalPurchases: decimal.NewFromFloat(8000),
		GrossProfit:    decimal.NewFromFloat(4345.50),
		DailyAverage:   decimal.NewFromFloat(425.71),
		ByProduct: []domain.ProductSales{
			{ProductID: "prd-1", Name: "Memoria USB 32GB", Quantity: 40, Total: decimal.NewFromFloat(359.60)},
		},
		ByEmployee: []domain.EmployeeSales{
			{UserID: "usr-1", Name: "Vendedor Demo", Total: decimal.NewFromFloat(12345.50)},
		},
	}
}

func TestRenderSalesTXT(t *testing.T) {
	out := RenderSalesTXT(sampleSalesReport())

	if !strings.HasPrefix(out, "REPORTE: VENTAS\n") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "Periodo: 2026-08-01 a 2026-08-29") {
		t.Fatalf("missing period line: %q", out)
	}
	if !strings.Contains(out, "12,345.50") {
		t.Fatalf("expected thousands separator in totals: %q", out)
	}
	if !strings.Contains(out, "Memoria USB 32GB") || !strings.Contains(out, "Vendedor Demo") {
		t.Fatalf("missing breakdown rows: %q", out)
	}
}

func TestRenderSalesCSVHeaders(t *testing.T) {
	out := RenderSalesCSV(sampleSalesReport())

	for _, header := range []string{
		"Tipo,Desde,Hasta,TotalVentas",
		"Empleado,TotalVentas",
		"Producto,Cantidad,Total",
	} {
		if !strings.Contains(out, header+"\n") {
			t.Fatalf("missing header %q in %q", header, out)
		}
	}
	if !strings.Contains(out, "VENTAS,2026-08-01,2026-08-29,12345.50") {
		t.Fatalf("missing summary row: %q", out)
	}
	if !strings.Contains(out, "Memoria USB 32GB,40,359.60") {
		t.Fatalf("missing product row: %q", out)
	}
}

func TestRenderInventoryCSV(t *testing.T) {
	out := RenderInventoryCSV(domain.InventoryReport{
		From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		IdleProducts: []domain.IdleProduct{
			{ProductID: "prd-2", Name: "Cable HDMI, 2m", Stock: 80, SalePrice: decimal.NewFromFloat(5.50)},
		},
	})

	if !strings.HasPrefix(out, "Producto,Stock,PrecioVenta\n") {
		t.Fatalf("missing header: %q", out)
	}
	// Names with commas are quoted.
	if !strings.Contains(out, `"Cable HDMI, 2m",80,5.50`) {
		t.Fatalf("expected quoted name row: %q", out)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("ventas", "txt"); got != "Reporte_ventas.txt" {
		t.Fatalf("unexpected file name %q", got)
	}
	if got := FileName("inventario", "csv"); got != "Reporte_inventario.csv" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{12.5, "12.50"},
		{1234.56, "1,234.56"},
		{1234567.89, "1,234,567.89"},
		{-9876.54, "-9,876.54"},
	}
	for _, tc := range cases {
		if got := formatMoney(decimal.NewFromFloat(tc.in)); got != tc.want {
			t.Fatalf("formatMoney(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
