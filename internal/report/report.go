package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"electrostock/internal/domain"
)

// Preset periods, all ending today.
const (
	PeriodLastWeek        = "last_week"
	PeriodLastTwoWeeks    = "last_two_weeks"
	PeriodLastMonth       = "last_month"
	PeriodLastTwoMonths   = "last_two_months"
	PeriodLastThreeMonths = "last_three_months"
	PeriodLastSemester    = "last_semester"
	PeriodLastYear        = "last_year"
)

// Range resolves a preset period to a closed [from, to] range ending
// at the end of the current day.
func Range(period string, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1).Add(-time.Nanosecond)

	var start time.Time
	switch period {
	case PeriodLastWeek:
		start = now.AddDate(0, 0, -7)
	case PeriodLastTwoWeeks:
		start = now.AddDate(0, 0, -14)
	case PeriodLastMonth:
		start = now.AddDate(0, -1, 0)
	case PeriodLastTwoMonths:
		start = now.AddDate(0, -2, 0)
	case PeriodLastThreeMonths:
		start = now.AddDate(0, -3, 0)
	case PeriodLastSemester:
		start = now.AddDate(0, -6, 0)
	case PeriodLastYear:
		start = now.AddDate(-1, 0, 0)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
	}

	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return from, to, nil
}

const dateLayout = "2006-01-02"

// FileName returns the export file name for a report kind and format,
// e.g. Reporte_ventas.csv.
func FileName(kind string, format string) string {
	return fmt.Sprintf("Reporte_%s.%s", kind, format)
}

// RenderSalesTXT renders the sales report in the plain-text layout
// used by the export files.
func RenderSalesTXT(r domain.SalesReport) string {
	var b strings.Builder
	b.WriteString("REPORTE: VENTAS\n")
	fmt.Fprintf(&b, "Periodo: %s a %s\n\n", r.From.Format(dateLayout), r.To.Format(dateLayout))
	fmt.Fprintf(&b, "Total ventas:    %s\n", formatMoney(r.TotalSales))
	fmt.Fprintf(&b, "Total compras:   %s\n", formatMoney(r.TotalPurchases))
	fmt.Fprintf(&b, "Ganancia bruta:  %s\n", formatMoney(r.GrossProfit))
	fmt.Fprintf(&b, "Promedio diario: %s\n", formatMoney(r.DailyAverage))

	if len(r.ByProduct) > 0 {
		b.WriteString("\nVentas por producto:\n")
		for _, row := range r.ByProduct {
			fmt.Fprintf(&b, "  %-30s %6d  %s\n", row.Name, row.Quantity, formatMoney(row.Total))
		}
	}
	if len(r.ByEmployee) > 0 {
		b.WriteString("\nVentas por empleado:\n")
		for _, row := range r.ByEmployee {
			fmt.Fprintf(&b, "  %-30s %s\n", row.Name, formatMoney(row.Total))
		}
	}
	return b.String()
}

// RenderSalesCSV renders the sales report as CSV sections with the
// fixed headers consumed by the office spreadsheet templates.
func RenderSalesCSV(r domain.SalesReport) string {
	var b strings.Builder
	b.WriteString("Tipo,Desde,Hasta,TotalVentas\n")
	fmt.Fprintf(&b, "VENTAS,%s,%s,%s\n", r.From.Format(dateLayout), r.To.Format(dateLayout), r.TotalSales.StringFixed(2))

	b.WriteString("\nEmpleado,TotalVentas\n")
	for _, row := range r.ByEmployee {
		fmt.Fprintf(&b, "%s,%s\n", csvEscape(row.Name), row.Total.StringFixed(2))
	}

	b.WriteString("\nProducto,Cantidad,Total\n")
	for _, row := range r.ByProduct {
		fmt.Fprintf(&b, "%s,%d,%s\n", csvEscape(row.Name), row.Quantity, row.Total.StringFixed(2))
	}
	return b.String()
}

func RenderInventoryTXT(r domain.InventoryReport) string {
	var b strings.Builder
	b.WriteString("REPORTE: INVENTARIO\n")
	fmt.Fprintf(&b, "Periodo: %s a %s\n\n", r.From.Format(dateLayout), r.To.Format(dateLayout))
	fmt.Fprintf(&b, "Productos sin movimiento: %d\n", len(r.IdleProducts))
	for _, row := range r.IdleProducts {
		fmt.Fprintf(&b, "  %-30s stock=%d precio=%s\n", row.Name, row.Stock, formatMoney(row.SalePrice))
	}
	return b.String()
}

func RenderInventoryCSV(r domain.InventoryReport) string {
	var b strings.Builder
	b.WriteString("Producto,Stock,PrecioVenta\n")
	for _, row := range r.IdleProducts {
		fmt.Fprintf(&b, "%s,%d,%s\n", csvEscape(row.Name), row.Stock, row.SalePrice.StringFixed(2))
	}
	return b.String()
}

// formatMoney writes a currency value with thousands separators and
// two decimals, e.g. 1,234.50.
func formatMoney(v decimal.Decimal) string {
	s := v.StringFixed(2)
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}

func csvEscape(field string) string {
	if strings.ContainsAny(field, ",\"\n") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}
