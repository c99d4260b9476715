package cashclose

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"roxtor/backend/internal/domain"
)

const separator = "--------------------------"

// SummaryText renders one store's closing as the message staff forward to
// management.
func SummaryText(report Report, summary StoreSummary) string {
	rate := report.BCVRate
	bs := func(usd decimal.Decimal) string { return usd.Mul(rate).StringFixed(2) }
	card := summary.Amount(domain.PaymentCardTerminal).Add(summary.Amount(domain.PaymentBiometric))

	var b strings.Builder
	b.WriteString("*CIERRE DE CAJA ROXTOR* 📊\n")
	fmt.Fprintf(&b, "📅 *FECHA:* %s\n", report.Date)
	fmt.Fprintf(&b, "🏪 *TIENDA:* %s\n", summary.Name)
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "💵 *DÓLARES ($):* $%s\n", summary.Amount(domain.PaymentCashUSD).StringFixed(2))
	fmt.Fprintf(&b, "💸 *EFECTIVO (Bs):* $%s (Bs. %s)\n", summary.Amount(domain.PaymentCashBs).StringFixed(2), bs(summary.Amount(domain.PaymentCashBs)))
	fmt.Fprintf(&b, "📱 *PAGO MÓVIL:* $%s (Bs. %s)\n", summary.Amount(domain.PaymentMobile).StringFixed(2), bs(summary.Amount(domain.PaymentMobile)))
	fmt.Fprintf(&b, "🔄 *TRANSF:* $%s\n", summary.Amount(domain.PaymentBankTransfer).StringFixed(2))
	fmt.Fprintf(&b, "💳 *PUNTO/BIO:* $%s\n", card.StringFixed(2))
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "💰 *TOTAL PERCIBIDO:* $%s\n", summary.TotalUSD.StringFixed(2))
	fmt.Fprintf(&b, "📈 *REF BCV:* %s\n\n", rate.String())
	b.WriteString("_Generado por Radar AI Operativo_")
	return b.String()
}

const sheet = "Cierre"

// WriteXLSX writes the report as a workbook with one row per store and
// method columns in closing order.
func WriteXLSX(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := []any{"TIENDA"}
	for _, method := range domain.PaymentMethods {
		header = append(header, string(method))
	}
	header = append(header, "TOTAL USD", "TOTAL BS")
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	row := 2
	for _, summary := range report.Stores {
		values := []any{summary.Name}
		for _, method := range domain.PaymentMethods {
			values = append(values, summary.Amount(method).InexactFloat64())
		}
		values = append(values, summary.TotalUSD.InexactFloat64(), summary.TotalBs.InexactFloat64())
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		row++
	}

	if report.TotalUSD != nil && report.TotalBs != nil {
		totalCol, err := excelize.ColumnNumberToName(len(domain.PaymentMethods) + 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "TOTAL GLOBAL"); err != nil {
			return err
		}
		values := []any{report.TotalUSD.InexactFloat64(), report.TotalBs.InexactFloat64()}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("%s%d", totalCol, row), &values); err != nil {
			return err
		}
		row++
	}

	if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row+1), "FECHA"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row+1), report.Date); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", row+2), "REF BCV"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", row+2), report.BCVRate.InexactFloat64()); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}
