package infra

// pdf.go: customer receipt rendering with go-pdf/fpdf.
// Thermal-roll width (74mm); the page grows with the number of lines.
// Output: storagePath/{tenant_id}/{order_id}.pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"restopos/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const (
	receiptWidth    = 74.0
	receiptBaseH    = 90.0
	receiptLineH    = 5.0
	receiptNameCols = 26
)

// ReceiptPath is where the receipt of order is stored under storagePath.
func ReceiptPath(storagePath string, order *model.Order) string {
	return filepath.Join(storagePath, order.TenantID.String(), order.ID.String()+".pdf")
}

// GenerateReceiptPDF renders the receipt of a completed order. Items must be
// loaded with their Item, Variant and Addons. Returns the file path written.
func GenerateReceiptPDF(order *model.Order, payments []model.Payment, storagePath string) (string, error) {
	filePath := ReceiptPath(storagePath, order)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	lines := len(order.Items) + len(payments)
	for _, it := range order.Items {
		if len(it.Addons) > 0 || it.Variant != nil {
			lines++
		}
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: receiptWidth, Ht: receiptBaseH + float64(lines)*receiptLineH},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, "RECEIPT", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Order "+order.ID.String()[:8], "", 1, "C", false, 0, "")
	if order.Table != nil {
		pdf.CellFormat(contentW, 4, "Table "+tr(order.Table.Number), "", 1, "C", false, 0, "")
	}
	when := order.CreatedAt
	if order.CompletedAt != nil {
		when = *order.CompletedAt
	}
	pdf.CellFormat(contentW, 4, when.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	if order.WaiterName != "" {
		pdf.CellFormat(contentW, 4, "Served by "+tr(order.WaiterName), "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Items ─────────────────────────────────────────────────────────────────
	col1 := contentW * 0.55
	col2 := contentW * 0.13
	col3 := contentW * 0.32

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, it := range order.Items {
		if it.Status == model.ItemCancelled {
			continue
		}
		name := "item"
		if it.Item != nil {
			name = it.Item.Name
		}
		pdf.CellFormat(col1, receiptLineH, tr(truncate(name, receiptNameCols)), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, receiptLineH, fmt.Sprintf("x%d", it.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, receiptLineH, it.LineTotal().StringFixed(2), "", 1, "R", false, 0, "")

		if extra := lineExtras(it); extra != "" {
			pdf.SetFont("Helvetica", "I", 6)
			pdf.CellFormat(contentW, 4, "  "+tr(truncate(extra, receiptNameCols+10)), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 7)
		}
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ────────────────────────────────────────────────────────────────
	net := order.TotalAmount.Sub(order.TaxAmount).Sub(order.ServiceChargeAmount)
	if net.IsNegative() {
		net = decimal.Zero
	}
	amountRow(pdf, col1+col2, col3, "Subtotal:", net)
	if order.TaxAmount.IsPositive() {
		amountRow(pdf, col1+col2, col3, "Tax:", order.TaxAmount)
	}
	if order.ServiceChargeAmount.IsPositive() {
		amountRow(pdf, col1+col2, col3, "Service charge:", order.ServiceChargeAmount)
	}
	if order.DiscountAmount.IsPositive() {
		amountRow(pdf, col1+col2, col3, "Discount:", order.DiscountAmount.Neg())
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, order.TotalAmount.StringFixed(2), "", 1, "R", false, 0, "")

	// ── Payments ──────────────────────────────────────────────────────────────
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 7)
	for _, p := range payments {
		if p.Status != model.PaymentSuccess {
			continue
		}
		amountRow(pdf, col1+col2, col3, "Paid ("+p.Method+"):", p.Amount)
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you!", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func amountRow(pdf *fpdf.Fpdf, labelW, amountW float64, label string, amount decimal.Decimal) {
	pdf.CellFormat(labelW, 4, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(amountW, 4, amount.StringFixed(2), "", 1, "R", false, 0, "")
}

func lineExtras(it model.OrderItem) string {
	extra := ""
	if it.Variant != nil {
		extra = it.Variant.Name
	}
	for _, a := range it.Addons {
		if extra != "" {
			extra += ", "
		}
		extra += "+" + a.Name
	}
	return extra
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}
