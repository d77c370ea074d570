package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"autoquote/internal"
	"autoquote/internal/config"
)

// Seller is the issuing business printed in the document header.
type Seller struct {
	Name    string
	Address string
	Email   string
	Phone   string
	TaxID   string
}

func SellerFromConfig(cfg config.Config) Seller {
	return Seller{
		Name:    cfg.CompanyName,
		Address: cfg.CompanyAddress,
		Email:   cfg.CompanyEmail,
		Phone:   cfg.CompanyPhone,
		TaxID:   cfg.CompanyTaxID,
	}
}

type PDFRenderer struct {
	seller Seller
}

func NewPDFRenderer(seller Seller) *PDFRenderer {
	return &PDFRenderer{seller: seller}
}

var columns = []struct {
	title string
	width float64
	align string
}{
	{"#", 8, "C"},
	{"Description", 62, "L"},
	{"HSN", 18, "C"},
	{"Qty", 14, "R"},
	{"Rate", 24, "R"},
	{"Local Tax", 20, "R"},
	{"Central Tax", 20, "R"},
	{"Amount", 24, "R"},
}

// Render lays out an A4 quotation for q.
func (r *PDFRenderer) Render(q internal.Quote) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// --- Header ---
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(120, 10, tr(r.seller.Name), "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 10, "QUOTATION", "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, line := range nonEmpty(r.seller.Address, r.seller.Email, r.seller.Phone, labelled("Tax ID", r.seller.TaxID)) {
		pdf.CellFormat(190, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(95, 6, "Quote No: "+q.Number, "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 6, "Date: "+q.IssuedAt.Format("02-Jan-2006"), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, "Valid Until: "+q.ValidUntil.Format("02-Jan-2006"), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	// --- Billing & Shipping ---
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(95, 7, "Bill To", "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Ship To", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	top := pdf.GetY()
	billTo := strings.Join(nonEmpty(q.CustomerName, q.Company, q.BillingAddress, q.CustomerEmail, labelled("Tax ID", q.TaxID)), "\n")
	pdf.MultiCell(90, 5, tr(billTo), "", "L", false)
	billBottom := pdf.GetY()
	pdf.SetXY(105, top)
	shipTo := strings.Join(nonEmpty(q.CustomerName, q.ShippingAddress), "\n")
	pdf.MultiCell(90, 5, tr(shipTo), "", "L", false)
	if billBottom > pdf.GetY() {
		pdf.SetY(billBottom)
	}
	pdf.Ln(6)

	// --- Items ---
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	for i, c := range columns {
		ln := 0
		if i == len(columns)-1 {
			ln = 1
		}
		pdf.CellFormat(c.width, 8, c.title, "1", ln, "C", true, 0, "")
	}
	pdf.SetFont("Arial", "", 9)
	for i, item := range q.Items {
		cells := []string{
			fmt.Sprintf("%d", i+1),
			truncate(item.Name, 40),
			item.HSNCode,
			fmt.Sprintf("%d %s", item.Quantity, item.Unit),
			money(item.UnitPrice),
			money(item.Total * q.LocalTaxRate),
			money(item.Total * q.CentralTaxRate),
			money(item.Total),
		}
		for j, c := range columns {
			ln := 0
			if j == len(columns)-1 {
				ln = 1
			}
			pdf.CellFormat(c.width, 7, tr(cells[j]), "1", ln, c.align, false, 0, "")
		}
		if item.Specifications != "" {
			pdf.SetFont("Arial", "I", 8)
			pdf.CellFormat(columns[0].width, 5, "", "LR", 0, "", false, 0, "")
			pdf.MultiCell(190-columns[0].width, 5, tr(truncate(item.Specifications, 200)), "R", "L", false)
			pdf.SetFont("Arial", "", 9)
		}
	}
	pdf.Ln(4)

	// --- Summary ---
	summary := []struct {
		label string
		value float64
	}{
		{"Subtotal", q.Subtotal},
		{fmt.Sprintf("Local Tax (%s%%)", percent(q.LocalTaxRate)), q.LocalTax},
		{fmt.Sprintf("Central Tax (%s%%)", percent(q.CentralTaxRate)), q.CentralTax},
		{"Total", q.Total},
	}
	for i, row := range summary {
		style := ""
		if i == len(summary)-1 {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(150, 7, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, money(row.value), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.MultiCell(190, 6, tr("Amount in words: "+q.TotalInWords), "", "L", false)

	if len(q.Unmatched) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(190, 6, "Not quoted (no catalog match):", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, u := range q.Unmatched {
			pdf.CellFormat(190, 5, tr(fmt.Sprintf("- %s x %d", u.Name, u.Quantity)), "", 1, "L", false, 0, "")
		}
	}

	// --- Terms ---
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(190, 6, "Terms & Conditions", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	terms := fmt.Sprintf("1. This quotation is valid until %s.\n2. Prices are inclusive of the taxes shown above.\n3. Delivery and payment terms as agreed at order confirmation.",
		q.ValidUntil.Format("02-Jan-2006"))
	pdf.MultiCell(190, 5, terms, "", "L", false)

	// --- Footer ---
	pdf.SetY(-20)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(190, 6, "This is a computer-generated quotation. No signature required.", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render quote %s: %w", q.Number, err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func percent(rate float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", rate*100), "0"), ".")
}

func labelled(label, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return label + ": " + value
}

func nonEmpty(values ...string) []string {
	out := []string{}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
