package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders doc as an A4 report. chartPNG may be nil.
func WritePDF(w io.Writer, doc Document, chartPNG []byte) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Title band
	pdf.SetFillColor(30, 64, 175)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 15)
	pdf.CellFormat(180, 12, "ESTIMATE INSIGHT REPORT: PROJECT POST-MORTEM", "", 1, "C", true, 0, "")
	pdf.SetTextColor(55, 65, 81)
	pdf.Ln(4)

	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	pdf.SetFont("Arial", "B", 10)
	for _, kv := range [][2]string{
		{"Project Name:", doc.Project},
		{"Reporting Period:", created.Format("January 2006")},
		{"Report Generated On:", time.Now().Format("January 02, 2006")},
	} {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 6, kv[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(135, 6, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	s := doc.Summary
	section(pdf, "1. PROJECT BUDGET SUMMARY")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(180, 5, tr(fmt.Sprintf("Overall performance: this project came in %s by %s (%s).",
		strings.ToLower(StatusLabel(s)), Money(s.TotalVariance.Abs()), PercentASCII(s.TotalVariancePct))), "", "L", false)
	pdf.Ln(2)
	pdf.SetFillColor(209, 213, 219)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 7, "Budget Overview", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 7, "Amount", "1", 1, "R", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, kv := range [][2]string{
		{"Original Budget", Money(s.TotalEstimated)},
		{"Actual Spending", Money(s.TotalActual)},
		{"Difference", SignedMoney(s.TotalVariance)},
		{"Categories over / under budget", fmt.Sprintf("%d / %d", s.OverBudget, s.UnderBudget)},
		{"Largest overrun", extremum(s.BiggestOverrun)},
		{"Largest underrun", extremum(s.BiggestUnderrun)},
	} {
		pdf.CellFormat(90, 6, kv[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, tr(kv[1]), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, "2. VARIANCE BY CATEGORY")
	widths := []float64{60, 30, 30, 30, 30}
	header := func() {
		pdf.SetFillColor(55, 65, 81)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Arial", "B", 9)
		for i, h := range []string{"Category", "Estimated", "Actual", "Variance", "Variance %"} {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(55, 65, 81)
		pdf.SetFont("Arial", "", 9)
	}
	header()
	for _, r := range doc.Rows {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			header()
		}
		switch r.Variance.Sign() {
		case 1:
			pdf.SetTextColor(211, 47, 47)
		case -1:
			pdf.SetTextColor(56, 142, 60)
		default:
			pdf.SetTextColor(55, 65, 81)
		}
		pdf.CellFormat(widths[0], 6, tr(truncate(r.Category, 34)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, Money(r.Estimated), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 6, Money(r.Actual), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, SignedMoney(r.Variance), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, PercentASCII(r.VariancePct), "1", 1, "R", false, 0, "")
	}
	pdf.SetTextColor(55, 65, 81)
	pdf.Ln(4)

	if len(chartPNG) > 0 {
		pdf.AddPage()
		section(pdf, "3. VARIANCE CHART")
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader("chart", opts, bytes.NewReader(chartPNG))
		pdf.ImageOptions("chart", 15, pdf.GetY()+2, 180, 0, true, opts, 0, "")
		pdf.Ln(4)
	}

	if doc.Narrative != "" {
		if pdf.GetY() > 200 {
			pdf.AddPage()
		}
		section(pdf, "4. ANALYSIS")
		pdf.SetFont("Arial", "", 10)
		for _, para := range strings.Split(plainText(doc.Narrative), "\n\n") {
			if strings.TrimSpace(para) == "" {
				continue
			}
			pdf.MultiCell(180, 5, tr(strings.TrimSpace(para)), "", "J", false)
			pdf.Ln(2)
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 7)
	pdf.SetTextColor(156, 163, 175)
	pdf.CellFormat(180, 4, "Powered by Estimate Insight - cost variance analysis", "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFillColor(229, 231, 235)
	pdf.SetTextColor(31, 41, 55)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(180, 8, title, "", 1, "L", true, 0, "")
	pdf.SetTextColor(55, 65, 81)
	pdf.Ln(2)
}

// plainText drops markdown emphasis the model tends to emit.
func plainText(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimLeft(l, "# ")
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

// PDFFilename builds "<Project_Name>_<YYYYMMDD>.pdf" from alphanumerics,
// spaces, dashes and underscores, capped at 50 characters.
func PDFFilename(project string, now time.Time) string {
	var b strings.Builder
	for _, r := range project {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	name := []rune(b.String())
	if len(name) > 50 {
		name = name[:50]
	}
	if len(name) == 0 {
		name = []rune("report")
	}
	return fmt.Sprintf("%s_%s.pdf", string(name), now.Format("20060102"))
}
