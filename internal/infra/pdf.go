package infra

// pdf.go: browser-less renderer built on go-pdf/fpdf. It lays out the same
// invoice and daily report views the HTML templates use. Core fonts only cover Latin-1, so
// Japanese text needs PDF_FONT_PATH pointing at a UTF-8 TrueType font.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"invoiceflow/internal/document"

	"github.com/go-pdf/fpdf"
)

const fpdfUTF8Family = "invoice"

type FPDFEngine struct {
	fontPath string
}

func NewFPDFEngine(fontPath string) *FPDFEngine {
	return &FPDFEngine{fontPath: fontPath}
}

func (e *FPDFEngine) Name() string { return "fpdf" }

// sheet holds the fpdf document with the font family and text mapping in use.
type sheet struct {
	pdf    *fpdf.Fpdf
	family string
	text   func(string) string
}

// style drops bold for the UTF-8 font, which has a single style.
func (p *sheet) style(s string) string {
	if p.family == fpdfUTF8Family {
		return ""
	}
	return s
}

func (p *sheet) contentWidth() float64 {
	pageW, _ := p.pdf.GetPageSize()
	left, _, right, _ := p.pdf.GetMargins()
	return pageW - left - right
}

func (p *sheet) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("fpdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *FPDFEngine) newSheet() *sheet {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 20, 10)
	pdf.SetAutoPageBreak(true, 20)

	p := &sheet{pdf: pdf, family: "Helvetica", text: latin1}
	if e.fontPath != "" {
		pdf.AddUTF8Font(fpdfUTF8Family, "", e.fontPath)
		p.family, p.text = fpdfUTF8Family, func(s string) string { return s }
	}
	pdf.AddPage()
	return p
}

func (e *FPDFEngine) Render(ctx context.Context, doc *document.Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case doc.View != nil:
		return e.renderInvoice(doc.View)
	case doc.Report != nil:
		return e.renderReport(doc.Report)
	default:
		return nil, errors.New("fpdf: empty document")
	}
}

func (e *FPDFEngine) renderInvoice(v *document.InvoiceView) ([]byte, error) {
	p := e.newSheet()
	pdf, family, text, style := p.pdf, p.family, p.text, p.style
	left, _, _, _ := pdf.GetMargins()
	contentW := p.contentWidth()

	// Title
	pdf.SetFont(family, style("B"), 20)
	pdf.CellFormat(contentW, 12, text("請求書 INVOICE"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Bill-to and issuer
	half := contentW / 2
	y := pdf.GetY()
	pdf.SetFont(family, style("B"), 12)
	pdf.CellFormat(half, 7, text(v.PartnerName+" 御中"), "B", 2, "L", false, 0, "")
	pdf.SetFont(family, "", 9)
	for _, line := range []string{v.PartnerAddress, v.PartnerContact} {
		if line != "" {
			pdf.CellFormat(half, 5, text(line), "", 2, "L", false, 0, "")
		}
	}

	pdf.SetXY(left+half, y)
	pdf.SetFont(family, style("B"), 11)
	pdf.CellFormat(half, 6, text(v.Company.Name), "", 2, "R", false, 0, "")
	pdf.SetFont(family, "", 8)
	for _, line := range []string{v.Company.Address, v.Company.Phone, v.Company.Email, registration(v.Company.Registration)} {
		if line != "" {
			pdf.CellFormat(half, 4.5, text(line), "", 2, "R", false, 0, "")
		}
	}
	pdf.SetX(left)
	pdf.Ln(6)

	// Meta
	meta := [][2]string{
		{"請求番号 No.", v.InvoiceNo},
		{"発行日 Issued", v.IssueDate},
		{"請求期間 Period", v.PeriodStart + " ～ " + v.PeriodEnd},
		{"お支払期限 Due", v.DueDate},
	}
	pdf.SetFont(family, "", 9)
	for _, m := range meta {
		pdf.CellFormat(40, 6, text(m[0]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(contentW-40, 6, text(m[1]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// Total banner
	pdf.SetFont(family, style("B"), 14)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(contentW, 10, text("ご請求金額 "+v.Total), "1", 1, "C", true, 0, "")
	pdf.Ln(4)

	// Items
	cols := []float64{contentW * 0.14, contentW * 0.36, contentW * 0.12, contentW * 0.08, contentW * 0.14, contentW * 0.16}
	heads := []string{"日付", "内容", "数量", "単位", "単価", "金額"}
	pdf.SetFont(family, style("B"), 9)
	for i, h := range heads {
		pdf.CellFormat(cols[i], 7, text(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 8)
	for _, l := range v.Lines {
		desc := l.Description
		if l.Special {
			desc += "※"
		}
		row := []string{l.DeliveryDate, desc, l.Quantity, l.Unit, l.UnitPrice, l.Amount}
		aligns := []string{"C", "L", "R", "C", "R", "R"}
		for i, c := range row {
			pdf.CellFormat(cols[i], 6, text(c), "1", 0, aligns[i], false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(3)

	// Totals
	labelW := contentW * 0.7
	for _, t := range [][2]string{{"小計 Subtotal", v.Subtotal}, {"消費税 Tax", v.Tax}, {"合計 Total", v.Total}} {
		pdf.CellFormat(labelW, 6, text(t[0]), "", 0, "R", false, 0, "")
		pdf.CellFormat(contentW-labelW, 6, text(t[1]), "1", 1, "R", false, 0, "")
	}

	// Footer notes
	pdf.Ln(4)
	pdf.SetFont(family, "", 8)
	if v.HasSpecial {
		pdf.CellFormat(contentW, 5, text(document.SpecialRateNote), "", 1, "L", false, 0, "")
	}
	if v.Company.Bank != "" {
		pdf.CellFormat(contentW, 5, text("振込先: "+v.Company.Bank), "", 1, "L", false, 0, "")
	}

	return p.output()
}

// renderReport lays out the daily report: basics, the delivered count and
// the distance figures, then the note.
func (e *FPDFEngine) renderReport(v *document.ReportView) ([]byte, error) {
	p := e.newSheet()
	pdf, family, text, style := p.pdf, p.family, p.text, p.style
	contentW := p.contentWidth()

	pdf.SetFont(family, style("B"), 18)
	pdf.SetTextColor(37, 99, 235)
	pdf.CellFormat(contentW, 10, text("配送日報レポート"), "", 1, "C", false, 0, "")
	pdf.SetTextColor(107, 114, 128)
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(contentW, 6, text("Generated on "+v.GeneratedAt), "B", 1, "C", false, 0, "")
	pdf.SetTextColor(51, 51, 51)
	pdf.Ln(6)

	row := func(label, value string) {
		pdf.SetFillColor(249, 250, 251)
		pdf.CellFormat(contentW*0.3, 8, text(label), "1", 0, "L", true, 0, "")
		pdf.CellFormat(contentW*0.7, 8, text(value), "1", 1, "L", false, 0, "")
	}
	pdf.SetFont(family, "", 10)
	row("作業日", v.Date)
	row("ドライバー", v.Driver)
	pdf.Ln(6)

	pdf.SetFont(family, style("B"), 20)
	pdf.SetFillColor(37, 99, 235)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(contentW, 14, text(fmt.Sprintf("%d 配送完了件数", v.Count)), "", 1, "C", true, 0, "")
	pdf.SetTextColor(51, 51, 51)
	pdf.Ln(6)

	pdf.SetFont(family, "", 10)
	row("総走行距離", v.Distance+" km")
	row("平均距離/件", v.AvgDistance+" km")
	row("配送効率", v.Efficiency+" 件/100km")

	if v.Note != "" {
		pdf.Ln(6)
		pdf.SetFont(family, style("B"), 11)
		pdf.CellFormat(contentW, 7, text("メモ・特記事項"), "B", 1, "L", false, 0, "")
		pdf.SetFont(family, "", 10)
		pdf.MultiCell(contentW, 6, text(v.Note), "1", "L", false)
	}

	pdf.Ln(10)
	pdf.SetFont(family, "", 8)
	pdf.SetTextColor(156, 163, 175)
	pdf.CellFormat(contentW, 5, text(v.GeneratedAt+" - Document ID: "+v.DocumentID), "T", 1, "C", false, 0, "")

	return p.output()
}

func registration(no string) string {
	if no == "" {
		return ""
	}
	return "登録番号: " + no
}

// latin1 maps text to the core-font encoding; runes outside Latin-1 become '?'.
func latin1(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 256 {
			b.WriteByte(byte(r))
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
