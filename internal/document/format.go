package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"invoiceflow/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// FormatYen renders an amount as "¥1,234". Fractions are dropped.
func FormatYen(d decimal.Decimal) string {
	return "¥" + FormatNumber(d.Truncate(0))
}

// FormatNumber inserts thousands separators and keeps up to two decimals.
func FormatNumber(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// FormatDate renders a date as 2026年3月31日.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
}

func formatDatatypeDate(d *datatypes.Date) string {
	if d == nil {
		return ""
	}
	return FormatDate(time.Time(*d))
}

var unitLabels = map[string]string{
	model.UnitStop:  "件",
	model.UnitKM:    "km",
	model.UnitHour:  "時間",
	model.UnitOther: "その他",
}

// UnitLabel maps a billing unit to its printed label.
func UnitLabel(unit string) string {
	if l, ok := unitLabels[unit]; ok {
		return l
	}
	return unit
}

var (
	// ASCII alphanumerics plus hiragana, katakana and common kanji survive.
	unsafeName = regexp.MustCompile(`[^a-zA-Z0-9\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}]`)
	unsafeCode = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
)

// SanitizeName replaces anything outside the safe set with "_".
func SanitizeName(s string) string {
	return unsafeName.ReplaceAllString(s, "_")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Filename is the download name: invoice_{YYYYMM}_{partner}_{invoiceNo}.pdf,
// where YYYYMM is the billing period start and the partner name is cut to 20
// characters.
func Filename(inv *model.Invoice, partnerName string) string {
	start := time.Time(inv.PeriodStart)
	return fmt.Sprintf("invoice_%04d%02d_%s_%s.pdf",
		start.Year(), int(start.Month()),
		truncateRunes(SanitizeName(partnerName), 20),
		unsafeCode.ReplaceAllString(inv.InvoiceNo, "_"))
}

// StorageKey is the object key a saved PDF is stored under:
// invoices/{YYYY}/{MM}/invoice_{YYYY-MM-DD}_{invoiceNo}_{partner}.pdf.
func StorageKey(inv *model.Invoice, partnerName string, at time.Time) (key, filename string) {
	filename = fmt.Sprintf("invoice_%s_%s_%s.pdf",
		at.Format("2006-01-02"), SanitizeName(inv.InvoiceNo), SanitizeName(partnerName))
	key = fmt.Sprintf("invoices/%04d/%02d/%s", at.Year(), int(at.Month()), filename)
	return key, filename
}
