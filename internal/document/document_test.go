package document

import (
	"strings"
	"testing"
	"time"

	"invoiceflow/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func strp(s string) *string { return &s }

func date(y int, m time.Month, d int) datatypes.Date {
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func sampleInvoice() (*model.Invoice, []model.InvoiceItem) {
	inv := &model.Invoice{
		InvoiceNo:   "INV-ACME-2603-007",
		PeriodStart: date(2026, 3, 1),
		PeriodEnd:   date(2026, 3, 31),
		Status:      model.StatusApproved,
		Subtotal:    decimal.NewFromInt(3500),
		Tax:         decimal.NewFromInt(350),
		Total:       decimal.NewFromInt(3850),
		Partner: &model.Partner{
			Name:        "山田運輸 株式会社",
			BillingCode: strp("ACME"),
		},
	}
	items := []model.InvoiceItem{
		{Description: "定期便", Quantity: decimal.NewFromInt(2), Unit: model.UnitStop, UnitPrice: decimal.NewFromInt(1000), Amount: decimal.NewFromInt(2000)},
		{Description: "夜間便", Quantity: decimal.NewFromInt(3), Unit: model.UnitHour, UnitPrice: decimal.NewFromInt(500), Amount: decimal.NewFromInt(1500),
			IsOvertime: true, VehicleNo: strp("品川 100 あ 12-34"), DriverName: strp("佐藤")},
	}
	return inv, items
}

func TestFormatYen(t *testing.T) {
	assert.Equal(t, "¥0", FormatYen(decimal.Zero))
	assert.Equal(t, "¥3,850", FormatYen(decimal.NewFromInt(3850)))
	assert.Equal(t, "¥1,234,567", FormatYen(decimal.RequireFromString("1234567.89")))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "100", FormatNumber(decimal.NewFromInt(100)))
	assert.Equal(t, "1.5", FormatNumber(decimal.RequireFromString("1.50")))
	assert.Equal(t, "-12,000", FormatNumber(decimal.NewFromInt(-12000)))
}

func TestUnitLabel(t *testing.T) {
	assert.Equal(t, "件", UnitLabel("stop"))
	assert.Equal(t, "時間", UnitLabel("hour"))
	assert.Equal(t, "その他", UnitLabel("other"))
	assert.Equal(t, "pallet", UnitLabel("pallet"))
}

func TestNewInvoiceView(t *testing.T) {
	inv, items := sampleInvoice()
	v := NewInvoiceView(inv, items, Company{Name: "Issuer"}, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "2026年4月2日", v.IssueDate)
	assert.Equal(t, "2026年3月1日", v.PeriodStart)
	assert.Equal(t, DefaultDueDate, v.DueDate)
	assert.Equal(t, "¥3,850", v.Total)
	assert.True(t, v.HasSpecial)
	assert.Equal(t, 2, v.ItemCount)
	assert.Equal(t, "2", v.TotalStops)
	assert.Equal(t, "3", v.TotalHours)
	assert.Empty(t, v.TotalKM)
	require.Len(t, v.Lines, 2)
	assert.Equal(t, "件", v.Lines[0].Unit)
	assert.True(t, v.Lines[1].Special)
}

func TestNewInvoiceView_DueDate(t *testing.T) {
	inv, items := sampleInvoice()
	due := date(2026, 4, 30)
	inv.PaymentDueDate = &due
	v := NewInvoiceView(inv, items, Company{}, time.Now())
	assert.Equal(t, "2026年4月30日", v.DueDate)
}

func TestRenderHTML(t *testing.T) {
	inv, items := sampleInvoice()
	html, err := RenderHTML(NewInvoiceView(inv, items, Company{Name: "Issuer", Bank: "みずほ銀行"}, time.Now()))
	require.NoError(t, err)

	assert.Contains(t, html, "INV-ACME-2603-007")
	assert.Contains(t, html, "山田運輸 株式会社 御中")
	assert.Contains(t, html, "夜間便※")
	assert.Contains(t, html, "車両: 品川 100 あ 12-34")
	assert.Contains(t, html, SpecialRateNote)
	assert.Contains(t, html, "¥3,850")
	assert.Contains(t, html, "size: A4; margin: 2cm 1cm;")
}

func TestRenderHTML_EscapesInput(t *testing.T) {
	inv, _ := sampleInvoice()
	items := []model.InvoiceItem{{Description: "<script>alert(1)</script>", Unit: model.UnitOther}}
	html, err := RenderHTML(NewInvoiceView(inv, items, Company{}, time.Now()))
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert(1)</script>")
}

func TestRenderHTML_NoItems(t *testing.T) {
	inv, _ := sampleInvoice()
	html, err := RenderHTML(NewInvoiceView(inv, nil, Company{}, time.Now()))
	require.NoError(t, err)
	assert.Contains(t, html, "明細がありません")
	assert.False(t, strings.Contains(html, SpecialRateNote))
}

func TestFilename(t *testing.T) {
	inv, _ := sampleInvoice()
	assert.Equal(t, "invoice_202603_山田運輸_株式会社_INV-ACME-2603-007.pdf", Filename(inv, inv.Partner.Name))
	assert.Equal(t, "invoice_202603_ABCDEFGHIJKLMNOPQRST_INV-ACME-2603-007.pdf",
		Filename(inv, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
}

func TestStorageKey(t *testing.T) {
	inv, _ := sampleInvoice()
	key, name := StorageKey(inv, "Acme Co.", time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, "invoice_2026-04-02_INV_ACME_2603_007_Acme_Co_.pdf", name)
	assert.Equal(t, "invoices/2026/04/"+name, key)
}

func sampleReport() DailyReport {
	return DailyReport{
		Date:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Driver:   "佐藤 Taro-2",
		Count:    12,
		Distance: decimal.RequireFromString("84.5"),
	}
}

func TestNewReportView(t *testing.T) {
	v := NewReportView(sampleReport(), time.Date(2026, 3, 31, 18, 5, 0, 0, time.UTC))

	assert.Equal(t, "2026年3月31日火曜日", v.Date)
	assert.Equal(t, 12, v.Count)
	assert.Equal(t, "84.5", v.Distance)
	assert.Equal(t, "7.0", v.AvgDistance)
	assert.Equal(t, "14.2", v.Efficiency)
	assert.Equal(t, "2026/3/31 18:05", v.GeneratedAt)
	assert.Equal(t, "RPT-20260331-TARO2", v.DocumentID)
}

func TestNewReportView_ZeroDivisors(t *testing.T) {
	r := sampleReport()
	r.Count, r.Distance = 0, decimal.Zero
	v := NewReportView(r, time.Now())
	assert.Equal(t, "0.0", v.AvgDistance)
	assert.Equal(t, "0.0", v.Efficiency)
}

func TestRenderReportHTML(t *testing.T) {
	r := sampleReport()
	html, err := RenderReportHTML(NewReportView(r, time.Now()))
	require.NoError(t, err)
	assert.Contains(t, html, "配送日報レポート")
	assert.Contains(t, html, "佐藤 Taro-2")
	assert.Contains(t, html, "14.2 件/100km")
	assert.NotContains(t, html, "メモ・特記事項")

	r.Note = "<b>裏口</b>から搬入"
	html, err = RenderReportHTML(NewReportView(r, time.Now()))
	require.NoError(t, err)
	assert.Contains(t, html, "メモ・特記事項")
	assert.NotContains(t, html, "<b>裏口</b>")
}

func TestReportNames(t *testing.T) {
	r := sampleReport()
	r.Driver = "佐藤 Taro"
	assert.Equal(t, "delivery_report_2026-03-31_佐藤_Taro.pdf", ReportFilename(r))

	key, name := ReportStorageKey(r.Driver, time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, "delivery_report_2026-04-02_佐藤_Taro.pdf", name)
	assert.Equal(t, "reports/2026/04/"+name, key)
}

func TestLookupReportTemplate(t *testing.T) {
	tmpl, ok := LookupReportTemplate("daily")
	require.True(t, ok)
	assert.Equal(t, "daily", tmpl.Type)
	assert.True(t, strings.HasPrefix(tmpl.Source, "<!DOCTYPE html>"))
	assert.Contains(t, tmpl.Placeholders, "Driver")
	assert.Contains(t, tmpl.Placeholders, "Note")
	assert.Contains(t, tmpl.Placeholders, "DocumentID")
	assert.NotContains(t, tmpl.Placeholders, "")

	_, ok = LookupReportTemplate("vehicle")
	assert.False(t, ok)
	assert.Equal(t, []string{"daily"}, ReportTypes())
}
