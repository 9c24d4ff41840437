package document

import (
	"bytes"
	"fmt"
	"html/template"
)

var invoiceTmpl = template.Must(template.New("invoice").Parse(invoiceHTML))

// RenderHTML renders the printable invoice page. The page is sized for A4
// with 2cm top/bottom and 1cm side margins.
func RenderHTML(v *InvoiceView) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, struct {
		*InvoiceView
		SpecialRateNote string
	}{v, SpecialRateNote}); err != nil {
		return "", fmt.Errorf("document: render html: %w", err)
	}
	return buf.String(), nil
}

const invoiceHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
  <meta charset="UTF-8">
  <title>請求書 {{.InvoiceNo}}</title>
  <style>
    @page { size: A4; margin: 2cm 1cm; }
    body { font-family: 'Noto Sans JP', 'Hiragino Sans', sans-serif; font-size: 10pt; color: #222; }
    .header, .invoice-info, .summary-row, .footer { display: flex; justify-content: space-between; margin-bottom: 16px; }
    .company-name { font-size: 14pt; font-weight: 700; }
    .company-details, .client-details, .payment-details, .footer-content { font-size: 9pt; line-height: 1.6; }
    h1 { margin: 0; font-size: 22pt; letter-spacing: 8px; }
    .section-title, .footer-section-title { font-weight: 700; border-bottom: 1px solid #333; margin-bottom: 4px; }
    .client-name { font-size: 13pt; font-weight: 700; }
    .total-value { font-size: 18pt; font-weight: 700; }
    table { width: 100%; border-collapse: collapse; }
    .items-table th, .items-table td { border: 1px solid #999; padding: 4px 6px; }
    .items-table th { background: #eee; }
    .text-right { text-align: right; }
    .text-center { text-align: center; }
    .totals-table { width: 40%; margin-left: auto; margin-top: 12px; }
    .totals-table th, .totals-table td { border-bottom: 1px solid #999; padding: 4px 6px; }
    .totals-table td { text-align: right; }
    .total-row { font-weight: 700; }
    .note { font-size: 8pt; color: #555; }
    .no-items { text-align: center; color: #999; font-style: italic; }
  </style>
</head>
<body>
  <div class="header">
    <div class="company-info">
      <div class="company-name">{{.Company.Name}}</div>
      <div class="company-details">
        {{.Company.Address}}<br>
        {{.Company.Phone}} / {{.Company.Email}}<br>
        {{with .Company.Registration}}登録番号: {{.}}<br>{{end}}
        {{.Company.CEO}}
      </div>
    </div>
    <div class="invoice-title">
      <h1>請求書</h1>
      <div class="invoice-no">No. {{.InvoiceNo}}</div>
      <div class="invoice-date">発行日: {{.IssueDate}}</div>
    </div>
  </div>

  <div class="invoice-info">
    <div class="client-info">
      <div class="section-title">請求先</div>
      <div class="client-name">{{.PartnerName}} 御中</div>
      <div class="client-details">
        {{with .BillingCode}}請求コード: {{.}}<br>{{end}}
        {{with .PartnerAddress}}{{.}}<br>{{end}}
        {{with .PartnerContact}}担当: {{.}}<br>{{end}}
        {{with .PartnerPhone}}TEL: {{.}}<br>{{end}}
        {{with .PartnerEmail}}E-mail: {{.}}{{end}}
      </div>
    </div>
    <div class="payment-info">
      <div class="section-title">お支払情報</div>
      <div class="payment-details">
        <strong>支払期限: {{.DueDate}}</strong><br><br>
        <strong>お振込先:</strong><br>
        {{.Company.Bank}}<br><br>
        <small>※振込手数料はお客様にてご負担願います</small>
      </div>
    </div>
  </div>

  <div class="summary-row">
    <div class="period-info">
      <div class="section-title">請求対象期間</div>
      <div class="period-dates">{{.PeriodStart}} ～ {{.PeriodEnd}}</div>
    </div>
    <div class="total-amount">
      <div class="section-title">ご請求金額 (税込)</div>
      <div class="total-value">{{.Total}}</div>
    </div>
  </div>

  <table class="items-table">
    <thead>
      <tr>
        <th>No.</th><th>配送日</th><th>内容</th><th>数量</th><th>単位</th><th>単価</th><th>金額</th>
      </tr>
    </thead>
    <tbody>
    {{range .Lines}}
      <tr class="item-row">
        <td class="text-center">{{.No}}</td>
        <td class="text-center">{{.DeliveryDate}}</td>
        <td class="description">
          {{.Description}}{{if .Special}}※{{end}}
          {{with .VehicleNo}}<br><small>車両: {{.}}</small>{{end}}
          {{with .DriverName}}<br><small>運転者: {{.}}</small>{{end}}
          {{with .Memo}}<br><small>{{.}}</small>{{end}}
        </td>
        <td class="text-right">{{.Quantity}}</td>
        <td class="text-center">{{.Unit}}</td>
        <td class="text-right">{{.UnitPrice}}</td>
        <td class="text-right amount">{{.Amount}}</td>
      </tr>
    {{else}}
      <tr><td colspan="7" class="no-items">明細がありません</td></tr>
    {{end}}
    </tbody>
  </table>

  {{if .HasSpecial}}<p class="note">{{.SpecialRateNote}}</p>{{end}}

  <table class="totals-table">
    <tr><th>小計 (税抜)</th><td>{{.Subtotal}}</td></tr>
    <tr><th>消費税</th><td>{{.Tax}}</td></tr>
    <tr class="total-row"><th>合計 (税込)</th><td>{{.Total}}</td></tr>
  </table>

  <div class="footer">
    <div class="bank-info">
      <div class="footer-section-title">振込先口座</div>
      <div class="footer-content">{{.Company.Bank}}<br>口座名義: {{.Company.Name}}</div>
    </div>
    <div class="notes">
      <div class="footer-section-title">ご請求に関するお問い合わせ</div>
      <div class="footer-content">{{.Company.Name}}<br>{{.Company.Phone}}<br>{{.Company.Email}}</div>
      {{if .ItemCount}}
      <div class="note">
        配送実績: {{.ItemCount}}件{{with .TotalStops}} / 配送件数: {{.}}件{{end}}{{with .TotalKM}} / 走行距離: {{.}}km{{end}}{{with .TotalHours}} / 作業時間: {{.}}時間{{end}}
      </div>
      {{end}}
    </div>
  </div>
</body>
</html>
`
