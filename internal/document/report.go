package document

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DailyReport is one driver's delivery totals for a working day.
type DailyReport struct {
	Date     time.Time
	Driver   string
	Count    int
	Distance decimal.Decimal // km
	Note     string
}

// ReportView is the printed form of a DailyReport.
type ReportView struct {
	Date        string
	Driver      string
	Count       int
	Distance    string
	AvgDistance string
	Efficiency  string
	Note        string
	GeneratedAt string
	DocumentID  string
}

var weekdays = [...]string{"日曜日", "月曜日", "火曜日", "水曜日", "木曜日", "金曜日", "土曜日"}

var reportIDUnsafe = regexp.MustCompile(`[^a-zA-Z0-9]`)

// NewReportView derives the per-stop average and the stops per 100km. Both
// print as 0.0 when their divisor is zero.
func NewReportView(r DailyReport, generated time.Time) *ReportView {
	avg, eff := decimal.Zero, decimal.Zero
	if r.Count > 0 {
		avg = r.Distance.Div(decimal.NewFromInt(int64(r.Count)))
	}
	if r.Distance.IsPositive() {
		eff = decimal.NewFromInt(int64(r.Count)).Div(r.Distance).Mul(decimal.NewFromInt(100))
	}
	return &ReportView{
		Date:        FormatDate(r.Date) + weekdays[r.Date.Weekday()],
		Driver:      r.Driver,
		Count:       r.Count,
		Distance:    FormatNumber(r.Distance),
		AvgDistance: avg.StringFixed(1),
		Efficiency:  eff.StringFixed(1),
		Note:        r.Note,
		GeneratedAt: fmt.Sprintf("%d/%d/%d %02d:%02d", generated.Year(), int(generated.Month()), generated.Day(), generated.Hour(), generated.Minute()),
		DocumentID:  "RPT-" + r.Date.Format("20060102") + "-" + strings.ToUpper(reportIDUnsafe.ReplaceAllString(r.Driver, "")),
	}
}

// ReportFilename is the download name: delivery_report_{YYYY-MM-DD}_{driver}.pdf.
func ReportFilename(r DailyReport) string {
	return fmt.Sprintf("delivery_report_%s_%s.pdf", r.Date.Format("2006-01-02"), SanitizeName(r.Driver))
}

// ReportStorageKey is the object key a saved report is stored under:
// reports/{YYYY}/{MM}/delivery_report_{YYYY-MM-DD}_{driver}.pdf, dated by
// when it was saved.
func ReportStorageKey(driver string, at time.Time) (key, filename string) {
	filename = fmt.Sprintf("delivery_report_%s_%s.pdf", at.Format("2006-01-02"), SanitizeName(driver))
	key = fmt.Sprintf("reports/%04d/%02d/%s", at.Year(), int(at.Month()), filename)
	return key, filename
}

var reportTmpl = template.Must(template.New("daily").Parse(dailyReportHTML))

// RenderReportHTML renders the printable daily report page.
func RenderReportHTML(v *ReportView) (string, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("document: render report: %w", err)
	}
	return buf.String(), nil
}

// ReportTemplate is the source of a report layout and the view fields it prints.
type ReportTemplate struct {
	Type         string
	Source       string
	Placeholders []string
}

var reportSources = map[string]string{
	"daily": dailyReportHTML,
}

var fieldRef = regexp.MustCompile(`\{\{[^}]*?\.(\w+)[^}]*\}\}`)

// ReportTypes lists the known template types, sorted.
func ReportTypes() []string {
	return []string{"daily"}
}

// LookupReportTemplate returns the template for kind.
func LookupReportTemplate(kind string) (*ReportTemplate, bool) {
	src, ok := reportSources[kind]
	if !ok {
		return nil, false
	}
	seen := map[string]bool{}
	var fields []string
	for _, m := range fieldRef.FindAllStringSubmatch(src, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			fields = append(fields, m[1])
		}
	}
	return &ReportTemplate{Type: kind, Source: strings.TrimSpace(src), Placeholders: fields}, true
}

const dailyReportHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
  <meta charset="UTF-8">
  <title>配送日報 - {{.Driver}} - {{.Date}}</title>
  <style>
    @page { size: A4; margin: 20mm; }
    body { font-family: 'Noto Sans JP', 'Hiragino Sans', sans-serif; font-size: 14px; line-height: 1.6; color: #333; }
    .header { text-align: center; margin-bottom: 30px; border-bottom: 3px solid #2563eb; padding-bottom: 20px; }
    .title { font-size: 24px; font-weight: 700; color: #2563eb; }
    .subtitle { font-size: 14px; color: #6b7280; }
    .section-title { font-size: 16px; font-weight: 500; margin-bottom: 15px; border-bottom: 1px solid #e5e7eb; }
    .info-table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
    .info-table th, .info-table td { padding: 12px 16px; text-align: left; border: 1px solid #e5e7eb; }
    .info-table th { background: #f9fafb; width: 30%; }
    .stats-value { font-size: 18px; font-weight: 700; color: #2563eb; }
    .highlight-box { background: #2563eb; color: #fff; padding: 20px; border-radius: 8px; text-align: center; margin: 20px 0; }
    .highlight-number { font-size: 32px; font-weight: 700; display: block; }
    .note-content { background: #f9fafb; border: 1px solid #e5e7eb; padding: 16px; min-height: 80px; white-space: pre-wrap; }
    .footer { margin-top: 40px; text-align: center; font-size: 12px; color: #9ca3af; border-top: 1px solid #e5e7eb; padding-top: 16px; }
  </style>
</head>
<body>
  <div class="header">
    <div class="title">配送日報レポート</div>
    <div class="subtitle">Generated on {{.GeneratedAt}}</div>
  </div>

  <div class="info-section">
    <div class="section-title">基本情報</div>
    <table class="info-table">
      <tr><th>作業日</th><td>{{.Date}}</td></tr>
      <tr><th>ドライバー</th><td>{{.Driver}}</td></tr>
    </table>
  </div>

  <div class="highlight-box">
    <span class="highlight-number">{{.Count}}</span>
    <span class="highlight-label">配送完了件数</span>
  </div>

  <div class="info-section">
    <div class="section-title">実績データ</div>
    <table class="info-table">
      <tr><th>総走行距離</th><td class="stats-value">{{.Distance}} km</td></tr>
      <tr><th>平均距離/件</th><td class="stats-value">{{.AvgDistance}} km</td></tr>
      <tr><th>配送効率</th><td>{{.Efficiency}} 件/100km</td></tr>
    </table>
  </div>
{{with .Note}}
  <div class="note-section">
    <div class="section-title">メモ・特記事項</div>
    <div class="note-content">{{.}}</div>
  </div>
{{end}}
  <div class="footer">
    <div>{{.GeneratedAt}} - Document ID: {{.DocumentID}}</div>
  </div>
</body>
</html>
`
