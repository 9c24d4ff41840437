// Package document turns an invoice into a printable document: a view model,
// its HTML rendering and the file names used for download and storage.
package document

import (
	"context"
	"time"

	"invoiceflow/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultDueDate is printed when the invoice has no payment due date.
const DefaultDueDate = "請求書発行日より30日以内"

// SpecialRateNote is printed under the item table when any line carries
// overtime or special pricing.
const SpecialRateNote = "※時間外・特殊料金を含む"

// Company is the issuer block printed on every invoice.
type Company struct {
	Name         string
	Address      string
	Phone        string
	Email        string
	Registration string
	Bank         string
	CEO          string
}

// Line is one printed item row.
type Line struct {
	No           int
	DeliveryDate string
	Description  string
	Special      bool
	VehicleNo    string
	DriverName   string
	Memo         string
	Quantity     string
	Unit         string
	UnitPrice    string
	Amount       string
}

// InvoiceView is everything the template and the fpdf engine print.
type InvoiceView struct {
	InvoiceNo   string
	IssueDate   string
	PeriodStart string
	PeriodEnd   string
	DueDate     string
	Status      string

	Company Company

	PartnerName    string
	BillingCode    string
	PartnerAddress string
	PartnerContact string
	PartnerPhone   string
	PartnerEmail   string

	Lines      []Line
	HasSpecial bool

	Subtotal string
	Tax      string
	Total    string

	ItemCount  int
	TotalStops string
	TotalKM    string
	TotalHours string
}

// Document pairs a view with its pre-rendered HTML. Exactly one of View and
// Report is set.
type Document struct {
	View   *InvoiceView
	Report *ReportView
	HTML   string
}

// Engine converts a document to PDF bytes.
type Engine interface {
	Name() string
	Render(ctx context.Context, doc *Document) ([]byte, error)
}

// NewInvoiceView builds the view for inv. Items are printed in the given
// order; the partner is taken from inv.Partner when loaded.
func NewInvoiceView(inv *model.Invoice, items []model.InvoiceItem, company Company, issued time.Time) *InvoiceView {
	v := &InvoiceView{
		InvoiceNo:   inv.InvoiceNo,
		IssueDate:   FormatDate(issued),
		PeriodStart: FormatDate(time.Time(inv.PeriodStart)),
		PeriodEnd:   FormatDate(time.Time(inv.PeriodEnd)),
		DueDate:     DefaultDueDate,
		Status:      string(inv.Status),
		Company:     company,
		Subtotal:    FormatYen(inv.Subtotal),
		Tax:         FormatYen(inv.Tax),
		Total:       FormatYen(inv.Total),
		ItemCount:   len(items),
	}
	if inv.PaymentDueDate != nil {
		v.DueDate = formatDatatypeDate(inv.PaymentDueDate)
	}
	if p := inv.Partner; p != nil {
		v.PartnerName = p.Name
		v.BillingCode = deref(p.BillingCode)
		v.PartnerAddress = deref(p.Address)
		v.PartnerContact = deref(p.ContactPerson)
		v.PartnerPhone = deref(p.Phone)
		v.PartnerEmail = deref(p.Email)
	}

	var stops, km, hours decimal.Decimal
	for i, it := range items {
		special := it.IsOvertime || it.IsSpecial
		v.HasSpecial = v.HasSpecial || special
		v.Lines = append(v.Lines, Line{
			No:           i + 1,
			DeliveryDate: formatDatatypeDate(it.DeliveryDate),
			Description:  it.Description,
			Special:      special,
			VehicleNo:    deref(it.VehicleNo),
			DriverName:   deref(it.DriverName),
			Memo:         deref(it.Memo),
			Quantity:     FormatNumber(it.Quantity),
			Unit:         UnitLabel(it.Unit),
			UnitPrice:    FormatYen(it.UnitPrice),
			Amount:       FormatYen(it.Amount),
		})
		switch it.Unit {
		case model.UnitStop:
			stops = stops.Add(it.Quantity)
		case model.UnitKM:
			km = km.Add(it.Quantity)
		case model.UnitHour:
			hours = hours.Add(it.Quantity)
		}
	}
	v.TotalStops = nonZero(stops)
	v.TotalKM = nonZero(km)
	v.TotalHours = nonZero(hours)
	return v
}

func nonZero(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return FormatNumber(d)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
