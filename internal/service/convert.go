package service

import (
	"encoding/json"
	"fmt"
	"time"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/dto"
	"invoiceflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

func parseDate(s string) (datatypes.Date, error) {
	t, err := time.Parse(dto.DateLayout, s)
	if err != nil {
		return datatypes.Date{}, err
	}
	return datatypes.Date(t), nil
}

func formatDate(d datatypes.Date) string {
	return time.Time(d).Format(dto.DateLayout)
}

func formatDatePtr(d *datatypes.Date) *string {
	if d == nil {
		return nil
	}
	s := formatDate(*d)
	return &s
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// dueDate is period end plus the partner's payment terms, nil without terms.
func dueDate(periodEnd datatypes.Date, partner *model.Partner) *datatypes.Date {
	if partner == nil || partner.PaymentTerms == nil {
		return nil
	}
	d := datatypes.Date(time.Time(periodEnd).AddDate(0, 0, *partner.PaymentTerms))
	return &d
}

// buildItems converts request lines into rows. Amount falls back to
// quantity × unit price when absent or zero; negative money is rejected
// per line as items[i].field.
func buildItems(invoiceID uuid.UUID, reqs []dto.InvoiceItemRequest) ([]model.InvoiceItem, error) {
	items := make([]model.InvoiceItem, 0, len(reqs))
	bad := map[string]string{}
	for i, r := range reqs {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		if r.Quantity.IsNegative() {
			bad[field("quantity")] = "must be zero or greater"
		}
		if r.UnitPrice.IsNegative() {
			bad[field("unit_price")] = "must be zero or greater"
		}
		amount := r.Quantity.Mul(r.UnitPrice)
		if r.Amount != nil && !r.Amount.IsZero() {
			if r.Amount.IsNegative() {
				bad[field("amount")] = "must be zero or greater"
			}
			amount = *r.Amount
		}
		unit := r.Unit
		if unit == "" {
			unit = model.UnitOther
		}
		item := model.InvoiceItem{
			InvoiceID:   invoiceID,
			Description: r.Description,
			Quantity:    r.Quantity,
			Unit:        unit,
			UnitPrice:   r.UnitPrice,
			Amount:      amount,
			IsOvertime:  r.IsOvertime,
			IsSpecial:   r.IsSpecial,
			VehicleNo:   r.VehicleNo,
			DriverName:  r.DriverName,
			Memo:        r.Memo,
		}
		if r.DeliveryDate != nil && *r.DeliveryDate != "" {
			d, err := parseDate(*r.DeliveryDate)
			if err != nil {
				bad[field("delivery_date")] = "must be a date (YYYY-MM-DD)"
			}
			item.DeliveryDate = &d
		}
		items = append(items, item)
	}
	if len(bad) > 0 {
		return nil, apierror.InvalidFields(bad)
	}
	return items, nil
}

func sumAmounts(items []model.InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

func toInvoiceResponse(inv *model.Invoice) dto.InvoiceResponse {
	resp := dto.InvoiceResponse{
		ID:             inv.ID.String(),
		InvoiceNo:      inv.InvoiceNo,
		PartnerID:      inv.PartnerID.String(),
		PeriodStart:    formatDate(inv.PeriodStart),
		PeriodEnd:      formatDate(inv.PeriodEnd),
		RateCardID:     uuidString(inv.RateCardID),
		Memo:           inv.Memo,
		Status:         string(inv.Status),
		Subtotal:       inv.Subtotal,
		Tax:            inv.Tax,
		Total:          inv.Total,
		PaymentDueDate: formatDatePtr(inv.PaymentDueDate),
		CreatedBy:      inv.CreatedBy,
		ApprovedBy:     inv.ApprovedBy,
		ApprovedAt:     inv.ApprovedAt,
		InvoicedAt:     inv.InvoicedAt,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
	if p := inv.Partner; p != nil {
		resp.Partner = &dto.PartnerSummary{ID: p.ID.String(), Name: p.Name, BillingCode: p.BillingCode}
	}
	return resp
}

func toInvoiceDetail(inv *model.Invoice) dto.InvoiceDetailResponse {
	out := dto.InvoiceDetailResponse{
		InvoiceResponse: toInvoiceResponse(inv),
		Items:           make([]dto.InvoiceItemResponse, 0, len(inv.Items)),
		Approvals:       make([]dto.ApprovalResponse, 0, len(inv.Approvals)),
	}
	for i := range inv.Items {
		out.Items = append(out.Items, toItemResponse(&inv.Items[i]))
	}
	for i := range inv.Approvals {
		out.Approvals = append(out.Approvals, toApprovalResponse(&inv.Approvals[i]))
	}
	return out
}

func toItemResponse(it *model.InvoiceItem) dto.InvoiceItemResponse {
	return dto.InvoiceItemResponse{
		ID:           it.ID.String(),
		DeliveryDate: formatDatePtr(it.DeliveryDate),
		Description:  it.Description,
		Quantity:     it.Quantity,
		Unit:         it.Unit,
		UnitPrice:    it.UnitPrice,
		Amount:       it.Amount,
		IsOvertime:   it.IsOvertime,
		IsSpecial:    it.IsSpecial,
		VehicleNo:    it.VehicleNo,
		DriverName:   it.DriverName,
		Memo:         it.Memo,
	}
}

func toApprovalResponse(ev *model.ApprovalEvent) dto.ApprovalResponse {
	return dto.ApprovalResponse{
		ID:             ev.ID.String(),
		ApproverRole:   ev.ApproverRole,
		ApproverEmail:  ev.ApproverEmail,
		Action:         ev.Action,
		Comment:        ev.Comment,
		PreviousStatus: string(ev.PreviousStatus),
		NewStatus:      string(ev.NewStatus),
		ApprovedAt:     ev.ApprovedAt,
	}
}

func toAuditResponse(a *model.AuditLog) dto.AuditLogResponse {
	return dto.AuditLogResponse{
		ID:        a.ID.String(),
		TableName: a.EntityTable,
		RecordID:  a.RecordID.String(),
		Operation: a.Operation,
		OldValues: json.RawMessage(a.OldValues),
		NewValues: json.RawMessage(a.NewValues),
		ChangedBy: a.ChangedBy,
		RequestID: a.RequestID,
		ChangedAt: a.ChangedAt,
	}
}
