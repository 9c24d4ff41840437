package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of every calendar date (period, delivery, due).
const DateLayout = "2006-01-02"

// ── Requests ─────────────────────────────────────────────────────────────────

// CreateInvoiceRequest creates a Draft invoice with optional initial items.
// partner_id, period_start and period_end are required; their absence is
// reported as a single VALIDATION_ERROR listing all three.
type CreateInvoiceRequest struct {
	PartnerID   string               `json:"partner_id"   validate:"omitempty,uuid"`
	PeriodStart string               `json:"period_start" validate:"omitempty,datetime=2006-01-02"`
	PeriodEnd   string               `json:"period_end"   validate:"omitempty,datetime=2006-01-02"`
	RateCardID  *string              `json:"rate_card_id" validate:"omitempty,uuid"`
	Memo        *string              `json:"memo"         validate:"omitempty,max=2000"`
	Items       []InvoiceItemRequest `json:"items"        validate:"omitempty,max=500,dive"`
}

// InvoiceItemRequest is one delivery line. When amount is absent or zero it
// is computed as quantity × unit_price.
type InvoiceItemRequest struct {
	DeliveryDate *string          `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	Description  string           `json:"description"   validate:"required,max=500"`
	Quantity     decimal.Decimal  `json:"quantity"      validate:"gte=0"`
	Unit         string           `json:"unit"          validate:"omitempty,oneof=stop km hour other"`
	UnitPrice    decimal.Decimal  `json:"unit_price"    validate:"gte=0"`
	Amount       *decimal.Decimal `json:"amount"        validate:"omitempty,gte=0"`
	IsOvertime   bool             `json:"is_overtime"`
	IsSpecial    bool             `json:"is_special"`
	VehicleNo    *string          `json:"vehicle_no"    validate:"omitempty,max=40"`
	DriverName   *string          `json:"driver_name"   validate:"omitempty,max=100"`
	Memo         *string          `json:"memo"          validate:"omitempty,max=1000"`
}

// AddItemsRequest appends items to a Draft invoice.
type AddItemsRequest struct {
	Items []InvoiceItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

// UpdateInvoiceRequest is a partial update. Only non-nil fields are written;
// a body with none of them fails with NO_FIELDS. Fields carry no validate
// tags: a non-Draft invoice reports INVALID_STATUS before any field error.
type UpdateInvoiceRequest struct {
	PartnerID   *string `json:"partner_id"`
	PeriodStart *string `json:"period_start"`
	PeriodEnd   *string `json:"period_end"`
	RateCardID  *string `json:"rate_card_id"`
	Memo        *string `json:"memo"`
}

// MaxMemoLength bounds invoice memos.
const MaxMemoLength = 2000

// Empty reports whether no updatable field was supplied.
func (r UpdateInvoiceRequest) Empty() bool {
	return r.PartnerID == nil && r.PeriodStart == nil && r.PeriodEnd == nil && r.RateCardID == nil && r.Memo == nil
}

// TransitionRequest is the optional body of submit/approve/reject/reopen.
type TransitionRequest struct {
	Comment      string `json:"comment"       validate:"max=2000"`
	ApproverRole string `json:"approver_role" validate:"omitempty,oneof=field manager accounting"`
}

// ListInvoicesQuery holds list filters and pagination.
type ListInvoicesQuery struct {
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
	Status    string `form:"status"     validate:"omitempty,oneof=Draft Submitted Approved Invoiced Rejected"`
	PartnerID string `form:"partner_id" validate:"omitempty,uuid"`
}

// Normalize applies defaults: page 1, limit 20, limit capped at 100.
func (q *ListInvoicesQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}

// ── Responses ────────────────────────────────────────────────────────────────

type PartnerSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	BillingCode *string `json:"billing_code"`
}

type InvoiceResponse struct {
	ID             string          `json:"id"`
	InvoiceNo      string          `json:"invoice_no"`
	PartnerID      string          `json:"partner_id"`
	PeriodStart    string          `json:"period_start"`
	PeriodEnd      string          `json:"period_end"`
	RateCardID     *string         `json:"rate_card_id"`
	Memo           *string         `json:"memo"`
	Status         string          `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	PaymentDueDate *string         `json:"payment_due_date"`
	CreatedBy      string          `json:"created_by"`
	ApprovedBy     *string         `json:"approved_by"`
	ApprovedAt     *time.Time      `json:"approved_at"`
	InvoicedAt     *time.Time      `json:"invoiced_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Partner        *PartnerSummary `json:"partner,omitempty"`
}

type InvoiceItemResponse struct {
	ID           string          `json:"id"`
	DeliveryDate *string         `json:"delivery_date"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Amount       decimal.Decimal `json:"amount"`
	IsOvertime   bool            `json:"is_overtime"`
	IsSpecial    bool            `json:"is_special"`
	VehicleNo    *string         `json:"vehicle_no"`
	DriverName   *string         `json:"driver_name"`
	Memo         *string         `json:"memo"`
}

type ApprovalResponse struct {
	ID             string    `json:"id"`
	ApproverRole   string    `json:"approver_role"`
	ApproverEmail  string    `json:"approver_email"`
	Action         string    `json:"action"`
	Comment        *string   `json:"comment"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ApprovedAt     time.Time `json:"approved_at"`
}

// InvoiceDetailResponse is an invoice with its items (delivery date order)
// and approval history (chronological).
type InvoiceDetailResponse struct {
	InvoiceResponse
	Items     []InvoiceItemResponse `json:"items"`
	Approvals []ApprovalResponse    `json:"approvals"`
}

type CreateInvoiceResponse struct {
	ID        string          `json:"id"`
	InvoiceNo string          `json:"invoice_no"`
	Status    string          `json:"status"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type InvoiceListResponse struct {
	Data       []InvoiceResponse `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

type TransitionResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}
