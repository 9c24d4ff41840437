package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/dto"
	"invoiceflow/internal/identity"
	"invoiceflow/internal/logger"
	"invoiceflow/internal/model"
	"invoiceflow/internal/rbac"
	"invoiceflow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceService interface {
	List(ctx context.Context, caller identity.Identity, q dto.ListInvoicesQuery) (*dto.InvoiceListResponse, error)
	Get(ctx context.Context, caller identity.Identity, id uuid.UUID) (*dto.InvoiceDetailResponse, error)
	Create(ctx context.Context, caller identity.Identity, req dto.CreateInvoiceRequest) (*dto.CreateInvoiceResponse, error)
	Update(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error)
	AddItems(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.AddItemsRequest) (*dto.InvoiceDetailResponse, error)
	DeleteItem(ctx context.Context, caller identity.Identity, id, itemID uuid.UUID) (*dto.InvoiceDetailResponse, error)
}

type invoiceService struct {
	repo      repository.InvoiceRepository
	partners  repository.PartnerRepository
	rateCards repository.RateCardRepository
	audit     AuditService
	taxRate   decimal.Decimal
	now       func() time.Time
}

func NewInvoiceService(
	repo repository.InvoiceRepository,
	partners repository.PartnerRepository,
	rateCards repository.RateCardRepository,
	audit AuditService,
	taxRate decimal.Decimal,
) InvoiceService {
	return &invoiceService{
		repo:      repo,
		partners:  partners,
		rateCards: rateCards,
		audit:     audit,
		taxRate:   taxRate,
		now:       time.Now,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// errStatusChanged aborts a transaction whose compare-and-swap on status
// matched no row.
var errStatusChanged = errors.New("invoice status changed concurrently")

// InvoiceNumber formats INV-{code}-{YYMM}-{NNN}. The suffix is random, so two
// invoices for the same partner and month can collide; the unique index
// turns that into a CREATION_ERROR.
func InvoiceNumber(billingCode string, at time.Time, suffix int) string {
	if billingCode == "" {
		billingCode = "UNK"
	}
	return fmt.Sprintf("INV-%s-%02d%02d-%03d", billingCode, at.Year()%100, int(at.Month()), suffix%1000)
}

// ── List ─────────────────────────────────────────────────────────────────────

func (s *invoiceService) List(ctx context.Context, caller identity.Identity, q dto.ListInvoicesQuery) (*dto.InvoiceListResponse, error) {
	if err := rbac.Check(caller.Role, rbac.OpList); err != nil {
		return nil, err
	}
	q.Normalize()

	f := repository.InvoiceFilter{
		Status: q.Status,
		Offset: (q.Page - 1) * q.Limit,
		Limit:  q.Limit,
	}
	if q.Status != "" && !model.InvoiceStatus(q.Status).Valid() {
		return nil, apierror.InvalidFields(map[string]string{"status": "must be one of Draft Submitted Approved Invoiced Rejected"})
	}
	if q.PartnerID != "" {
		pid, err := uuid.Parse(q.PartnerID)
		if err != nil {
			return nil, apierror.InvalidFields(map[string]string{"partner_id": "must be a valid UUID"})
		}
		f.PartnerID = &pid
	}
	if caller.Role.ScopedToOwn() {
		f.CreatedBy = caller.Email
	}

	invoices, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apierror.Upstream("FETCH_ERROR", "Failed to fetch invoices", err)
	}

	data := make([]dto.InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		data = append(data, toInvoiceResponse(&invoices[i]))
	}
	return &dto.InvoiceListResponse{
		Data: data,
		Pagination: dto.Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(q.Limit))),
		},
	}, nil
}

// ── Get ──────────────────────────────────────────────────────────────────────

func (s *invoiceService) Get(ctx context.Context, caller identity.Identity, id uuid.UUID) (*dto.InvoiceDetailResponse, error) {
	if err := rbac.Check(caller.Role, rbac.OpView); err != nil {
		return nil, err
	}
	inv, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("Invoice not found")
		}
		return nil, apierror.Upstream("FETCH_ERROR", "Failed to fetch invoice", err)
	}
	// scoped callers cannot tell someone else's invoice from a missing one
	if caller.Role.ScopedToOwn() && inv.CreatedBy != caller.Email {
		return nil, apierror.NotFound("Invoice not found")
	}
	resp := toInvoiceDetail(inv)
	return &resp, nil
}

// ── Create ───────────────────────────────────────────────────────────────────
//  1. Guard, required fields, partner lookup
//  2. Attach the partner's active rate card when none is given
//  3. TX: insert invoice + items, recompute totals
//  4. Audit INSERT (after commit, best effort)

func (s *invoiceService) Create(ctx context.Context, caller identity.Identity, req dto.CreateInvoiceRequest) (*dto.CreateInvoiceResponse, error) {
	if err := rbac.Check(caller.Role, rbac.OpCreate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PartnerID) == "" || req.PeriodStart == "" || req.PeriodEnd == "" {
		return nil, apierror.MissingFields("partner_id", "period_start", "period_end")
	}

	bad := map[string]string{}
	partnerID, err := uuid.Parse(req.PartnerID)
	if err != nil {
		bad["partner_id"] = "must be a valid UUID"
	}
	start, err := parseDate(req.PeriodStart)
	if err != nil {
		bad["period_start"] = "must be a date (YYYY-MM-DD)"
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		bad["period_end"] = "must be a date (YYYY-MM-DD)"
	}
	var rateCardID *uuid.UUID
	if req.RateCardID != nil && *req.RateCardID != "" {
		id, err := uuid.Parse(*req.RateCardID)
		if err != nil {
			bad["rate_card_id"] = "must be a valid UUID"
		}
		rateCardID = &id
	}
	if len(bad) > 0 {
		return nil, apierror.InvalidFields(bad)
	}

	partner, err := s.partners.FindByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.Validation("PARTNER_NOT_FOUND", "Partner not found")
		}
		return nil, apierror.Upstream("CREATION_ERROR", "Failed to create invoice", err)
	}

	if rateCardID != nil {
		if err := s.checkRateCard(ctx, *rateCardID, "CREATION_ERROR", "Failed to create invoice"); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if rateCardID == nil {
		rc, err := s.rateCards.FindActive(ctx, partner.ID, now)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("partner_id", partner.ID.String()).Msg("active rate card lookup failed")
		} else if rc != nil {
			rateCardID = &rc.ID
		}
	}

	code := ""
	if partner.BillingCode != nil {
		code = *partner.BillingCode
	}
	inv := &model.Invoice{
		ID:             uuid.New(),
		InvoiceNo:      InvoiceNumber(code, now, rand.Intn(1000)),
		PartnerID:      partner.ID,
		PeriodStart:    start,
		PeriodEnd:      end,
		RateCardID:     rateCardID,
		Memo:           req.Memo,
		Status:         model.StatusDraft,
		PaymentDueDate: dueDate(end, partner),
		CreatedBy:      caller.Email,
	}

	items, err := buildItems(inv.ID, req.Items)
	if err != nil {
		return nil, err
	}

	var totals repository.Totals
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, inv); err != nil {
			return err
		}
		if err := s.repo.CreateItems(ctx, tx, items); err != nil {
			return err
		}
		totals, err = s.repo.ComputeTotals(ctx, tx, inv.ID, s.taxRate)
		return err
	})
	if txErr != nil {
		return nil, apierror.Upstream("CREATION_ERROR", "Failed to create invoice", txErr)
	}
	inv.Subtotal, inv.Tax, inv.Total = totals.Subtotal, totals.Tax, totals.Total
	inv.Partner = partner

	snap := dto.InvoiceDetailResponse{InvoiceResponse: toInvoiceResponse(inv)}
	for i := range items {
		snap.Items = append(snap.Items, toItemResponse(&items[i]))
	}
	s.audit.Record(ctx, Change{
		Table:     "invoices",
		RecordID:  inv.ID,
		Operation: model.AuditInsert,
		New:       snap,
		Actor:     caller.Email,
	})

	logger.Ctx(ctx).Info().
		Str("invoice_id", inv.ID.String()).
		Str("invoice_no", inv.InvoiceNo).
		Int("items", len(items)).
		Str("total", totals.Total.String()).
		Msg("invoice created")

	return &dto.CreateInvoiceResponse{
		ID:        inv.ID.String(),
		InvoiceNo: inv.InvoiceNo,
		Status:    string(inv.Status),
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Total:     totals.Total,
	}, nil
}

// ── Update ───────────────────────────────────────────────────────────────────

func (s *invoiceService) Update(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := rbac.Check(caller.Role, rbac.OpUpdate); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, id, "UPDATE_ERROR", "Failed to update invoice")
	if err != nil {
		return nil, err
	}
	if current.Status != model.StatusDraft {
		return nil, apierror.InvalidStatus("Only Draft invoices can be updated", string(current.Status))
	}
	if req.Empty() {
		return nil, apierror.Validation("NO_FIELDS", "No valid fields to update")
	}

	cols, err := s.updateColumns(ctx, current, req)
	if err != nil {
		return nil, err
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		ok, err := s.repo.UpdateStatus(ctx, tx, id, model.StatusDraft, cols)
		if err != nil {
			return err
		}
		if !ok {
			return errStatusChanged
		}
		return nil
	})
	if errors.Is(txErr, errStatusChanged) {
		return nil, s.statusChanged(ctx, id, "Only Draft invoices can be updated")
	}
	if txErr != nil {
		return nil, apierror.Upstream("UPDATE_ERROR", "Failed to update invoice", txErr)
	}

	updated, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, apierror.Upstream("UPDATE_ERROR", "Failed to update invoice", err)
	}

	before, after := toInvoiceResponse(current), toInvoiceResponse(updated)
	s.audit.Record(ctx, Change{
		Table:     "invoices",
		RecordID:  id,
		Operation: model.AuditUpdate,
		Old:       before,
		New:       after,
		Actor:     caller.Email,
	})
	return &after, nil
}

// updateColumns validates the supplied fields and returns the columns to
// write. A new partner or period end also moves the payment due date.
func (s *invoiceService) updateColumns(ctx context.Context, current *model.Invoice, req dto.UpdateInvoiceRequest) (map[string]any, error) {
	cols := map[string]any{"updated_at": s.now()}
	bad := map[string]string{}

	partner := current.Partner
	if req.PartnerID != nil {
		pid, err := uuid.Parse(*req.PartnerID)
		if err != nil {
			bad["partner_id"] = "must be a valid UUID"
		} else {
			p, err := s.partners.FindByID(ctx, pid)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apierror.Validation("PARTNER_NOT_FOUND", "Partner not found")
			}
			if err != nil {
				return nil, apierror.Upstream("UPDATE_ERROR", "Failed to update invoice", err)
			}
			partner = p
			cols["partner_id"] = pid
		}
	}
	if req.PeriodStart != nil {
		d, err := parseDate(*req.PeriodStart)
		if err != nil {
			bad["period_start"] = "must be a date (YYYY-MM-DD)"
		} else {
			cols["period_start"] = d
		}
	}
	end := current.PeriodEnd
	if req.PeriodEnd != nil {
		d, err := parseDate(*req.PeriodEnd)
		if err != nil {
			bad["period_end"] = "must be a date (YYYY-MM-DD)"
		} else {
			cols["period_end"] = d
			end = d
		}
	}
	if req.RateCardID != nil {
		if *req.RateCardID == "" {
			cols["rate_card_id"] = nil
		} else if rc, err := uuid.Parse(*req.RateCardID); err != nil {
			bad["rate_card_id"] = "must be a valid UUID"
		} else {
			if err := s.checkRateCard(ctx, rc, "UPDATE_ERROR", "Failed to update invoice"); err != nil {
				return nil, err
			}
			cols["rate_card_id"] = rc
		}
	}
	if req.Memo != nil {
		if utf8.RuneCountInString(*req.Memo) > dto.MaxMemoLength {
			bad["memo"] = "must be at most 2000 characters"
		} else {
			cols["memo"] = *req.Memo
		}
	}
	if len(bad) > 0 {
		return nil, apierror.InvalidFields(bad)
	}
	if req.PartnerID != nil || req.PeriodEnd != nil {
		if due := dueDate(end, partner); due != nil {
			cols["payment_due_date"] = *due
		} else {
			cols["payment_due_date"] = nil
		}
	}
	return cols, nil
}

func (s *invoiceService) checkRateCard(ctx context.Context, id uuid.UUID, code, msg string) error {
	_, err := s.rateCards.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.Validation("RATE_CARD_NOT_FOUND", "Rate card not found")
	}
	if err != nil {
		return apierror.Upstream(code, msg, err)
	}
	return nil
}

// ── Items ────────────────────────────────────────────────────────────────────

func (s *invoiceService) AddItems(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.AddItemsRequest) (*dto.InvoiceDetailResponse, error) {
	if err := rbac.Check(caller.Role, rbac.OpItems); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, id, "UPDATE_ERROR", "Failed to update invoice")
	if err != nil {
		return nil, err
	}
	if current.Status != model.StatusDraft {
		return nil, apierror.InvalidStatus("Only Draft invoices can be modified", string(current.Status))
	}
	items, err := buildItems(id, req.Items)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].ID = uuid.New()
	}

	if err := s.mutateDraft(ctx, id, func(tx *gorm.DB) error {
		return s.repo.CreateItems(ctx, tx, items)
	}); err != nil {
		return nil, err
	}

	for i := range items {
		s.audit.Record(ctx, Change{
			Table:     "invoice_items",
			RecordID:  items[i].ID,
			ParentID:  &id,
			Operation: model.AuditInsert,
			New:       toItemResponse(&items[i]),
			Actor:     caller.Email,
		})
	}
	logger.Ctx(ctx).Info().
		Str("invoice_id", id.String()).
		Int("added", len(items)).
		Str("amount", sumAmounts(items).String()).
		Msg("invoice items added")

	return s.detail(ctx, id)
}

func (s *invoiceService) DeleteItem(ctx context.Context, caller identity.Identity, id, itemID uuid.UUID) (*dto.InvoiceDetailResponse, error) {
	if err := rbac.Check(caller.Role, rbac.OpItems); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, id, "UPDATE_ERROR", "Failed to update invoice")
	if err != nil {
		return nil, err
	}
	if current.Status != model.StatusDraft {
		return nil, apierror.InvalidStatus("Only Draft invoices can be modified", string(current.Status))
	}

	var removed *model.InvoiceItem
	if err := s.mutateDraft(ctx, id, func(tx *gorm.DB) error {
		item, err := s.repo.FindItem(ctx, tx, id, itemID)
		if err != nil {
			return err
		}
		removed = item
		return s.repo.DeleteItem(ctx, tx, itemID)
	}); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, Change{
		Table:     "invoice_items",
		RecordID:  itemID,
		ParentID:  &id,
		Operation: model.AuditDelete,
		Old:       toItemResponse(removed),
		Actor:     caller.Email,
	})
	return s.detail(ctx, id)
}

// mutateDraft runs fn in a transaction that first re-checks the invoice is
// still Draft (bumping updated_at) and finally recomputes the totals.
func (s *invoiceService) mutateDraft(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB) error) error {
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		ok, err := s.repo.UpdateStatus(ctx, tx, id, model.StatusDraft, map[string]any{"updated_at": s.now()})
		if err != nil {
			return err
		}
		if !ok {
			return errStatusChanged
		}
		if err := fn(tx); err != nil {
			return err
		}
		_, err = s.repo.ComputeTotals(ctx, tx, id, s.taxRate)
		return err
	})
	switch {
	case txErr == nil:
		return nil
	case errors.Is(txErr, errStatusChanged):
		return s.statusChanged(ctx, id, "Only Draft invoices can be modified")
	case errors.Is(txErr, gorm.ErrRecordNotFound):
		return apierror.NotFound("Invoice item not found")
	default:
		return apierror.Upstream("UPDATE_ERROR", "Failed to update invoice", txErr)
	}
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *invoiceService) load(ctx context.Context, id uuid.UUID, code, msg string) (*model.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("Invoice not found")
		}
		return nil, apierror.Upstream(code, msg, err)
	}
	return inv, nil
}

func (s *invoiceService) detail(ctx context.Context, id uuid.UUID) (*dto.InvoiceDetailResponse, error) {
	inv, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, apierror.Upstream("FETCH_ERROR", "Failed to fetch invoice", err)
	}
	resp := toInvoiceDetail(inv)
	return &resp, nil
}

// statusChanged reports a lost compare-and-swap with the status now stored.
func (s *invoiceService) statusChanged(ctx context.Context, id uuid.UUID, msg string) error {
	fresh, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return apierror.Upstream("UPDATE_ERROR", "Failed to update invoice", err)
	}
	return apierror.InvalidStatus(msg, string(fresh.Status))
}
