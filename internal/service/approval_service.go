package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/dto"
	"invoiceflow/internal/identity"
	"invoiceflow/internal/logger"
	"invoiceflow/internal/model"
	"invoiceflow/internal/rbac"
	"invoiceflow/internal/repository"
	"invoiceflow/internal/worker"
	"invoiceflow/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalService drives invoices through the approval workflow.
type ApprovalService interface {
	Transition(ctx context.Context, caller identity.Identity, id uuid.UUID, action workflow.Action, req dto.TransitionRequest) (*dto.TransitionResponse, error)
	Submit(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.TransitionRequest) (*dto.TransitionResponse, error)
	Approve(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.TransitionRequest) (*dto.TransitionResponse, error)
	Reject(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.TransitionRequest) (*dto.TransitionResponse, error)
	Reopen(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.TransitionRequest) (*dto.TransitionResponse, error)
}

type approvalService struct {
	invoices   repository.InvoiceRepository
	approvals  repository.ApprovalRepository
	audit      AuditService
	counter    TransitionCounter
	dispatcher JobDispatcher
	notify     bool
	now        func() time.Time
}

// NewApprovalService wires the workflow. notify enables the partner email
// on entering Invoiced and requires a dispatcher.
func NewApprovalService(
	invoices repository.InvoiceRepository,
	approvals repository.ApprovalRepository,
	audit AuditService,
	counter TransitionCounter,
	dispatcher JobDispatcher,
	notify bool,
) ApprovalService {
	if counter == nil {
		counter = noopCounter{}
	}
	return &approvalService{
		invoices:   invoices,
		approvals:  approvals,
		audit:      audit,
		counter:    counter,
		dispatcher: dispatcher,
		notify:     notify && dispatcher != nil,
		now:        time.Now,
	}
}

type actionRule struct {
	op      rbac.Operation
	code    string
	failure string
}

var actionRules = map[workflow.Action]actionRule{
	workflow.Submit:  {rbac.OpSubmit, "SUBMIT_ERROR", "Failed to submit invoice"},
	workflow.Approve: {rbac.OpApprove, "APPROVE_ERROR", "Failed to approve invoice"},
	workflow.Reject:  {rbac.OpReject, "REJECT_ERROR", "Failed to reject invoice"},
	workflow.Reopen:  {rbac.OpReopen, "REOPEN_ERROR", "Failed to reopen invoice"},
}

func (s *approvalService) Submit(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.TransitionRequest) (*dto.TransitionResponse, error) {
	return s.Transition(ctx, caller, id, workflow.Submit, req)
}

func (s *approvalService) Approve(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.TransitionRequest) (*dto.TransitionResponse, error) {
	return s.Transition(ctx, caller, id, workflow.Approve, req)
}

func (s *approvalService) Reject(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.TransitionRequest) (*dto.TransitionResponse, error) {
	return s.Transition(ctx, caller, id, workflow.Reject, req)
}

func (s *approvalService) Reopen(ctx context.Context, caller identity.Identity, id uuid.UUID, req dto.TransitionRequest) (*dto.TransitionResponse, error) {
	return s.Transition(ctx, caller, id, workflow.Reopen, req)
}

// Transition applies one workflow action:
//  1. Guard, then the comment rule (checked before any read)
//  2. Load the invoice and look up the transition for its status
//  3. TX: compare-and-swap the status, append the approval event
//  4. After commit: counter, audit, partner notification (all best effort)
func (s *approvalService) Transition(ctx context.Context, caller identity.Identity, id uuid.UUID, action workflow.Action, req dto.TransitionRequest) (*dto.TransitionResponse, error) {
	rule, ok := actionRules[action]
	if !ok {
		return nil, apierror.Validation("INVALID_ACTION", "Unknown workflow action")
	}
	if err := rbac.Check(caller.Role, rule.op); err != nil {
		return nil, err
	}
	if workflow.RequiresComment(action) && strings.TrimSpace(req.Comment) == "" {
		return nil, apierror.Validation("COMMENT_REQUIRED", "Comment is required for rejection")
	}

	inv, err := s.invoices.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("Invoice not found")
		}
		return nil, apierror.Upstream(rule.code, rule.failure, err)
	}

	t, err := workflow.Next(inv.Status, action)
	if err != nil {
		var invalid *workflow.InvalidTransitionError
		if errors.As(err, &invalid) {
			return nil, apierror.InvalidStatus(invalid.Message(), string(inv.Status))
		}
		return nil, apierror.Upstream(rule.code, rule.failure, err)
	}

	now := s.now()
	event := t.Event(inv, caller.Email, req.ApproverRole, req.Comment, now)

	txErr := runTx(ctx, s.invoices.DB(), func(tx *gorm.DB) error {
		ok, err := s.invoices.UpdateStatus(ctx, tx, id, t.From, t.Columns(caller.Email, now))
		if err != nil {
			return err
		}
		if !ok {
			return errStatusChanged
		}
		return s.approvals.Create(ctx, tx, event)
	})
	if errors.Is(txErr, errStatusChanged) {
		fresh, err := s.invoices.FindByID(ctx, nil, id)
		if err != nil {
			return nil, apierror.Upstream(rule.code, rule.failure, err)
		}
		invalid := &workflow.InvalidTransitionError{From: fresh.Status, Action: action}
		return nil, apierror.InvalidStatus(invalid.Message(), string(fresh.Status))
	}
	if txErr != nil {
		return nil, apierror.Upstream(rule.code, rule.failure, txErr)
	}

	s.counter.Inc(ctx, string(action), event.ApproverRole)
	s.audit.Record(ctx, Change{
		Table:     "invoices",
		RecordID:  id,
		Operation: model.AuditUpdate,
		Old:       map[string]any{"status": t.From},
		New: map[string]any{
			"status":        t.To,
			"action":        string(action),
			"approver_role": event.ApproverRole,
			"comment":       event.Comment,
		},
		Actor: caller.Email,
	})
	if t.To == model.StatusInvoiced {
		s.notifyPartner(ctx, inv)
	}

	logger.Ctx(ctx).Info().
		Str("invoice_id", id.String()).
		Str("action", string(action)).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("actor", caller.Email).
		Msg("invoice transition")

	return &dto.TransitionResponse{Message: t.Message, Status: string(t.To)}, nil
}

func (s *approvalService) notifyPartner(ctx context.Context, inv *model.Invoice) {
	if !s.notify || inv.Partner == nil || inv.Partner.Email == nil || *inv.Partner.Email == "" {
		return
	}
	job := worker.InvoiceEmailJob{InvoiceID: inv.ID, To: *inv.Partner.Email}
	if err := s.dispatcher.EnqueueInvoiceEmail(context.WithoutCancel(ctx), job); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("invoice email enqueue failed")
	}
}
