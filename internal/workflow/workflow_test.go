package workflow_test

import (
	"slices"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoiceflow/internal/model"
	"invoiceflow/internal/workflow"
)

var allStatuses = []model.InvoiceStatus{
	model.StatusDraft, model.StatusSubmitted, model.StatusApproved, model.StatusInvoiced, model.StatusRejected,
}

var _ = Describe("Next", func() {
	DescribeTable("permitted transitions",
		func(from model.InvoiceStatus, action workflow.Action, to model.InvoiceStatus, eventAction string) {
			t, err := workflow.Next(from, action)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.To).To(Equal(to))
			Expect(t.EventAction).To(Equal(eventAction))
		},
		Entry("submit a draft", model.StatusDraft, workflow.Submit, model.StatusSubmitted, model.ActionApprove),
		Entry("approve a submission", model.StatusSubmitted, workflow.Approve, model.StatusApproved, model.ActionApprove),
		Entry("approve an approved invoice", model.StatusApproved, workflow.Approve, model.StatusInvoiced, model.ActionApprove),
		Entry("reject a submission", model.StatusSubmitted, workflow.Reject, model.StatusRejected, model.ActionReject),
		Entry("reject an approved invoice", model.StatusApproved, workflow.Reject, model.StatusRejected, model.ActionReject),
		Entry("reopen a rejection", model.StatusRejected, workflow.Reopen, model.StatusDraft, model.ActionRequestChange),
	)

	It("rejects every pair outside the table", func() {
		permitted := map[model.InvoiceStatus][]workflow.Action{
			model.StatusDraft:     {workflow.Submit},
			model.StatusSubmitted: {workflow.Approve, workflow.Reject},
			model.StatusApproved:  {workflow.Approve, workflow.Reject},
			model.StatusRejected:  {workflow.Reopen},
		}
		for _, from := range allStatuses {
			for _, action := range workflow.Actions {
				_, err := workflow.Next(from, action)
				if slices.Contains(permitted[from], action) {
					Expect(err).NotTo(HaveOccurred())
					continue
				}
				var invalid *workflow.InvalidTransitionError
				Expect(err).To(BeAssignableToTypeOf(invalid), "%s from %s", action, from)
			}
		}
	})

	It("treats Invoiced as terminal", func() {
		Expect(workflow.Allowed(model.StatusInvoiced)).To(BeEmpty())
	})
})

var _ = Describe("Transition", func() {
	at := time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC)

	It("stamps the approver when entering Approved", func() {
		t, _ := workflow.Next(model.StatusSubmitted, workflow.Approve)
		cols := t.Columns("boss@example.com", at)
		Expect(cols).To(HaveKeyWithValue("status", model.StatusApproved))
		Expect(cols).To(HaveKeyWithValue("approved_by", "boss@example.com"))
		Expect(cols).To(HaveKeyWithValue("approved_at", at))
		Expect(cols).NotTo(HaveKey("invoiced_at"))
	})

	It("stamps invoiced_at when entering Invoiced", func() {
		t, _ := workflow.Next(model.StatusApproved, workflow.Approve)
		cols := t.Columns("boss@example.com", at)
		Expect(cols).To(HaveKeyWithValue("invoiced_at", at))
		Expect(cols).NotTo(HaveKey("approved_by"))
	})

	It("records field as the role on submit whatever the caller asks", func() {
		t, _ := workflow.Next(model.StatusDraft, workflow.Submit)
		Expect(t.Role("accounting")).To(Equal(model.ApproverField))
	})

	It("honours a requested role on approve and falls back to manager", func() {
		t, _ := workflow.Next(model.StatusSubmitted, workflow.Approve)
		Expect(t.Role("accounting")).To(Equal(model.ApproverAccounting))
		Expect(t.Role("")).To(Equal(model.ApproverManager))
		Expect(t.Role("ceo")).To(Equal(model.ApproverManager))
	})

	It("defaults the reopen comment", func() {
		t, _ := workflow.Next(model.StatusRejected, workflow.Reopen)
		Expect(*t.Comment("  ")).To(Equal(workflow.DefaultReopenComment))
		Expect(*t.Comment("new rates")).To(Equal("new rates"))
	})

	It("builds an event carrying both statuses", func() {
		inv := &model.Invoice{Status: model.StatusSubmitted}
		t, _ := workflow.Next(inv.Status, workflow.Reject)
		ev := t.Event(inv, "m@example.com", "", "fix pricing", at)
		Expect(ev.PreviousStatus).To(Equal(model.StatusSubmitted))
		Expect(ev.NewStatus).To(Equal(model.StatusRejected))
		Expect(ev.Action).To(Equal(model.ActionReject))
		Expect(*ev.Comment).To(Equal("fix pricing"))
	})
})

var _ = Describe("RequiresComment", func() {
	It("is true only for reject", func() {
		Expect(workflow.RequiresComment(workflow.Reject)).To(BeTrue())
		Expect(workflow.RequiresComment(workflow.Approve)).To(BeFalse())
		Expect(workflow.RequiresComment(workflow.Reopen)).To(BeFalse())
	})
})

var _ = Describe("ParseAction", func() {
	It("accepts known verbs case-insensitively", func() {
		a, ok := workflow.ParseAction("Approve")
		Expect(ok).To(BeTrue())
		Expect(a).To(Equal(workflow.Approve))
	})

	It("refuses unknown verbs", func() {
		_, ok := workflow.ParseAction("archive")
		Expect(ok).To(BeFalse())
	})
})
