package worker

// email_worker.go: sends the issued invoice PDF to the partner once an
// invoice reaches Invoiced.

import (
	"context"
	"encoding/json"
	"fmt"

	"invoiceflow/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// InvoiceEmailJob is the payload queued on QueueEmail.
type InvoiceEmailJob struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	To        string    `json:"to"`
}

// RenderedInvoice is what the mailer needs from the PDF pipeline.
type RenderedInvoice struct {
	InvoiceNo   string
	PartnerName string
	Total       string
	DueDate     string
	Filename    string
	PDF         []byte
}

type InvoiceRenderer interface {
	RenderInvoice(ctx context.Context, invoiceID uuid.UUID) (*RenderedInvoice, error)
}

type MailSender interface {
	Send(msg infra.Message) error
}

type EmailWorker struct {
	renderer InvoiceRenderer
	mailer   MailSender
	company  string
}

func NewEmailWorker(renderer InvoiceRenderer, mailer MailSender, company string) *EmailWorker {
	return &EmailWorker{renderer: renderer, mailer: mailer, company: company}
}

func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var job InvoiceEmailJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", err)
	}
	if job.To == "" {
		log.Warn().Str("invoice_id", job.InvoiceID.String()).Msg("email_worker: empty recipient, skipping")
		return nil
	}

	doc, err := w.renderer.RenderInvoice(ctx, job.InvoiceID)
	if err != nil {
		return fmt.Errorf("email_worker: render %s: %w", job.InvoiceID, err)
	}

	msg := infra.Message{
		To:      []string{job.To},
		Subject: fmt.Sprintf("【請求書】%s %s", doc.InvoiceNo, w.company),
		Text:    invoiceMailBody(doc, w.company),
		Attachments: []infra.Attachment{
			{Filename: doc.Filename, ContentType: "application/pdf", Data: doc.PDF},
		},
	}
	if err := w.mailer.Send(msg); err != nil {
		return err
	}
	log.Info().
		Str("invoice_no", doc.InvoiceNo).
		Str("to", job.To).
		Msg("email_worker: invoice sent")
	return nil
}

func invoiceMailBody(doc *RenderedInvoice, company string) string {
	return fmt.Sprintf(`%s 御中

いつもお世話になっております。%sです。
請求書（%s）を添付にてお送りいたします。

ご請求金額: %s
お支払期限: %s

ご確認のほど、よろしくお願いいたします。
`, doc.PartnerName, company, doc.InvoiceNo, doc.Total, doc.DueDate)
}
