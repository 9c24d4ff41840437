package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"invoiceflow/internal/model"

	"github.com/rs/zerolog/log"
)

// AuditWriter persists audit rows. Writes must be idempotent on the row ID
// since a retried job may follow an insert that did commit.
type AuditWriter interface {
	Create(ctx context.Context, entry *model.AuditLog) error
}

// AuditWorker replays audit rows that could not be written inline.
type AuditWorker struct {
	store AuditWriter
}

func NewAuditWorker(store AuditWriter) *AuditWorker {
	return &AuditWorker{store: store}
}

func (w *AuditWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var entry model.AuditLog
	if err := json.Unmarshal(raw, &entry); err != nil {
		return fmt.Errorf("audit_worker: invalid payload: %w", err)
	}
	if err := w.store.Create(ctx, &entry); err != nil {
		return fmt.Errorf("audit_worker: write %s/%s: %w", entry.EntityTable, entry.RecordID, err)
	}
	log.Debug().
		Str("table", entry.EntityTable).
		Str("record_id", entry.RecordID.String()).
		Str("operation", string(entry.Operation)).
		Msg("audit_worker: deferred audit row written")
	return nil
}
