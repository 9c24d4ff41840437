package dto

import (
	"encoding/json"
	"time"
)

type AuditLogResponse struct {
	ID        string          `json:"id"`
	TableName string          `json:"table_name"`
	RecordID  string          `json:"record_id"`
	Operation string          `json:"operation"`
	OldValues json.RawMessage `json:"old_values,omitempty"`
	NewValues json.RawMessage `json:"new_values,omitempty"`
	ChangedBy string          `json:"changed_by"`
	RequestID string          `json:"request_id,omitempty"`
	ChangedAt time.Time       `json:"changed_at"`
}
