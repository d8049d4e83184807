package task

import "time"

const (
	AuditRecordTask = "audit:record"
)

// AuditRecordPayload is the queued form of an audit log entry. The worker
// forwards it verbatim to the audit service.
type AuditRecordPayload struct {
	Action        string         `json:"action"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       map[string]any `json:"payload"`
}
