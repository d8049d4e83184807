package audit

import (
	"context"
	"encoding/json"
	"time"

	"evcarbon-marketplace/pkg/correlation"
	"evcarbon-marketplace/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Audit actions emitted by the verification workflow.
const (
	ActionRequestCreated  = "verification.request.created"
	ActionRequestApproved = "verification.request.approved"
	ActionRequestRejected = "verification.request.rejected"
	ActionCreditsIssued   = "issuance.credits.issued"
)

// Recorder is the best-effort audit sink used by business services. Calls
// never fail; a delivery problem is logged and swallowed so an audit outage
// cannot roll back a verification or an issuance.
type Recorder interface {
	Record(ctx context.Context, action string, payload map[string]any)
}

// Notifier queues audit records for asynchronous delivery. The enqueue is the
// only work done on the request path.
type Notifier struct {
	enqueuer task.Enqueuer
}

func NewNotifier(enqueuer task.Enqueuer) *Notifier {
	return &Notifier{enqueuer: enqueuer}
}

func (n *Notifier) Record(ctx context.Context, action string, payload map[string]any) {
	record := task.AuditRecordPayload{
		Action:        action,
		CorrelationID: correlation.FromContext(ctx),
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}

	body, err := json.Marshal(record)
	if err != nil {
		zap.L().Warn("failed to marshal audit record",
			zap.String("action", action),
			zap.String("correlation_id", record.CorrelationID),
			zap.Error(err))
		return
	}

	if _, err := n.enqueuer.Enqueue(ctx, asynq.NewTask(task.AuditRecordTask, body), asynq.Queue("low")); err != nil {
		zap.L().Warn("failed to enqueue audit record",
			zap.String("action", action),
			zap.String("correlation_id", record.CorrelationID),
			zap.Error(err))
	}
}
