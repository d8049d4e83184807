package audit

import (
	"context"
	"encoding/json"

	"evcarbon-marketplace/pkg/correlation"
	"evcarbon-marketplace/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// RegisterHandlers wires the audit delivery task onto the worker mux.
// Handler errors make asynq retry the task; the business flow that enqueued
// it has long since returned.
func RegisterHandlers(mux *asynq.ServeMux, client Client) {
	mux.HandleFunc(task.AuditRecordTask, func(ctx context.Context, t *asynq.Task) error {
		var record task.AuditRecordPayload
		if err := json.Unmarshal(t.Payload(), &record); err != nil {
			zap.L().Error("malformed audit record payload, dropping", zap.Error(err))
			return nil
		}

		ctx = correlation.WithID(ctx, record.CorrelationID)
		if err := client.Record(ctx, record.Action, record.Payload); err != nil {
			zap.L().Warn("audit record delivery failed, will retry",
				zap.String("action", record.Action),
				zap.String("correlation_id", record.CorrelationID),
				zap.Error(err))
			return err
		}

		return nil
	})
}
