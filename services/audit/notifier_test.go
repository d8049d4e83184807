package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"evcarbon-marketplace/pkg/correlation"
	"evcarbon-marketplace/pkg/task"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, t)
	return &asynq.TaskInfo{}, nil
}

func TestRecordEnqueuesAuditTask(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := NewNotifier(enq)

	ctx := correlation.WithID(context.Background(), "corr-1")
	notifier.Record(ctx, ActionRequestApproved, map[string]any{"request_id": "req-1"})

	require.Len(t, enq.tasks, 1)
	require.Equal(t, task.AuditRecordTask, enq.tasks[0].Type())

	var record task.AuditRecordPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &record))
	require.Equal(t, ActionRequestApproved, record.Action)
	require.Equal(t, "corr-1", record.CorrelationID)
	require.Equal(t, "req-1", record.Payload["request_id"])
	require.False(t, record.OccurredAt.IsZero())
}

func TestRecordSwallowsEnqueueFailure(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	notifier := NewNotifier(enq)

	// Must not panic or propagate; audit is best effort.
	notifier.Record(context.Background(), ActionRequestCreated, map[string]any{"request_id": "req-1"})
	require.Empty(t, enq.tasks)
}

type fakeClient struct {
	calls  int
	err    error
	action string
}

func (f *fakeClient) Record(ctx context.Context, action string, payload map[string]any) error {
	f.calls++
	f.action = action
	return f.err
}

func TestWorkerHandlerDeliversRecord(t *testing.T) {
	mux := asynq.NewServeMux()
	client := &fakeClient{}
	RegisterHandlers(mux, client)

	body, err := json.Marshal(task.AuditRecordPayload{
		Action:        ActionCreditsIssued,
		CorrelationID: "corr-1",
		Payload:       map[string]any{"issuance_id": "i-1"},
	})
	require.NoError(t, err)

	err = mux.ProcessTask(context.Background(), asynq.NewTask(task.AuditRecordTask, body))
	require.NoError(t, err)
	require.Equal(t, 1, client.calls)
	require.Equal(t, ActionCreditsIssued, client.action)
}

func TestWorkerHandlerDropsMalformedPayload(t *testing.T) {
	mux := asynq.NewServeMux()
	client := &fakeClient{}
	RegisterHandlers(mux, client)

	err := mux.ProcessTask(context.Background(), asynq.NewTask(task.AuditRecordTask, []byte("not json")))
	require.NoError(t, err)
	require.Equal(t, 0, client.calls)
}

func TestWorkerHandlerRetriesOnDeliveryFailure(t *testing.T) {
	mux := asynq.NewServeMux()
	client := &fakeClient{err: errors.New("audit service unavailable")}
	RegisterHandlers(mux, client)

	body, err := json.Marshal(task.AuditRecordPayload{Action: ActionRequestCreated})
	require.NoError(t, err)

	err = mux.ProcessTask(context.Background(), asynq.NewTask(task.AuditRecordTask, body))
	require.Error(t, err)
}
