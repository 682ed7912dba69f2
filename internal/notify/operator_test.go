package notify

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/elitesurfing/backend-loja/internal/common"
)

type captureEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func TestEnqueuePixAlert(t *testing.T) {
	t.Parallel()

	enq := &captureEnqueuer{}
	op := &Operator{Client: enq, Logger: zerolog.Nop()}

	err := op.EnqueuePixAlert(context.Background(), PixAlertPayload{OrderID: "ord-1", TotalAmount: 25000})
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TypeOperatorPixAlert, enq.tasks[0].Type())
}

func TestEnqueuePixAlertDuplicateIsSilent(t *testing.T) {
	t.Parallel()

	enq := &captureEnqueuer{err: asynq.ErrTaskIDConflict}
	op := &Operator{Client: enq, Logger: zerolog.Nop()}

	err := op.EnqueuePixAlert(context.Background(), PixAlertPayload{OrderID: "ord-1", TotalAmount: 25000})
	require.NoError(t, err)
}

func TestEnqueuePixAlertRequiresOrderID(t *testing.T) {
	t.Parallel()

	op := &Operator{Client: &captureEnqueuer{}, Logger: zerolog.Nop()}
	err := op.EnqueuePixAlert(context.Background(), PixAlertPayload{})
	require.Error(t, err)
}

func TestHandlePixAlertSendsOperatorEmail(t *testing.T) {
	t.Parallel()

	outbox := &common.InMemoryEmail{}
	w := &Worker{Email: outbox, From: "loja@example.com", Inbox: "ops@example.com", Logger: zerolog.Nop()}

	task, err := NewPixAlertTask(PixAlertPayload{
		OrderID: "ord-42", TotalAmount: 81000, CustomerName: "Ana", CustomerEmail: "ana@example.com",
	})
	require.NoError(t, err)
	require.NoError(t, w.HandlePixAlert(context.Background(), task))

	require.Len(t, outbox.Outbox, 1)
	require.Equal(t, "ops@example.com", outbox.Outbox[0].To)
	require.Contains(t, outbox.Outbox[0].Subject, "ord-42")
	require.Contains(t, outbox.Outbox[0].HTML, "R$ 810,00")
}
