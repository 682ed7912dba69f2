package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/elitesurfing/backend-loja/internal/common"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type counter interface{ Inc() }

// Operator enqueues operator alerts. PIX orders have no payment processor
// behind them, so a human confirms the transfer and marks the order paid.
type Operator struct {
	Client   Enqueuer
	Logger   zerolog.Logger
	Enqueued counter
}

// EnqueuePixAlert schedules the operator alert for a freshly placed PIX
// order. Enqueue failure is reported but must not fail the order: the
// admin order list is the fallback surface.
func (o *Operator) EnqueuePixAlert(ctx context.Context, payload PixAlertPayload) error {
	if o == nil || o.Client == nil {
		return errors.New("notify: task client not configured")
	}
	task, err := NewPixAlertTask(payload)
	if err != nil {
		return err
	}
	info, err := o.Client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("notify: enqueue pix alert: %w", err)
	}
	if o.Enqueued != nil {
		o.Enqueued.Inc()
	}
	o.Logger.Debug().Str("taskId", info.ID).Str("orderId", payload.OrderID).Msg("pix operator alert enqueued")
	return nil
}

// Worker handles operator alert tasks on the asynq consumer side.
type Worker struct {
	Email  common.EmailSender
	From   string
	Inbox  string
	Logger zerolog.Logger
}

// Register binds the worker's handlers onto the mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOperatorPixAlert, w.HandlePixAlert)
}

// HandlePixAlert emails the operations inbox about a PIX order awaiting
// manual confirmation.
func (w *Worker) HandlePixAlert(ctx context.Context, task *asynq.Task) error {
	var payload PixAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// malformed payload will never parse; do not retry
		return fmt.Errorf("notify: decode pix alert: %v: %w", err, asynq.SkipRetry)
	}
	if w.Email == nil || w.Inbox == "" {
		w.Logger.Warn().Str("orderId", payload.OrderID).Msg("operator email not configured, dropping pix alert")
		return nil
	}
	subject := fmt.Sprintf("Pedido PIX aguardando confirmação: %s", payload.OrderID)
	body := fmt.Sprintf(
		"<p>Novo pedido PIX aguardando confirmação de pagamento.</p>"+
			"<ul><li>Pedido: %s</li><li>Valor: R$ %d,%02d</li><li>Cliente: %s (%s)</li><li>Criado em: %s</li></ul>",
		payload.OrderID,
		payload.TotalAmount/100, payload.TotalAmount%100,
		payload.CustomerName, payload.CustomerEmail, payload.PlacedAt,
	)
	if err := w.Email.Send(w.Inbox, subject, body); err != nil {
		return fmt.Errorf("notify: send pix alert: %w", err)
	}
	w.Logger.Info().Str("orderId", payload.OrderID).Msg("pix operator alert delivered")
	return nil
}
