package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeOperatorPixAlert is the asynq task type for the operator alert sent
// when a PIX order is created and awaits manual payment confirmation.
const TypeOperatorPixAlert = "notify:operator_pix"

// PixAlertPayload carries the facts the operator needs to reconcile the
// PIX transfer against the order.
type PixAlertPayload struct {
	OrderID       string `json:"orderId"`
	TotalAmount   int64  `json:"totalAmount"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	PlacedAt      string `json:"placedAt"`
}

// NewPixAlertTask builds the asynq task for a PIX operator alert. The order
// id doubles as the idempotency key so a retried placement never produces a
// second alert.
func NewPixAlertTask(payload PixAlertPayload) (*asynq.Task, error) {
	if payload.OrderID == "" {
		return nil, fmt.Errorf("notify: order id is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOperatorPixAlert, data,
		asynq.TaskID("pix-alert:"+payload.OrderID),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}
