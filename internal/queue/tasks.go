// Package queue defines the background tasks processed by cmd/worker and the
// client used to schedule them.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// TypeReceiptEmail is the asynq task type for receipt e-mails.
const TypeReceiptEmail = "receipt:email"

// ReceiptPayload identifies the receipt to send.
type ReceiptPayload struct {
	TransactionID string `json:"transactionId"`
	Email         string `json:"email"`
}

// NewReceiptTask builds a receipt e-mail task. The task id deduplicates
// repeated requests for the same transaction and address.
func NewReceiptTask(p ReceiptPayload) (*asynq.Task, error) {
	p.TransactionID = strings.TrimSpace(p.TransactionID)
	p.Email = strings.TrimSpace(p.Email)
	if p.TransactionID == "" || p.Email == "" {
		return nil, errors.New("queue: receipt task needs transaction id and email")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReceiptEmail, raw,
		asynq.TaskID(fmt.Sprintf("receipt:%s:%s", p.TransactionID, strings.ToLower(p.Email))),
		asynq.MaxRetry(8),
		asynq.Timeout(30*time.Second),
		asynq.Retention(24*time.Hour),
	), nil
}

// DecodeReceipt parses a receipt task payload.
func DecodeReceipt(t *asynq.Task) (ReceiptPayload, error) {
	var p ReceiptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ReceiptPayload{}, fmt.Errorf("queue: decode receipt payload: %w", err)
	}
	if p.TransactionID == "" || p.Email == "" {
		return ReceiptPayload{}, errors.New("queue: receipt payload incomplete")
	}
	return p, nil
}

// TaskClient is the subset of *asynq.Client used for scheduling.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules tasks on a queue.
type Enqueuer struct {
	Client TaskClient
	Queue  string
}

// EnqueueReceipt schedules a receipt e-mail. Duplicate requests are ignored.
func (e Enqueuer) EnqueueReceipt(ctx context.Context, transactionID, email string) error {
	if e.Client == nil {
		return errors.New("queue: client not configured")
	}
	task, err := NewReceiptTask(ReceiptPayload{TransactionID: transactionID, Email: email})
	if err != nil {
		return err
	}
	var opts []asynq.Option
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	_, err = e.Client.EnqueueContext(ctx, task, opts...)
	switch {
	case err == nil:
		enqueued.WithLabelValues(TypeReceiptEmail, "queued").Inc()
		return nil
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		enqueued.WithLabelValues(TypeReceiptEmail, "duplicate").Inc()
		return nil
	default:
		enqueued.WithLabelValues(TypeReceiptEmail, "error").Inc()
		return fmt.Errorf("queue: enqueue receipt: %w", err)
	}
}
