package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/notify"
	"github.com/noah-isme/backend-kasir/internal/receipt"
	"github.com/noah-isme/backend-kasir/internal/store"
)

// ReceiptHandler renders and mails receipts.
type ReceiptHandler struct {
	Transactions store.TransactionStore
	Renderer     receipt.Renderer
	Mail         notify.Mailer
	Logger       zerolog.Logger
}

var _ asynq.Handler = ReceiptHandler{}

// ProcessTask implements asynq.Handler. Malformed payloads and unknown
// transactions are not retried.
func (h ReceiptHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	status := "error"
	defer func() { processed.WithLabelValues(TypeReceiptEmail, status).Inc() }()

	p, err := DecodeReceipt(t)
	if err != nil {
		status = "invalid"
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	tx, err := h.Transactions.GetTransaction(ctx, p.TransactionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			status = "invalid"
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}
	body := h.Renderer.Transaction(tx)
	msg := notify.Message{
		To:      p.Email,
		Subject: notify.SubjectFor(events.TopicTransactionCompleted) + " " + tx.ID,
		Text:    body,
	}
	if err := h.Mail.Send(ctx, msg); err != nil {
		h.Logger.Warn().Err(err).Str("transaction_id", tx.ID).Msg("receipt email failed")
		return err
	}
	status = "success"
	h.Logger.Info().Str("transaction_id", tx.ID).Msg("receipt email sent")
	return nil
}

// Register mounts every task handler on mux.
func Register(mux *asynq.ServeMux, receipts ReceiptHandler) {
	mux.Handle(TypeReceiptEmail, receipts)
}
