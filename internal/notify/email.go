package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

// ReceiptQueue schedules receipt e-mails for background delivery.
type ReceiptQueue interface {
	EnqueueReceipt(ctx context.Context, transactionID, email string) error
}

// ReceiptNotifier queues a receipt e-mail for every completed sale that
// carries a customer e-mail address.
type ReceiptNotifier struct {
	Queue   ReceiptQueue
	Enabled bool
}

type receiptPayload struct {
	ID            string `json:"id"`
	CustomerEmail string `json:"customerEmail"`
}

// Notify implements events.Notifier.
func (n ReceiptNotifier) Notify(ctx context.Context, event events.Event) error {
	if !n.Enabled || n.Queue == nil || event.Topic != events.TopicTransactionCompleted {
		return nil
	}
	var payload receiptPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("receipt notify: decode payload: %w", err)
		}
	}
	to := strings.TrimSpace(payload.CustomerEmail)
	if to == "" {
		return nil
	}
	txID := payload.ID
	if txID == "" {
		txID = event.AggregateID
	}
	err := n.Queue.EnqueueReceipt(ctx, txID, to)
	result := "queued"
	if err != nil {
		result = "enqueue_failed"
	}
	if obs.ReceiptEmailTotal != nil {
		obs.ReceiptEmailTotal.WithLabelValues(result).Inc()
	}
	return err
}

// SubjectFor returns the e-mail subject used for a topic.
func SubjectFor(topic string) string {
	switch topic {
	case events.TopicTransactionCompleted:
		return "Struk pembelian Anda"
	case events.TopicRefundCompleted:
		return "Refund berhasil diproses"
	default:
		return fmt.Sprintf("Notifikasi %s", topic)
	}
}
