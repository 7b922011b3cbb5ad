package payment

import (
	"context"
	"strings"

	"github.com/noah-isme/backend-kasir/internal/model"
)

// ChargeRequest captures what a provider needs to settle a sale.
type ChargeRequest struct {
	Reference string
	Amount    int64
	Method    model.PaymentMethod
}

// ChargeResult is returned once a charge settles.
type ChargeResult struct {
	Provider  string
	Reference string
	Method    model.PaymentMethod
	Amount    int64
}

// RefundRequest captures what a provider needs to return money.
type RefundRequest struct {
	Reference string
	Amount    int64
}

// Provider abstracts the settlement step of checkout and refunds. Charge and
// Refund must not have side effects when ctx is cancelled before they return.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) error
}

// ProviderName returns a metric-safe label for p.
func ProviderName(p Provider) string {
	switch p.(type) {
	case Simulated, *Simulated:
		return "simulated"
	default:
		return "unknown"
	}
}

func normaliseLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
