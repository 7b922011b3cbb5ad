package payment

import (
	"context"
	"errors"
	"time"
)

// Simulated settles every charge after a fixed processing delay. A zero delay
// settles immediately.
type Simulated struct {
	PaymentDelay time.Duration
	RefundDelay  time.Duration
}

var _ Provider = Simulated{}

// Charge waits PaymentDelay and settles the full amount.
func (s Simulated) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if req.Amount < 0 {
		return ChargeResult{}, errors.New("payment: negative amount")
	}
	if err := Wait(ctx, s.PaymentDelay); err != nil {
		return ChargeResult{}, err
	}
	return ChargeResult{
		Provider:  normaliseLabel("simulated"),
		Reference: req.Reference,
		Method:    req.Method,
		Amount:    req.Amount,
	}, nil
}

// Refund waits RefundDelay.
func (s Simulated) Refund(ctx context.Context, req RefundRequest) error {
	if req.Amount < 0 {
		return errors.New("payment: negative amount")
	}
	return Wait(ctx, s.RefundDelay)
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
