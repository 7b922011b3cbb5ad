package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/payment"
)

func TestSimulatedChargeZeroDelay(t *testing.T) {
	p := payment.Simulated{}
	res, err := p.Charge(context.Background(), payment.ChargeRequest{Reference: "TXN1", Amount: 82500, Method: model.PaymentCash})
	require.NoError(t, err)
	require.Equal(t, "simulated", res.Provider)
	require.Equal(t, int64(82500), res.Amount)
	require.Equal(t, "simulated", payment.ProviderName(p))
}

func TestSimulatedChargeCancelled(t *testing.T) {
	p := payment.Simulated{PaymentDelay: time.Minute}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := p.Charge(ctx, payment.ChargeRequest{Amount: 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestSimulatedRefundDelay(t *testing.T) {
	p := payment.Simulated{RefundDelay: 5 * time.Millisecond}
	start := time.Now()
	require.NoError(t, p.Refund(context.Background(), payment.RefundRequest{Reference: "REF1", Amount: 50000}))
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	require.Error(t, p.Refund(context.Background(), payment.RefundRequest{Amount: -1}))
}

func TestWaitHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, payment.Wait(ctx, 0), context.Canceled)
}
