package checkout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/payment"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// StockApplier applies all-or-nothing stock deltas.
type StockApplier interface {
	ApplyStock(ctx context.Context, deltas []model.StockDelta) error
}

// Ledger appends sale records.
type Ledger interface {
	AppendTransaction(ctx context.Context, tx model.Transaction) error
}

// Service completes sales: it prices the cart, settles payment, decrements
// stock and appends the transaction.
type Service struct {
	Catalog       StockApplier
	Ledger        Ledger
	Payments      payment.Provider
	TaxBps        int
	Events        events.Emitter
	Logger        zerolog.Logger
	Now           func() time.Time
	MaxIDAttempts int
}

// Request is a snapshot of the terminal at checkout time.
type Request struct {
	Lines         []model.LineItem
	PaymentMethod model.PaymentMethod
	DiscountBps   int
	Operator      string
	CustomerName  string
	CustomerEmail string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) maxAttempts() int {
	if s.MaxIDAttempts > 0 {
		return s.MaxIDAttempts
	}
	return 5
}

// Validate reports the first precondition a request fails.
func Validate(req Request) error {
	if len(req.Lines) == 0 {
		return model.NewError(model.ErrEmptyCart, "keranjang masih kosong")
	}
	if !req.PaymentMethod.Valid() {
		return model.NewError(model.ErrNoPaymentMethod, "pilih metode pembayaran terlebih dahulu")
	}
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return model.Errorf(model.ErrValidation, "quantity for product %d must be positive", l.ProductID)
		}
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" && !emailPattern.MatchString(email) {
		return model.NewError(model.ErrValidation, "format email pelanggan tidak valid")
	}
	return nil
}

// Complete records a sale. Either the transaction is appended and every
// line's stock is decremented, or nothing is committed.
func (s *Service) Complete(ctx context.Context, req Request) (model.Transaction, error) {
	if s == nil || s.Catalog == nil || s.Ledger == nil || s.Payments == nil {
		return model.Transaction{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.Complete")
	defer span.End()

	start := time.Now()
	methodLabel := string(req.PaymentMethod)
	if methodLabel == "" {
		methodLabel = "none"
	}
	result := "error"
	var total int64
	defer func() {
		span.SetAttributes(
			attribute.String("checkout.method", methodLabel),
			attribute.String("checkout.result", result),
			attribute.Int("checkout.lines", len(req.Lines)),
			attribute.Int64("checkout.total", total),
			attribute.Float64("checkout.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues(methodLabel, result).Inc()
		}
		if result == "success" && obs.CheckoutAmount != nil {
			obs.CheckoutAmount.Observe(float64(total))
		}
	}()

	if err := Validate(req); err != nil {
		result = "rejected"
		return model.Transaction{}, err
	}

	lines := append([]model.LineItem(nil), req.Lines...)
	summary := pricing.Price(cart.Items(lines), req.DiscountBps, s.TaxBps)
	total = summary.Total
	now := s.now()
	reference := model.NewRecordID(model.TransactionIDPrefix, now, 0)

	charge, err := s.Payments.Charge(ctx, payment.ChargeRequest{Reference: reference, Amount: summary.Total, Method: req.PaymentMethod})
	if err != nil {
		if ctx.Err() != nil {
			result = "cancelled"
		}
		span.RecordError(err)
		return model.Transaction{}, fmt.Errorf("charge payment: %w", err)
	}

	deltas := make([]model.StockDelta, 0, len(lines))
	for _, l := range lines {
		deltas = append(deltas, model.StockDelta{ProductID: l.ProductID, Delta: -l.Quantity})
	}
	if err := s.Catalog.ApplyStock(ctx, deltas); err != nil {
		if errors.Is(err, model.ErrInsufficientStock) {
			result = "rejected"
		}
		s.void(ctx, charge)
		return model.Transaction{}, err
	}

	tx := model.Transaction{
		Date:          now.UTC(),
		Items:         lines,
		Subtotal:      summary.Subtotal,
		Discount:      summary.Discount,
		Tax:           summary.Tax,
		Total:         summary.Total,
		DiscountBps:   summary.DiscountBps,
		TaxBps:        summary.TaxBps,
		PaymentMethod: req.PaymentMethod,
		Status:        model.TransactionCompleted,
		ProcessedBy:   req.Operator,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
	}
	for attempt := 0; attempt < s.maxAttempts(); attempt++ {
		tx.ID = model.NewRecordID(model.TransactionIDPrefix, now, attempt)
		err = s.Ledger.AppendTransaction(context.WithoutCancel(ctx), tx)
		if !errors.Is(err, model.ErrDuplicateID) {
			break
		}
	}
	if err != nil {
		s.compensate(ctx, deltas)
		s.void(ctx, charge)
		span.RecordError(err)
		return model.Transaction{}, model.Wrap(err, "gagal menyimpan transaksi")
	}
	result = "success"
	span.SetAttributes(attribute.String("transaction.id", tx.ID))

	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicTransactionCompleted, tx.ID, tx); err != nil {
			s.Logger.Warn().Err(err).Str("transaction_id", tx.ID).Msg("transaction event fan-out failed")
		}
	}
	return tx, nil
}

// compensate restores stock taken by a checkout that failed to record.
func (s *Service) compensate(ctx context.Context, deltas []model.StockDelta) {
	undo := make([]model.StockDelta, 0, len(deltas))
	for _, d := range deltas {
		undo = append(undo, model.StockDelta{ProductID: d.ProductID, Delta: -d.Delta})
	}
	if err := s.Catalog.ApplyStock(context.WithoutCancel(ctx), undo); err != nil {
		s.Logger.Error().Err(err).Msg("stock compensation failed")
	}
}

func (s *Service) void(ctx context.Context, charge payment.ChargeResult) {
	if err := s.Payments.Refund(context.WithoutCancel(ctx), payment.RefundRequest{Reference: charge.Reference, Amount: charge.Amount}); err != nil {
		s.Logger.Error().Err(err).Str("reference", charge.Reference).Msg("payment void failed")
	}
}
