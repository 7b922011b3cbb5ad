package refund

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/payment"
	"github.com/noah-isme/backend-kasir/internal/store"
)

// StockApplier applies all-or-nothing stock deltas.
type StockApplier interface {
	ApplyStock(ctx context.Context, deltas []model.StockDelta) error
}

// Service searches the sales ledger and commits refunds against it.
type Service struct {
	Catalog       StockApplier
	Transactions  store.TransactionStore
	Refunds       store.RefundStore
	Payments      payment.Provider
	Events        events.Emitter
	Logger        zerolog.Logger
	Now           func() time.Time
	MaxIDAttempts int
}

// Selection is one line chosen for refund. A zero Quantity refunds the whole
// line; an empty Reason defaults to customer-request.
type Selection struct {
	ProductID int64              `json:"productId"`
	Quantity  int                `json:"quantity"`
	Reason    model.RefundReason `json:"reason"`
}

// CommitRequest describes a refund to record.
type CommitRequest struct {
	TransactionID string
	Items         []Selection
	Operator      string
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

func (s *Service) ready() error {
	if s == nil || s.Transactions == nil || s.Refunds == nil {
		return errors.New("refund service not configured")
	}
	return nil
}

// Search returns transactions whose id, item names or customer name contain
// term, newest first. No match is a NOT_FOUND error.
func (s *Service) Search(ctx context.Context, term string) ([]model.Transaction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(term) == "" {
		return nil, model.NewError(model.ErrValidation, "masukkan ID transaksi atau nama produk")
	}
	all, err := s.Transactions.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var out []model.Transaction
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Matches(term) {
			out = append(out, all[i])
		}
	}
	if len(out) == 0 {
		return nil, model.NewError(model.ErrNotFound, "transaksi tidak ditemukan")
	}
	return out, nil
}

// Eligible loads a transaction and fails with ALREADY_REFUNDED when a refund
// already references it.
func (s *Service) Eligible(ctx context.Context, txID string) (model.Transaction, error) {
	if err := s.ready(); err != nil {
		return model.Transaction{}, err
	}
	tx, err := s.Transactions.GetTransaction(ctx, txID)
	if err != nil {
		return model.Transaction{}, model.Wrap(err, "transaksi tidak ditemukan")
	}
	if _, ok, err := s.Refunds.RefundForTransaction(ctx, txID); err != nil {
		return model.Transaction{}, fmt.Errorf("lookup refund: %w", err)
	} else if ok {
		return model.Transaction{}, model.NewError(model.ErrAlreadyRefunded, "transaksi ini sudah pernah di-refund")
	}
	return tx, nil
}

// BuildItems resolves selections against the original transaction. Each
// product may appear once and quantities cannot exceed the original line.
func BuildItems(tx model.Transaction, selections []Selection) ([]model.RefundItem, int64, error) {
	if len(selections) == 0 {
		return nil, 0, model.NewError(model.ErrValidation, "pilih minimal satu item untuk di-refund")
	}
	seen := make(map[int64]struct{}, len(selections))
	items := make([]model.RefundItem, 0, len(selections))
	var total int64
	for _, sel := range selections {
		if _, dup := seen[sel.ProductID]; dup {
			return nil, 0, model.Errorf(model.ErrValidation, "produk %d dipilih lebih dari sekali", sel.ProductID)
		}
		seen[sel.ProductID] = struct{}{}
		line, ok := tx.Item(sel.ProductID)
		if !ok {
			return nil, 0, model.Errorf(model.ErrValidation, "produk %d tidak ada di transaksi %s", sel.ProductID, tx.ID)
		}
		qty := sel.Quantity
		if qty == 0 {
			qty = line.Quantity
		}
		if qty < 0 || qty > line.Quantity {
			return nil, 0, model.Errorf(model.ErrValidation, "jumlah refund untuk produk %d harus antara 1 dan %d", sel.ProductID, line.Quantity)
		}
		reason := sel.Reason
		if reason == "" {
			reason = model.ReasonCustomerRequest
		}
		if !reason.Valid() {
			return nil, 0, model.Errorf(model.ErrValidation, "alasan refund %q tidak dikenal", reason)
		}
		line.Quantity = qty
		item := model.RefundItem{LineItem: line, Reason: reason, Amount: line.Total()}
		total += item.Amount
		items = append(items, item)
	}
	return items, total, nil
}

// Commit records a refund and returns the refunded quantities to stock.
// At most one refund is ever recorded per transaction.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (model.Refund, error) {
	if err := s.ready(); err != nil {
		return model.Refund{}, err
	}
	ctx, span := otel.Tracer("refund.Service").Start(ctx, "RefundService.Commit")
	defer span.End()

	start := time.Now()
	result := "error"
	var total int64
	defer func() {
		span.SetAttributes(
			attribute.String("refund.transaction_id", req.TransactionID),
			attribute.String("refund.result", result),
			attribute.Int64("refund.total", total),
			attribute.Float64("refund.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		if obs.RefundTotal != nil {
			obs.RefundTotal.WithLabelValues(result).Inc()
		}
	}()

	tx, err := s.Eligible(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, model.ErrAlreadyRefunded) {
			result = "already_refunded"
		}
		return model.Refund{}, err
	}
	items, sum, err := BuildItems(tx, req.Items)
	if err != nil {
		result = "rejected"
		return model.Refund{}, err
	}
	total = sum

	if s.Payments != nil {
		if err := s.Payments.Refund(ctx, payment.RefundRequest{Reference: tx.ID, Amount: sum}); err != nil {
			if ctx.Err() != nil {
				result = "cancelled"
			}
			span.RecordError(err)
			return model.Refund{}, fmt.Errorf("refund payment: %w", err)
		}
	}

	customer := tx.CustomerName
	if strings.TrimSpace(customer) == "" {
		customer = model.WalkInCustomer
	}
	now := s.now()
	rf := model.Refund{
		OriginalTransactionID: tx.ID,
		Date:                  now.UTC(),
		Items:                 items,
		Total:                 sum,
		Status:                model.RefundCompleted,
		ProcessedBy:           req.Operator,
		CustomerName:          customer,
	}
	commitCtx := context.WithoutCancel(ctx)
	for attempt := 0; attempt < s.maxAttempts(); attempt++ {
		rf.ID = model.NewRecordID(model.RefundIDPrefix, now, attempt)
		err = s.Refunds.AppendRefund(commitCtx, rf)
		if !errors.Is(err, model.ErrDuplicateID) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, model.ErrAlreadyRefunded) {
			result = "already_refunded"
			return model.Refund{}, model.Wrap(err, "transaksi ini sudah pernah di-refund")
		}
		span.RecordError(err)
		return model.Refund{}, model.Wrap(err, "gagal menyimpan refund")
	}
	result = "success"
	span.SetAttributes(attribute.String("refund.id", rf.ID))

	s.restock(commitCtx, rf.Items)
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicRefundCompleted, rf.ID, rf); err != nil {
			s.Logger.Warn().Err(err).Str("refund_id", rf.ID).Msg("refund event fan-out failed")
		}
	}
	return rf, nil
}

// restock returns refunded quantities to the catalog. Products deleted since
// the sale are skipped.
func (s *Service) restock(ctx context.Context, items []model.RefundItem) {
	if s.Catalog == nil {
		return
	}
	deltas := make([]model.StockDelta, 0, len(items))
	for _, it := range items {
		deltas = append(deltas, model.StockDelta{ProductID: it.ProductID, Delta: it.Quantity})
	}
	err := s.Catalog.ApplyStock(ctx, deltas)
	if err == nil {
		return
	}
	if !errors.Is(err, model.ErrNotFound) {
		s.Logger.Error().Err(err).Msg("refund restock failed")
		return
	}
	for _, d := range deltas {
		if err := s.Catalog.ApplyStock(ctx, []model.StockDelta{d}); err != nil {
			s.Logger.Warn().Err(err).Int64("product_id", d.ProductID).Msg("refund restock skipped")
		}
	}
}

// Recent returns the latest n refunds, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]model.Refund, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	all, err := s.Refunds.ListRefunds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	out := make([]model.Refund, len(all))
	copy(out, all)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
