package analytics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/analytics"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/store"
)

type countingLedger struct {
	*store.Memory
	mu    sync.Mutex
	lists int
}

func (c *countingLedger) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	return c.Memory.ListTransactions(ctx)
}

var now = time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)

func seed(t *testing.T) *countingLedger {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := store.Seed(ctx, mem, model.SeedProducts())
	require.NoError(t, err)
	sale := func(id string, at time.Time, items ...model.LineItem) {
		var total int64
		for _, it := range items {
			total += it.Total()
		}
		require.NoError(t, mem.AppendTransaction(ctx, model.Transaction{ID: id, Date: at, Items: items, Subtotal: total, Total: total}))
	}
	coffee := model.LineItem{ProductID: 1, Name: "Coffee Latte", UnitPrice: 25000, Category: "Minuman"}
	burger := model.LineItem{ProductID: 2, Name: "Burger Deluxe", UnitPrice: 45000, Category: "Makanan"}
	c3, b1, b2 := coffee, burger, burger
	c3.Quantity, b1.Quantity, b2.Quantity = 3, 1, 2
	sale("TXN00000001", now.Add(-24*time.Hour), c3)
	sale("TXN00000002", now.Add(-time.Hour), b1)
	sale("TXN00000003", now, b2)

	c2 := coffee
	c2.Quantity = 2
	require.NoError(t, mem.AppendRefund(ctx, model.Refund{
		ID: "REF00000001", OriginalTransactionID: "TXN00000001", Date: now,
		Items: []model.RefundItem{{LineItem: c2, Reason: model.ReasonDamaged, Amount: 50000}}, Total: 50000,
	}))
	return &countingLedger{Memory: mem}
}

func newService(t *testing.T, ledger *countingLedger) *analytics.Service {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &analytics.Service{
		Products: ledger, Transactions: ledger, Refunds: ledger,
		R: rdb, Prefix: "test:", TTL: time.Minute, Location: time.UTC,
		Now: func() time.Time { return now },
	}
}

func TestDashboard(t *testing.T) {
	ledger := seed(t)
	svc := newService(t, ledger)
	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8, d.ProductCount)
	require.Equal(t, 3, d.TransactionCount)
	require.Equal(t, int64(75000+45000+90000), d.TotalRevenue)
	require.Equal(t, 2, d.TodayTransactions)
	require.Equal(t, int64(135000), d.TodayRevenue)
	require.Equal(t, int64(50000), d.RefundTotal)
	require.Equal(t, int64(160000), d.NetRevenue)
	require.Equal(t, "TXN00000003", d.RecentTransactions[0].ID)

	require.Len(t, d.TopProducts, 2)
	require.Equal(t, int64(2), d.TopProducts[0].ProductID)
	require.Equal(t, 3, d.TopProducts[0].Quantity)
	require.Equal(t, 1, d.TopProducts[1].Quantity)
}

func TestDashboardCachedUntilInvalidated(t *testing.T) {
	ledger := seed(t)
	svc := newService(t, ledger)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, ledger.lists)

	require.NoError(t, svc.Notify(ctx, events.Event{Topic: events.TopicTransactionCompleted}))
	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, ledger.lists)
}

func TestSalesRange(t *testing.T) {
	svc := newService(t, seed(t))
	rows, err := svc.SalesRange(context.Background(), now.AddDate(0, 0, -7), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "2024-05-01", rows[0].Day)
	require.Equal(t, int64(75000), rows[0].Revenue)
	require.Equal(t, 2, rows[1].Transactions)
	require.Equal(t, int64(50000), rows[1].Refunds)
}

func TestDashboardHandler(t *testing.T) {
	h := &analytics.Handler{Svc: newService(t, seed(t))}
	rec := httptest.NewRecorder()
	h.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"transactionCount":3`)

	rec = httptest.NewRecorder()
	h.Sales(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/sales?from=2024-05-03T00:00:00Z&to=2024-05-01T00:00:00Z", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	(&analytics.Handler{}).Dashboard(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSalesHandlerAcceptsCalendarDates(t *testing.T) {
	h := &analytics.Handler{Svc: newService(t, seed(t))}
	rec := httptest.NewRecorder()
	h.Sales(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/sales?from=2024-05-01&to=2024-05-03", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"data":[`)

	rec = httptest.NewRecorder()
	h.Sales(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/sales?from=yesterday&to=2024-05-03", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid from date")
}
