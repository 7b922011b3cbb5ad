package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/order"
	"github.com/noah-isme/backend-kasir/internal/receipt"
	"github.com/noah-isme/backend-kasir/internal/store"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs [][2]string
}

func (q *recordingQueue) EnqueueReceipt(_ context.Context, txID, email string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, [2]string{txID, email})
	return nil
}

func seedHistory(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"Coffee Latte", "Burger Deluxe", "Green Tea"} {
		require.NoError(t, mem.AppendTransaction(ctx, model.Transaction{
			ID:            model.NewRecordID(model.TransactionIDPrefix, base, i),
			Date:          base.Add(time.Duration(i) * time.Minute),
			Items:         []model.LineItem{{ProductID: int64(i + 1), Name: name, UnitPrice: 10000, Quantity: 1}},
			Subtotal:      10000,
			Total:         10000,
			PaymentMethod: model.PaymentCash,
			Status:        model.TransactionCompleted,
		}))
	}
	require.NoError(t, mem.AppendRefund(ctx, model.Refund{
		ID:                    model.NewRecordID(model.RefundIDPrefix, base, 0),
		OriginalTransactionID: model.NewRecordID(model.TransactionIDPrefix, base, 0),
		Date:                  base.Add(time.Hour),
		Items: []model.RefundItem{{
			LineItem: model.LineItem{ProductID: 1, Name: "Coffee Latte", UnitPrice: 10000, Quantity: 1},
			Reason:   model.ReasonDamaged,
			Amount:   10000,
		}},
		Total:        10000,
		Status:       model.RefundCompleted,
		CustomerName: model.WalkInCustomer,
	}))
	return mem
}

func newRouter(t *testing.T) (http.Handler, *recordingQueue, *store.Memory) {
	mem := seedHistory(t)
	q := &recordingQueue{}
	h := &order.Handler{
		Transactions: mem,
		Refunds:      mem,
		Renderer:     receipt.Renderer{Currency: receipt.NewCurrency("IDR", 0, language.Indonesian), Location: time.UTC},
		Receipts:     q,
	}
	r := chi.NewRouter()
	r.Get("/transactions", h.List)
	r.Get("/transactions/{id}", h.Get)
	r.Get("/transactions/{id}/receipt", h.Receipt)
	r.Post("/transactions/{id}/receipt/email", h.EmailReceipt)
	r.Get("/refunds", h.ListRefunds)
	r.Get("/refunds/{id}/receipt", h.RefundReceipt)
	return r, q, mem
}

func TestHistoryList(t *testing.T) {
	r, _, _ := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	var resp struct {
		Data []model.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.Equal(t, "Green Tea", resp.Data[0].Items[0].Name)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions?q=burger", nil))
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}

func TestHistoryDetailIncludesRefund(t *testing.T) {
	r, _, _ := newRouter(t)
	id := model.NewRecordID(model.TransactionIDPrefix, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), 0)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data order.TransactionDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Refund)
	require.Equal(t, int64(10000), resp.Data.Refund.Total)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/TXN404", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReceipts(t *testing.T) {
	r, q, mem := newRouter(t)
	id := model.NewRecordID(model.TransactionIDPrefix, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), 0)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/"+id+"/receipt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	require.Contains(t, rec.Body.String(), "ID Transaksi: "+id)

	refunds, err := mem.ListRefunds(context.Background())
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/refunds/"+refunds[0].ID+"/receipt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Barang Rusak")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/"+id+"/receipt/email", strings.NewReader(`{"email":"nope"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/"+id+"/receipt/email", strings.NewReader(`{"email":"budi@example.com"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, [][2]string{{id, "budi@example.com"}}, q.jobs)
}

func TestRefundHistoryList(t *testing.T) {
	r, _, _ := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/refunds", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	var resp struct {
		Data []model.Refund `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, model.NewRecordID(model.TransactionIDPrefix, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), 0), resp.Data[0].OriginalTransactionID)
}
