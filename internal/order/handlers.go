package order

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/receipt"
	"github.com/noah-isme/backend-kasir/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ReceiptQueue schedules receipt e-mails.
type ReceiptQueue interface {
	EnqueueReceipt(ctx context.Context, transactionID, email string) error
}

// Handler serves transaction and refund history plus receipts.
type Handler struct {
	Transactions store.TransactionStore
	Refunds      store.RefundStore
	Renderer     receipt.Renderer
	Receipts     ReceiptQueue
}

// TransactionDetail is a sale together with its refund, if any.
type TransactionDetail struct {
	model.Transaction
	Refund *model.Refund `json:"refund,omitempty"`
}

func (h *Handler) configured(w http.ResponseWriter) bool {
	if h.Transactions == nil || h.Refunds == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "history store not configured", nil)
		return false
	}
	return true
}

// List handles GET /api/v1/transactions?q=&page=&limit=, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	all, err := h.Transactions.ListTransactions(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list transactions", nil)
		return
	}
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	rows := make([]model.Transaction, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if term != "" && !all[i].Matches(term) {
			continue
		}
		rows = append(rows, all[i])
	}
	pageRows, pagination := common.Paginate(r, rows, 20)
	w.Header().Set("X-Total-Count", strconv.Itoa(pagination.TotalItems))
	common.JSON(w, http.StatusOK, map[string]any{"data": pageRows, "pagination": pagination})
}

// Get handles GET /api/v1/transactions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	tx, err := h.Transactions.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, model.Wrap(err, "transaksi tidak ditemukan"))
		return
	}
	detail := TransactionDetail{Transaction: tx}
	rf, ok, err := h.Refunds.RefundForTransaction(r.Context(), tx.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load refund", nil)
		return
	}
	if ok {
		detail.Refund = &rf
	}
	common.Data(w, http.StatusOK, detail)
}

// Receipt handles GET /api/v1/transactions/{id}/receipt as text/plain.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	tx, err := h.Transactions.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, model.Wrap(err, "transaksi tidak ditemukan"))
		return
	}
	writeText(w, "struk-"+tx.ID+".txt", h.Renderer.Transaction(tx))
}

type emailReceiptRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

// EmailReceipt handles POST /api/v1/transactions/{id}/receipt/email.
func (h *Handler) EmailReceipt(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	if h.Receipts == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "receipt e-mail is not configured", nil)
		return
	}
	var req emailReceiptRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := model.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	email := strings.TrimSpace(req.Email)
	if !emailPattern.MatchString(email) {
		common.WriteError(w, model.NewError(model.ErrValidation, "email tidak valid"))
		return
	}
	tx, err := h.Transactions.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, model.Wrap(err, "transaksi tidak ditemukan"))
		return
	}
	if err := h.Receipts.EnqueueReceipt(r.Context(), tx.ID, email); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to queue receipt", nil)
		return
	}
	common.Data(w, http.StatusAccepted, map[string]string{"status": "queued", "email": email})
}

// ListRefunds handles GET /api/v1/refunds?page=&limit=, newest first.
func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	all, err := h.Refunds.ListRefunds(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list refunds", nil)
		return
	}
	rows := make([]model.Refund, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		rows = append(rows, all[i])
	}
	pageRows, pagination := common.Paginate(r, rows, 20)
	w.Header().Set("X-Total-Count", strconv.Itoa(pagination.TotalItems))
	common.JSON(w, http.StatusOK, map[string]any{"data": pageRows, "pagination": pagination})
}

// RefundReceipt handles GET /api/v1/refunds/{id}/receipt as text/plain.
func (h *Handler) RefundReceipt(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	rf, err := h.Refunds.GetRefund(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, model.Wrap(err, "refund tidak ditemukan"))
		return
	}
	writeText(w, "refund-"+rf.ID+".txt", h.Renderer.Refund(rf))
}

func writeText(w http.ResponseWriter, filename, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
