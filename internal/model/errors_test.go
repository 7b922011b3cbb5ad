package model_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
)

func TestNewErrorUnwrapsToKind(t *testing.T) {
	err := model.NewError(model.ErrAlreadyRefunded, "")
	require.ErrorIs(t, err, model.ErrAlreadyRefunded)
	require.Equal(t, "ALREADY_REFUNDED", err.Code)
	require.Equal(t, http.StatusConflict, err.HTTPStatus)
}

func TestStockErrorMatchesInsufficientStock(t *testing.T) {
	err := model.NewStockError(3, 5, 2)
	require.ErrorIs(t, err, model.ErrInsufficientStock)

	var se *model.StockError
	require.True(t, errors.As(err, &se))
	require.Equal(t, 2, se.Available)
}

func TestWrapClassifiesStoreErrors(t *testing.T) {
	wrapped := model.Wrap(fmt.Errorf("get product 9: %w", model.ErrNotFound), "produk tidak ditemukan")
	var app *common.AppError
	require.True(t, errors.As(wrapped, &app))
	require.Equal(t, "NOT_FOUND", app.Code)
	require.ErrorIs(t, wrapped, model.ErrNotFound)

	plain := errors.New("boom")
	require.Same(t, plain, model.Wrap(plain, "x"))
}

func TestRecordIDFormat(t *testing.T) {
	now := time.UnixMilli(1_700_000_123_456)
	require.Equal(t, "TXN00123456", model.NewRecordID(model.TransactionIDPrefix, now, 0))
	require.Equal(t, "REF00123457", model.NewRecordID(model.RefundIDPrefix, now, 1))
}

func TestTransactionMatches(t *testing.T) {
	tx := model.Transaction{
		ID:           "TXN12345678",
		Items:        []model.LineItem{{ProductID: 1, Name: "Coffee Latte"}},
		CustomerName: "Budi",
	}
	require.True(t, tx.Matches("txn123"))
	require.True(t, tx.Matches("LATTE"))
	require.True(t, tx.Matches("budi"))
	require.False(t, tx.Matches("pizza"))
	require.False(t, tx.Matches("   "))
}

func TestParsePaymentMethod(t *testing.T) {
	require.Equal(t, model.PaymentQRIS, model.ParsePaymentMethod(" QRIS "))
	require.Equal(t, model.PaymentMethod(""), model.ParsePaymentMethod("bitcoin"))
	require.Equal(t, "Tunai", model.PaymentCash.Label())
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	type input struct {
		Name   string `json:"name" validate:"required"`
		Method string `json:"paymentMethod" validate:"paymentmethod"`
	}
	err := model.ValidateStruct(input{Method: "bitcoin"})
	require.ErrorIs(t, err, model.ErrValidation)

	var app *common.AppError
	require.True(t, errors.As(err, &app))
	details, ok := app.Details.([]model.FieldError)
	require.True(t, ok)
	require.Len(t, details, 2)
	require.Equal(t, "name", details[0].Field)
	require.Equal(t, "paymentMethod", details[1].Field)

	require.NoError(t, model.ValidateStruct(input{Name: "x", Method: "cash"}))
}
