package model

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Domain error kinds. Every failure returned by the ledger services unwraps to
// one of these so callers can branch with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoPaymentMethod   = errors.New("payment method not selected")
	ErrAlreadyRefunded   = errors.New("transaction already refunded")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrInvalidState      = errors.New("invalid state")
	ErrValidation        = errors.New("validation failed")
)

type kindInfo struct {
	code   string
	status int
}

var kinds = map[error]kindInfo{
	ErrNotFound:          {"NOT_FOUND", http.StatusNotFound},
	ErrInsufficientStock: {"INSUFFICIENT_STOCK", http.StatusConflict},
	ErrEmptyCart:         {"EMPTY_CART", http.StatusUnprocessableEntity},
	ErrNoPaymentMethod:   {"NO_PAYMENT_METHOD", http.StatusUnprocessableEntity},
	ErrAlreadyRefunded:   {"ALREADY_REFUNDED", http.StatusConflict},
	ErrDuplicateID:       {"DUPLICATE_ID", http.StatusConflict},
	ErrInvalidState:      {"INVALID_STATE", http.StatusConflict},
	ErrValidation:        {"VALIDATION_ERROR", http.StatusBadRequest},
}

// NewError builds an AppError for the given kind. The returned error unwraps
// to kind.
func NewError(kind error, message string) *common.AppError {
	info, ok := kinds[kind]
	if !ok {
		info = kindInfo{"INTERNAL", http.StatusInternalServerError}
	}
	if message == "" {
		message = kind.Error()
	}
	return common.NewAppError(info.code, message, info.status, kind)
}

// Errorf is NewError with a formatted message.
func Errorf(kind error, format string, args ...any) *common.AppError {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// WithDetails attaches details to an AppError and returns it.
func WithDetails(err *common.AppError, details any) *common.AppError {
	if err == nil {
		return nil
	}
	return err.WithDetails(details)
}

// StockError reports a stock shortfall for a single product.
type StockError struct {
	ProductID int64
	Requested int
	Available int
}

// Error implements the error interface.
func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock: product=%d requested=%d available=%d", e.ProductID, e.Requested, e.Available)
}

// Is matches ErrInsufficientStock.
func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// NewStockError wraps a StockError into an AppError carrying its numbers as details.
func NewStockError(productID int64, requested, available int) *common.AppError {
	se := &StockError{ProductID: productID, Requested: requested, Available: available}
	return &common.AppError{
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("stok tidak mencukupi untuk produk %d (tersedia %d)", productID, available),
		HTTPStatus: http.StatusConflict,
		Err:        se,
		Details: map[string]any{
			"productId": productID,
			"requested": requested,
			"available": available,
		},
	}
}

// Wrap converts store-level sentinels into AppErrors and passes through
// anything already classified.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := common.AsAppError(err); ok {
		return err
	}
	var se *StockError
	if errors.As(err, &se) {
		return NewStockError(se.ProductID, se.Requested, se.Available)
	}
	for kind := range kinds {
		if errors.Is(err, kind) {
			app := NewError(kind, message)
			app.Err = fmt.Errorf("%w: %v", kind, err)
			return app
		}
	}
	return err
}
