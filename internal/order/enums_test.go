package order_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/order"
)

func TestEnumHandlers(t *testing.T) {
	var resp struct {
		Data []order.Option `json:"data"`
	}

	rec := httptest.NewRecorder()
	order.PaymentMethods(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payment-methods", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 6)
	require.Equal(t, order.Option{Value: "cash", Label: "Tunai"}, resp.Data[0])

	rec = httptest.NewRecorder()
	order.RefundReasons(rec, httptest.NewRequest(http.MethodGet, "/api/v1/refund-reasons", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 6)
	require.Equal(t, "damaged", resp.Data[1].Value)
}
