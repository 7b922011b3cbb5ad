package order

import (
	"net/http"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/model"
)

// Option is a selectable enum value with its display label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// PaymentMethods handles GET /api/v1/payment-methods.
func PaymentMethods(w http.ResponseWriter, _ *http.Request) {
	methods := model.PaymentMethods()
	out := make([]Option, 0, len(methods))
	for _, m := range methods {
		out = append(out, Option{Value: string(m), Label: m.Label()})
	}
	common.Data(w, http.StatusOK, out)
}

// RefundReasons handles GET /api/v1/refund-reasons.
func RefundReasons(w http.ResponseWriter, _ *http.Request) {
	reasons := model.RefundReasons()
	out := make([]Option, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, Option{Value: string(r), Label: r.Label()})
	}
	common.Data(w, http.StatusOK, out)
}
