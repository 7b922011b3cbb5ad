package security

import (
	"net/http"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// BodyLimit caps request payloads. Checkout carts and product edits are small;
// anything larger is rejected before a handler decodes it.
type BodyLimit struct {
	Max int64
}

// Middleware answers 413 when the declared length exceeds Max and otherwise
// wraps the body in http.MaxBytesReader. A handler that reads past the cap
// sees *http.MaxBytesError, which common.DecodeJSON maps to 413 as well.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > b.Max {
			payloadTooLarge(w)
			return
		}
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}

func payloadTooLarge(w http.ResponseWriter) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
}
