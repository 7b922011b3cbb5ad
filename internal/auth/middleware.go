package auth

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Middleware guards the terminal and back-office routes.
type Middleware struct {
	Service *Service
}

// RequireAuth admits requests carrying a valid bearer access token and puts
// the operator on the request context. Everything else gets 401.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || m.Service == nil {
			unauthorized(w, nil)
			return
		}
		op, err := m.Service.ParseAccessToken(token)
		if err != nil {
			unauthorized(w, err)
			return
		}
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("kasir.operator_id", op.ID))
		next.ServeHTTP(w, r.WithContext(common.WithOperator(r.Context(), op)))
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="kasir"`)
	if appErr, ok := common.AsAppError(err); ok && appErr.HTTPStatus != 0 {
		common.WriteError(w, appErr)
		return
	}
	common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
