package audit

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Handler serves the back-office audit trail.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/audit. Query: limit (1-200, default 50), offset,
// action and operatorId.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	v := r.URL.Query()
	q := Query{
		Limit:      common.AtoiDefault(v.Get("limit"), 50),
		Offset:     max(common.AtoiDefault(v.Get("offset"), 0), 0),
		Action:     strings.TrimSpace(v.Get("action")),
		OperatorID: strings.TrimSpace(v.Get("operatorId")),
	}
	if q.Limit < 1 || q.Limit > 200 {
		q.Limit = 50
	}

	entries, err := h.Store.List(r.Context(), q)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	common.Data(w, http.StatusOK, entries)
}
