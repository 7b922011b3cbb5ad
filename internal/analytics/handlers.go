package analytics

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// Handler serves the back-office dashboard.
type Handler struct {
	Svc *Service
}

func (h *Handler) configured(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return false
	}
	return true
}

// Dashboard handles GET /api/v1/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	d, err := h.Svc.Dashboard(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", "failed to build dashboard", nil)
		return
	}
	common.Data(w, http.StatusOK, d)
}

// Sales handles GET /api/v1/dashboard/sales. The window is ?from=&to= (RFC3339
// or YYYY-MM-DD in the store's zone) or the trailing ?days=.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	from, to, err := h.window(r.URL.Query())
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), from, to)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", "failed to load sales", nil)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

// TopProducts handles GET /api/v1/dashboard/top-products?limit=&offset=.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	q := r.URL.Query()
	limit := min(max(common.AtoiDefault(q.Get("limit"), 10), 1), 100)
	offset := max(common.AtoiDefault(q.Get("offset"), 0), 0)
	rows, err := h.Svc.TopProducts(r.Context(), limit, offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_ERROR", "failed to load top products", nil)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

func (h *Handler) window(q url.Values) (time.Time, time.Time, error) {
	rawFrom, rawTo := q.Get("from"), q.Get("to")
	if rawFrom == "" || rawTo == "" {
		days := h.Svc.DefaultRange
		if days <= 0 {
			days = 30
		}
		if n := common.AtoiDefault(q.Get("days"), days); n > 0 {
			days = n
		}
		to := h.Svc.now()
		return to.AddDate(0, 0, -days), to, nil
	}
	from, err := h.parseDate(rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date")
	}
	to, err := h.parseDate(rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date")
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be before to")
	}
	return from, to, nil
}

func (h *Handler) parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, h.Svc.loc())
}
