package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

// HTTPRecorder turns handled requests into audit entries.
type HTTPRecorder struct {
	Service   *Service
	OnError   func(error)
	ActorFunc func(*http.Request) Actor
}

// HTTPConfig describes the entry written for one route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(*http.Request, int) map[string]any
	// Filter limits recording to matching requests when set.
	Filter func(*http.Request) bool
}

// Middleware records after the handler returns so the entry carries the final
// status. Audit failures never change the response.
func (h HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if h.Service == nil || !h.Service.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := obs.NewStatusRecorder(w)
			next.ServeHTTP(rec, r)
			if cfg.Filter != nil && !cfg.Filter(r) {
				return
			}
			h.record(r, cfg, rec.Status())
		})
	}
}

func (h HTTPRecorder) record(r *http.Request, cfg HTTPConfig, status int) {
	var resourceID string
	if cfg.ResourceIDParam != "" {
		resourceID = chi.URLParam(r, cfg.ResourceIDParam)
	}
	var metadata []byte
	if cfg.MetadataFunc != nil {
		if extra := cfg.MetadataFunc(r, status); extra != nil {
			metadata, _ = json.Marshal(extra)
		}
	}
	err := h.Service.Record(r.Context(), h.actor(r), cfg.Action, cfg.ResourceType, resourceID, r, status, metadata)
	if err != nil && h.OnError != nil {
		h.OnError(err)
	}
}

func (h HTTPRecorder) actor(r *http.Request) Actor {
	if h.ActorFunc != nil {
		return h.ActorFunc(r)
	}
	op, ok := common.OperatorFrom(r.Context())
	if !ok {
		return Actor{Kind: ActorKindAnonymous}
	}
	return Actor{Kind: ActorKindOperator, ID: op.ID, Name: op.Name}
}
