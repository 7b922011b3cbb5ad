package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

func TestServiceRecord(t *testing.T) {
	log := &MemoryLog{}
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := Service{Store: log, Enabled: true, SamplingRate: 1, Now: func() time.Time { return fixed }}

	req := httptest.NewRequest(http.MethodPost, "https://pos.test/api/v1/products?draft=1", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/products"))

	actor := Actor{Kind: ActorKindOperator, ID: "op-1", Name: "Siti"}
	require.NoError(t, svc.Record(req.Context(), actor, "", "", "", req, http.StatusCreated, nil))

	rows, err := log.List(context.Background(), Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	e := rows[0]
	require.Equal(t, "POST /api/v1/products", e.Action)
	require.Equal(t, "products", e.Resource)
	require.Equal(t, ActorKindOperator, e.ActorKind)
	require.Equal(t, "op-1", e.OperatorID)
	require.Equal(t, "Siti", e.OperatorName)
	require.Equal(t, http.StatusCreated, e.Status)
	require.Equal(t, "req-123", e.RequestID)
	require.Equal(t, fixed, e.OccurredAt)
	require.JSONEq(t, `{"query":"draft=1"}`, string(e.Metadata))
}

func TestServiceDisabled(t *testing.T) {
	log := &MemoryLog{}
	svc := Service{Store: log}
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/1", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, 0, nil))
	rows, _ := log.List(context.Background(), Query{Limit: 10})
	require.Empty(t, rows)
}

func TestUnknownActorIsAnonymous(t *testing.T) {
	log := &MemoryLog{}
	svc := Service{Store: log, Enabled: true}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{Kind: "robot", ID: "x"}, "login", "auth", "", req, 0, nil))
	rows, _ := log.List(context.Background(), Query{Limit: 1})
	require.Equal(t, ActorKindAnonymous, rows[0].ActorKind)
	require.Empty(t, rows[0].OperatorID)
	require.Equal(t, http.StatusOK, rows[0].Status)
}

func TestMemoryLogBounded(t *testing.T) {
	log := &MemoryLog{MaxLen: 3}
	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(context.Background(), Entry{ID: string(rune('a' + i))}))
	}
	rows, err := log.List(context.Background(), Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "e", rows[0].ID)
	require.Equal(t, "c", rows[2].ID)

	rows, _ = log.List(context.Background(), Query{Limit: 1, Offset: 1})
	require.Equal(t, "d", rows[0].ID)
}

func TestRedisLog(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	log := RedisLog{R: client, Key: "pos:audit", MaxLen: 2}

	ctx := context.Background()
	for _, id := range []string{"one", "two", "three"} {
		require.NoError(t, log.Append(ctx, Entry{ID: id, Action: "POST /x"}))
	}
	rows, err := log.List(ctx, Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "three", rows[0].ID)
	require.Equal(t, "two", rows[1].ID)
}

func TestMiddlewareRecordsOperator(t *testing.T) {
	log := &MemoryLog{}
	rec := HTTPRecorder{Service: &Service{Store: log, Enabled: true}}

	r := chi.NewRouter()
	r.With(rec.Middleware(HTTPConfig{Action: "product.delete", ResourceType: "product", ResourceIDParam: "id"})).
		Delete("/api/v1/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/42", nil)
	req = req.WithContext(common.WithOperator(req.Context(), common.Operator{ID: "op-9", Name: "Budi"}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	rows, _ := log.List(context.Background(), Query{Limit: 10})
	require.Len(t, rows, 1)
	require.Equal(t, "product.delete", rows[0].Action)
	require.Equal(t, "42", rows[0].ResourceID)
	require.Equal(t, "Budi", rows[0].OperatorName)
	require.Equal(t, http.StatusNoContent, rows[0].Status)
}

func TestHandlerList(t *testing.T) {
	log := &MemoryLog{}
	require.NoError(t, log.Append(context.Background(), Entry{ID: "a", Action: "checkout"}))

	w := httptest.NewRecorder()
	Handler{Store: log}.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit?limit=500", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)

	w = httptest.NewRecorder()
	Handler{}.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMiddlewareFilter(t *testing.T) {
	log := &MemoryLog{}
	rec := HTTPRecorder{Service: &Service{Store: log, Enabled: true}}
	mw := rec.Middleware(HTTPConfig{Action: "refund.process", Filter: func(r *http.Request) bool {
		return r.URL.Path == "/api/v1/terminal/refund/process"
	}})
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/terminal/cart/lines", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/terminal/refund/process", nil))

	rows, _ := log.List(context.Background(), Query{Limit: 10})
	require.Len(t, rows, 1)
	require.Equal(t, "refund.process", rows[0].Action)
}

func TestListFilters(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	for name, store := range map[string]Store{"memory": &MemoryLog{}, "redis": RedisLog{R: client, Key: "pos:audit"}} {
		t.Run(name, func(t *testing.T) {
			for _, e := range []Entry{
				{ID: "1", Action: "checkout", OperatorID: "op-1"},
				{ID: "2", Action: "refund.process", OperatorID: "op-1"},
				{ID: "3", Action: "checkout", OperatorID: "op-2"},
				{ID: "4", Action: "checkout", OperatorID: "op-1"},
			} {
				require.NoError(t, store.Append(ctx, e))
			}
			rows, err := store.List(ctx, Query{Limit: 10, Action: "checkout", OperatorID: "op-1"})
			require.NoError(t, err)
			require.Len(t, rows, 2)
			require.Equal(t, "4", rows[0].ID)
			require.Equal(t, "1", rows[1].ID)

			rows, err = store.List(ctx, Query{Limit: 1, Offset: 1, Action: "checkout"})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			require.Equal(t, "3", rows[0].ID)
		})
	}
}
