package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/containerflow/internal/history"
	"github.com/angelmondragon/containerflow/internal/reconcile"
	"github.com/angelmondragon/containerflow/internal/requests"
	"github.com/angelmondragon/containerflow/pkg/config"
	"github.com/angelmondragon/containerflow/pkg/db/dbtest"
	"github.com/angelmondragon/containerflow/pkg/logger"
	"github.com/angelmondragon/containerflow/pkg/metrics"
	"github.com/angelmondragon/containerflow/pkg/shift"
)

var testNow = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

type staticERP struct {
	locations map[string]string
}

func (s staticERP) ProductionLocations(context.Context) ([]string, error) {
	return []string{"LINE-1"}, nil
}

func (s staticERP) CurrentLocation(_ context.Context, serialNo string) (string, bool, error) {
	loc, ok := s.locations[serialNo]
	return loc, ok, nil
}

func newTestRouter(t *testing.T) (http.Handler, requests.Service) {
	t.Helper()
	now := func() time.Time { return testNow }
	logg := logger.Nop()
	client := dbtest.Client(t)
	reqRepo := requests.NewRepository(client.DB())
	histRepo := history.NewRepository(client.DB())

	reg := prometheus.NewRegistry()
	reconcileMetrics := metrics.NewReconcileMetrics(reg)

	svc, err := requests.NewService(requests.ServiceParams{Repo: reqRepo, Now: now})
	require.NoError(t, err)
	tr, err := history.NewTransitioner(history.TransitionerParams{
		DB: client, History: histRepo, Requests: reqRepo, Logger: logg, Metrics: reconcileMetrics, Now: now,
	})
	require.NoError(t, err)
	classifier, err := shift.New("Europe/Prague")
	require.NoError(t, err)
	analytics, err := history.NewAnalytics(history.AnalyticsParams{
		Repo: histRepo, Classifier: classifier, TestWorkcenter: "TEST", Now: now,
	})
	require.NoError(t, err)
	purger, err := history.NewPurger(history.PurgerParams{DB: client, History: histRepo, Now: now})
	require.NoError(t, err)

	erp := staticERP{locations: map[string]string{"S-1": "LINE-1", "S-2": "RACK-7"}}
	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		ERP: erp, Requests: reqRepo, Resolver: tr, Metrics: reconcileMetrics, Logger: logg, Now: now,
	})
	require.NoError(t, err)

	router := NewRouter(Params{
		Config:       &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:       logg,
		DB:           client,
		Gatherer:     reg,
		Engine:       engine,
		ERP:          erp,
		Requests:     svc,
		Transitioner: tr,
		Analytics:    analytics,
		Purger:       purger,
		Now:          now,
	})
	return router, svc
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRouterRegistersDiagnosticsRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/api/v1/cleanup/status", http.StatusOK},
		{http.MethodGet, "/api/v1/cleanup/logs", http.StatusOK},
		{http.MethodGet, "/api/v1/requests", http.StatusOK},
		{http.MethodGet, "/api/v1/history", http.StatusOK},
		{http.MethodGet, "/api/v1/history/stats?days=7", http.StatusOK},
		{http.MethodGet, "/api/v1/history/export", http.StatusOK},
		{http.MethodDelete, "/api/v1/history", http.StatusOK},
		{http.MethodDelete, "/api/v1/requests/unknown", http.StatusNotFound},
		{http.MethodGet, "/api/v1/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		resp := serve(router, tc.method, tc.path, "")
		assert.Equal(t, tc.want, resp.Code, "%s %s: %s", tc.method, tc.path, resp.Body.String())
		assert.NotEmpty(t, resp.Header().Get("X-Request-Id"), "%s %s", tc.method, tc.path)
	}
}

func TestRouterManualCleanupEndToEnd(t *testing.T) {
	router, svc := newTestRouter(t)

	resp := serve(router, http.MethodPost, "/api/v1/requests", `{"serial_no":"S-1","part_no":"P-1","req_time":"2024-07-15T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	resp = serve(router, http.MethodPost, "/api/v1/requests", `{"serial_no":"S-2","part_no":"P-1"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = serve(router, http.MethodPost, "/api/v1/cleanup/manual", "")
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, `"status":"success"`)
	assert.Contains(t, body, `"cleaned_count":1`)
	assert.Contains(t, body, `"fulfillment_type":"manual_cleanup"`)

	rows, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "S-2", rows[0].SerialNo)

	resp = serve(router, http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"serial_no":"S-1"`)
	assert.Contains(t, resp.Body.String(), `"fulfillment_duration_minutes":120`)

	resp = serve(router, http.MethodGet, "/api/v1/cleanup/status", "")
	assert.Contains(t, resp.Body.String(), `"available":true`)

	resp = serve(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `reconcile_cycles_total{outcome="ok"} 1`)
}
