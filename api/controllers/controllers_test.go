package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/containerflow/internal/history"
	"github.com/angelmondragon/containerflow/internal/reconcile"
	"github.com/angelmondragon/containerflow/internal/requests"
	"github.com/angelmondragon/containerflow/pkg/config"
	"github.com/angelmondragon/containerflow/pkg/db/dbtest"
	"github.com/angelmondragon/containerflow/pkg/db/models"
	"github.com/angelmondragon/containerflow/pkg/enums"
	"github.com/angelmondragon/containerflow/pkg/logger"
	"github.com/angelmondragon/containerflow/pkg/types"
)

var testNow = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubRunner struct{ result reconcile.Result }

func (s stubRunner) RunManual(context.Context) reconcile.Result { return s.result }

type stubStatus struct {
	status *reconcile.CycleStatus
	ok     bool
	err    error
}

func (s stubStatus) LatestStatus(context.Context) (*reconcile.CycleStatus, bool, error) {
	return s.status, s.ok, s.err
}

type stubLocator struct {
	locations []string
	err       error
}

func (s stubLocator) ProductionLocations(context.Context) ([]string, error) {
	return s.locations, s.err
}

type ledgerFixture struct {
	svc          requests.Service
	transitioner *history.Transitioner
	repo         requests.Repository
}

func newLedger(t *testing.T) *ledgerFixture {
	t.Helper()
	client := dbtest.Client(t)
	repo := requests.NewRepository(client.DB())
	svc, err := requests.NewService(requests.ServiceParams{
		Repo: repo,
		Now:  func() time.Time { return testNow },
	})
	require.NoError(t, err)
	tr, err := history.NewTransitioner(history.TransitionerParams{
		DB:       client,
		History:  history.NewRepository(client.DB()),
		Requests: repo,
		Logger:   logger.Nop(),
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return &ledgerFixture{svc: svc, transitioner: tr, repo: repo}
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeData(t, resp, &ready)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "disabled", ready.Checks["redis"])

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}, stubPinger{err: errors.New("down")}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	apiErr := decodeError(t, resp)
	details, ok := apiErr.Details.(map[string]any)
	require.True(t, ok, "details %v", apiErr.Details)
	assert.Equal(t, "unavailable", details["redis"])
}

func TestCleanupManualReturnsResultForSkippedCycle(t *testing.T) {
	runner := stubRunner{result: reconcile.Result{
		Status:          reconcile.StatusError,
		Message:         "production locations unavailable",
		FulfillmentType: enums.FulfillmentManualCleanup,
		Errors:          []string{"erp down"},
	}}
	resp := httptest.NewRecorder()
	CleanupManual(runner, logger.Nop()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/cleanup/manual", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var result reconcile.Result
	decodeData(t, resp, &result)
	assert.Equal(t, reconcile.StatusError, result.Status)
	assert.Equal(t, []string{"erp down"}, result.Errors)
}

func TestCleanupStatus(t *testing.T) {
	resp := httptest.NewRecorder()
	CleanupStatus(stubStatus{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	var empty cleanupStatusResponse
	decodeData(t, resp, &empty)
	assert.False(t, empty.Available)
	assert.Nil(t, empty.LastCycle)

	status := &reconcile.CycleStatus{Outcome: reconcile.OutcomeSkipped, Reason: "no production locations returned"}
	resp = httptest.NewRecorder()
	CleanupStatus(stubStatus{status: status, ok: true}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	var got cleanupStatusResponse
	decodeData(t, resp, &got)
	require.True(t, got.Available)
	assert.Equal(t, reconcile.OutcomeSkipped, got.LastCycle.Outcome)

	resp = httptest.NewRecorder()
	CleanupStatus(stubStatus{err: errors.New("redis down")}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestCleanupLogsReportsERPFailureInline(t *testing.T) {
	ledger := newLedger(t)
	_, err := ledger.svc.Submit(context.Background(), requests.SubmitInput{SerialNo: "S-1", PartNo: "P-1"})
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	handler := CleanupLogs(stubLocator{err: errors.New("erp down")}, ledger.svc, func() time.Time { return testNow }, logger.Nop())
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var logs cleanupLogsResponse
	decodeData(t, resp, &logs)
	assert.Equal(t, int64(1), logs.TotalActiveRequests)
	assert.Empty(t, logs.ProductionLocations)
	require.NotNil(t, logs.ProductionLocationsError)
	assert.Contains(t, *logs.ProductionLocationsError, "erp down")
	assert.True(t, logs.SystemTime.Equal(testNow))
	require.NotNil(t, logs.OldestRequest)

	resp = httptest.NewRecorder()
	CleanupLogs(stubLocator{locations: []string{"LINE-1"}}, ledger.svc, nil, nil).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	decodeData(t, resp, &logs)
	assert.Equal(t, []string{"LINE-1"}, logs.ProductionLocations)
}

func TestRequestSubmitAndList(t *testing.T) {
	ledger := newLedger(t)
	submit := RequestSubmit(ledger.svc, logger.Nop())

	body := `{"serial_no":"S-100","part_no":"P-1","quantity":"2.5","deliver_to":"WC-1","req_time":"2024-07-15T08:00:00"}`
	resp := httptest.NewRecorder()
	submit.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var row models.ActiveRequest
	decodeData(t, resp, &row)
	assert.Equal(t, "S-100", row.SerialNo)
	assert.True(t, row.ReqTime.Equal(time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)))

	resp = httptest.NewRecorder()
	submit.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = httptest.NewRecorder()
	submit.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader(`{"part_no":"P-1"}`)))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, resp).Code)

	resp = httptest.NewRecorder()
	submit.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/requests",
		strings.NewReader(`{"serial_no":"S-2","part_no":"P-1","req_time":"yesterday"}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	RequestsList(ledger.svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Requests []models.ActiveRequest `json:"requests"`
		Count    int                    `json:"count"`
	}
	decodeData(t, resp, &list)
	assert.Equal(t, 1, list.Count)
}

func TestRequestDeleteRecordsManualDelete(t *testing.T) {
	ledger := newLedger(t)
	_, err := ledger.svc.Submit(context.Background(), requests.SubmitInput{SerialNo: "S-9", PartNo: "P-1"})
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Delete("/api/v1/requests/{serialNo}", RequestDelete(ledger.transitioner, logger.Nop()))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/v1/requests/S-9", nil))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var record models.HistoryRecord
	decodeData(t, resp, &record)
	assert.Equal(t, enums.FulfillmentManualDelete, record.FulfillmentType)
	assert.Equal(t, models.ManualDeleteLocation, record.CurrentLocation)

	count, err := ledger.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/v1/requests/S-9", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestContainersAvailableRequiresPart(t *testing.T) {
	ledger := newLedger(t)
	resp := httptest.NewRecorder()
	ContainersAvailable(ledger.svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/containers", nil))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "part_no is required", decodeError(t, resp).Message)

	resp = httptest.NewRecorder()
	ContainersAvailable(ledger.svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/containers?part_no=P-1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
