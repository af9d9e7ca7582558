package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/applications"
	"github.com/mamadbah2/orchard/internal/service/lifecycle"
	"github.com/mamadbah2/orchard/internal/service/movements"
	"github.com/mamadbah2/orchard/internal/service/reporting"
)

type stubService struct {
	err     error
	created applications.CreateInput
	started applications.StartInput
}

func (s *stubService) Create(_ context.Context, in applications.CreateInput) (models.Application, error) {
	s.created = in
	return models.Application{ID: "app-1", Name: in.Name, Estado: models.EstadoCalculada}, s.err
}

func (s *stubService) Get(_ context.Context, id string) (models.Application, error) {
	return models.Application{ID: id}, s.err
}

func (s *stubService) List(context.Context, models.Estado) ([]models.Application, error) {
	return []models.Application{{ID: "app-1"}}, s.err
}

func (s *stubService) UpdateMixtures(_ context.Context, id string, _ applications.PlanInput) (models.Application, error) {
	return models.Application{ID: id}, s.err
}

func (s *stubService) PurchaseList(context.Context, string) (models.PurchaseList, error) {
	return models.PurchaseList{TotalCost: 170}, s.err
}

func (s *stubService) StartExecution(_ context.Context, id string, in applications.StartInput) (models.Application, error) {
	s.started = in
	return models.Application{ID: id, Estado: models.EstadoEnEjecucion}, s.err
}

func (s *stubService) RecordMovement(context.Context, string, applications.MovementInput) (models.DailyMovement, movements.Progress, error) {
	return models.DailyMovement{ID: "mv-1"}, movements.Progress{}, s.err
}

func (s *stubService) DeleteMovement(context.Context, string, string) (movements.Progress, error) {
	return movements.Progress{}, s.err
}

func (s *stubService) Movements(context.Context, string, string) ([]models.DailyMovement, error) {
	return nil, s.err
}

func (s *stubService) Progress(context.Context, string, string) (movements.Progress, error) {
	return movements.Progress{}, s.err
}

func (s *stubService) Close(_ context.Context, id string, _ applications.CloseInput) (models.Application, error) {
	return models.Application{ID: id, Estado: models.EstadoCerrada}, s.err
}

func (s *stubService) Approve(_ context.Context, id string, _ applications.ApproveInput) (models.Application, error) {
	return models.Application{ID: id, Estado: models.EstadoCerrada}, s.err
}

func (s *stubService) Report(context.Context, string) (reporting.ClosureReport, error) {
	return reporting.ClosureReport{Name: "Fumigación"}, s.err
}

func newEngine(svc ApplicationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewApplicationHandler(svc, nil)
	r := gin.New()
	r.POST("/applications", h.Create)
	r.GET("/applications/:id", h.Get)
	r.POST("/applications/:id/start", h.Start)
	r.POST("/applications/:id/approve", h.Approve)
	r.GET("/applications/:id/report", h.Report)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateApplication(t *testing.T) {
	svc := &stubService{}
	r := newEngine(svc)

	body := `{"name":"Fumigación","type":"fumigacion","targets":["Antracnosis"],
		"lots":[{"lot_id":"L1","calibration_per_tree":20,"container_size":200}],
		"mixtures":[{"name":"M1","lot_ids":["L1"],"products":[{"product_id":"fung","dose_per_container":50,"dose_unit":"cc"}]}]}`
	w := do(r, http.MethodPost, "/applications", body)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.ApplicationSpray, svc.created.Type)
	require.Len(t, svc.created.Lots, 1)
	assert.Equal(t, 200, svc.created.Lots[0].ContainerSize)
	assert.Equal(t, models.DoseUnitCC, svc.created.Mixtures[0].Products[0].DoseUnit)

	var app models.Application
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &app))
	assert.Equal(t, "app-1", app.ID)
}

func TestCreateApplicationBadBody(t *testing.T) {
	r := newEngine(&stubService{})

	w := do(r, http.MethodPost, "/applications", `{"type":"fumigacion"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/applications", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", models.ValidationErrors{{Entity: "lot L1", Message: "missing calibration per tree"}}, http.StatusBadRequest},
		{"not found", fmt.Errorf("load application x: %w", models.ErrNotFound), http.StatusNotFound},
		{"transition", fmt.Errorf("%w: start", lifecycle.ErrInvalidTransition), http.StatusConflict},
		{"not allowed", fmt.Errorf("%w: edit", lifecycle.ErrOperationNotAllowed), http.StatusConflict},
		{"guard", lifecycle.ErrStartDateInFuture, http.StatusUnprocessableEntity},
		{"internal", errors.New("mongo down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newEngine(&stubService{err: tc.err})
			w := do(r, http.MethodGet, "/applications/x", "")
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestValidationErrorBody(t *testing.T) {
	r := newEngine(&stubService{err: models.ValidationErrors{{Entity: "lot L1", Message: "missing calibration per tree"}}})

	w := do(r, http.MethodGet, "/applications/x", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Errors []models.ValidationError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []models.ValidationError{{Entity: "lot L1", Message: "missing calibration per tree"}}, body.Errors)
}

func TestStartStockGate(t *testing.T) {
	gate := &applications.StockGateError{Shortfalls: []models.PurchaseListItem{{ProductID: "adh", ProductName: "Adherente", Shortfall: 1.5}}}
	svc := &stubService{err: gate}
	r := newEngine(svc)

	w := do(r, http.MethodPost, "/applications/x/start", `{"start_date":"2026-06-14T00:00:00Z"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, svc.started.StartDate)
	assert.False(t, svc.started.AcknowledgeShortfalls)

	var body struct {
		Code       string                    `json:"code"`
		Shortfalls []models.PurchaseListItem `json:"shortfalls"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "stock_not_acknowledged", body.Code)
	require.Len(t, body.Shortfalls, 1)
	assert.Equal(t, "adh", body.Shortfalls[0].ProductID)
}

func TestApproveRequiresApprover(t *testing.T) {
	r := newEngine(&stubService{})

	w := do(r, http.MethodPost, "/applications/x/approve", `{"note":"ok"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/applications/x/approve", `{"approver":"Gerente"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReport(t *testing.T) {
	r := newEngine(&stubService{})

	w := do(r, http.MethodGet, "/applications/x/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Fumigación"`)
}
