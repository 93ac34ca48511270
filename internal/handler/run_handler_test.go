package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

type stubRunService struct {
	run *models.DispatchRun
	err error
}

func (s *stubRunService) Run(ctx context.Context, trigger models.RunTrigger) (*models.DispatchRun, error) {
	if s.err != nil {
		return nil, s.err
	}
	run := *s.run
	run.Trigger = trigger
	return &run, nil
}

func (s *stubRunService) FindRun(ctx context.Context, id string) (*models.DispatchRun, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.run, nil
}

func (s *stubRunService) ListRuns(ctx context.Context, limit int) ([]models.DispatchRun, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.DispatchRun{*s.run}, nil
}

func newRunRouter(svc runService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewRunHandler(svc, nil, nil).Register(router.Group("/api/v1"))
	return router
}

func completedRun() *models.DispatchRun {
	return &models.DispatchRun{
		ID:        "run-1",
		Status:    models.RunStatusCompleted,
		Processed: 10,
		Assigned:  7,
		Failed:    3,
	}
}

func TestStartRun(t *testing.T) {
	router := newRunRouter(&stubRunService{run: completedRun()})

	body := bytes.NewBufferString(`{"trigger":"MANUAL"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusCreated, recorder.Code)

	var envelope struct {
		Data struct {
			Run models.DispatchRun `json:"run"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "run-1", envelope.Data.Run.ID)
	assert.Equal(t, models.TriggerManual, envelope.Data.Run.Trigger)
}

func TestStartRunBusy(t *testing.T) {
	router := newRunRouter(&stubRunService{err: appErrors.Clone(appErrors.ErrBusy, "")})

	body := bytes.NewBufferString(`{"trigger":"MANUAL"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Contains(t, recorder.Body.String(), appErrors.ErrBusy.Code)
}

func TestStartRunRejectsUnknownTrigger(t *testing.T) {
	router := newRunRouter(&stubRunService{run: completedRun()})

	body := bytes.NewBufferString(`{"trigger":"WHENEVER"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestFindRunNotFound(t *testing.T) {
	router := newRunRouter(&stubRunService{err: appErrors.Clone(appErrors.ErrNotFound, "run not found")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestListRuns(t *testing.T) {
	router := newRunRouter(&stubRunService{run: completedRun()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=10", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data []models.DispatchRun   `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.EqualValues(t, 1, envelope.Meta["count"])
}
