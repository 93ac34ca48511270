package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilang-arya/crew-dispatch-api/internal/dto"
	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

type stubProposalService struct {
	proposal *models.ScheduleProposal
	listing  *dto.ProposalListResponse
	err      error
}

func (s *stubProposalService) List(ctx context.Context, runID string) (*dto.ProposalListResponse, error) {
	return s.listing, s.err
}

func (s *stubProposalService) Find(ctx context.Context, id string) (*models.ScheduleProposal, error) {
	return s.proposal, s.err
}

func (s *stubProposalService) Edit(ctx context.Context, id string, req dto.EditProposalRequest) (*models.ScheduleProposal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proposal, nil
}

func (s *stubProposalService) Approve(ctx context.Context, id string, req dto.DecisionRequest) (*models.ScheduleProposal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proposal, nil
}

func (s *stubProposalService) Reject(ctx context.Context, id string, req dto.DecisionRequest) (*models.ScheduleProposal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proposal, nil
}

func (s *stubProposalService) Commit(ctx context.Context, id string) (*models.ScheduleProposal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.proposal, nil
}

func newProposalRouter(svc proposalService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewProposalHandler(svc, nil).Register(router.Group("/api/v1"))
	return router
}

func sampleProposal(status models.ProposalStatus) *models.ScheduleProposal {
	return &models.ScheduleProposal{
		ID:            "prop-1",
		RunID:         "run-1",
		EventID:       "evt-1",
		EmployeeID:    "emp-1",
		ProposedStart: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		Status:        status,
	}
}

func TestListProposalsByRun(t *testing.T) {
	listing := &dto.ProposalListResponse{
		RunID: "run-1",
		Proposals: []models.ProposalDetail{
			{ScheduleProposal: *sampleProposal(models.ProposalStatusProposed), EventName: "Morning Rounds"},
		},
	}
	router := newProposalRouter(&stubProposalService{listing: listing})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-1/proposals", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Morning Rounds")
}

func TestEditProposal(t *testing.T) {
	router := newProposalRouter(&stubProposalService{proposal: sampleProposal(models.ProposalStatusUserEdited)})

	body := bytes.NewBufferString(`{"employee_id":"emp-2","edited_by":"reviewer-1"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/proposals/prop-1", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestEditProposalViolationReturns422WithDetails(t *testing.T) {
	ruleErr := &models.RuleViolationError{
		Message: "edit violates hard constraints",
		Violations: []models.Violation{
			{Kind: models.ViolationTimeOff, Message: "employee is on time off on 2025-06-10"},
		},
	}
	svcErr := appErrors.Wrap(ruleErr, appErrors.ErrRuleViolation.Code, appErrors.ErrRuleViolation.Status, ruleErr.Message)
	router := newProposalRouter(&stubProposalService{err: svcErr})

	body := bytes.NewBufferString(`{"employee_id":"emp-2","edited_by":"reviewer-1"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/proposals/prop-1", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var envelope struct {
		Error *appErrors.Error       `json:"error"`
		Meta  map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrRuleViolation.Code, envelope.Error.Code)
	violations, ok := envelope.Meta["violations"].([]interface{})
	require.True(t, ok)
	assert.Len(t, violations, 1)
}

func TestApproveProposal(t *testing.T) {
	router := newProposalRouter(&stubProposalService{proposal: sampleProposal(models.ProposalStatusApproved)})

	body := bytes.NewBufferString(`{"decided_by":"reviewer-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals/prop-1/approve", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), string(models.ProposalStatusApproved))
}

func TestCommitProposalGatewayFailure(t *testing.T) {
	router := newProposalRouter(&stubProposalService{err: appErrors.Clone(appErrors.ErrGateway, "")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals/prop-1/commit", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	assert.Contains(t, recorder.Body.String(), appErrors.ErrGateway.Code)
}

func TestDecisionRejectsMissingReviewer(t *testing.T) {
	proposal := sampleProposal(models.ProposalStatusProposed)
	svcErr := appErrors.Clone(appErrors.ErrValidation, "invalid decision request")
	router := newProposalRouter(&stubProposalService{proposal: proposal, err: svcErr})

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/proposals/prop-1/reject", body)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
