package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gilang-arya/crew-dispatch-api/internal/dto"
	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
	"github.com/gilang-arya/crew-dispatch-api/pkg/response"
)

type proposalService interface {
	List(ctx context.Context, runID string) (*dto.ProposalListResponse, error)
	Find(ctx context.Context, id string) (*models.ScheduleProposal, error)
	Edit(ctx context.Context, id string, req dto.EditProposalRequest) (*models.ScheduleProposal, error)
	Approve(ctx context.Context, id string, req dto.DecisionRequest) (*models.ScheduleProposal, error)
	Reject(ctx context.Context, id string, req dto.DecisionRequest) (*models.ScheduleProposal, error)
	Commit(ctx context.Context, id string) (*models.ScheduleProposal, error)
}

// ProposalHandler exposes the review surface.
type ProposalHandler struct {
	proposals proposalService
	logger    *zap.Logger
}

// NewProposalHandler constructs the handler.
func NewProposalHandler(proposals proposalService, logger *zap.Logger) *ProposalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProposalHandler{proposals: proposals, logger: logger}
}

// Register mounts the routes.
func (h *ProposalHandler) Register(group *gin.RouterGroup) {
	group.GET("/runs/:id/proposals", h.ListByRun)
	group.GET("/proposals/:id", h.Find)
	group.PATCH("/proposals/:id", h.Edit)
	group.POST("/proposals/:id/approve", h.Approve)
	group.POST("/proposals/:id/reject", h.Reject)
	group.POST("/proposals/:id/commit", h.Commit)
}

// ListByRun returns the run's proposals enriched with event and employee
// fields.
func (h *ProposalHandler) ListByRun(c *gin.Context) {
	listing, err := h.proposals.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing, map[string]interface{}{"count": len(listing.Proposals)})
}

// Find returns a single proposal.
func (h *ProposalHandler) Find(c *gin.Context) {
	proposal, err := h.proposals.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// Edit applies a human change of employee and/or start time. An edit that
// breaks a hard constraint responds 422 with the full violation list and the
// stored proposal stays untouched.
func (h *ProposalHandler) Edit(c *gin.Context) {
	var req dto.EditProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	proposal, err := h.proposals.Edit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// Approve records an approval; conflicts warn but never block.
func (h *ProposalHandler) Approve(c *gin.Context) {
	h.decide(c, h.proposals.Approve)
}

// Reject records a rejection.
func (h *ProposalHandler) Reject(c *gin.Context) {
	h.decide(c, h.proposals.Reject)
}

func (h *ProposalHandler) decide(c *gin.Context, decide func(context.Context, string, dto.DecisionRequest) (*models.ScheduleProposal, error)) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	proposal, err := decide(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// Commit pushes an approved proposal to the booking gateway and finalises it.
// A gateway failure responds 502; the proposal stays approved and is retried
// in the background.
func (h *ProposalHandler) Commit(c *gin.Context) {
	proposal, err := h.proposals.Commit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal)
}

// respondError surfaces rule violations with their detail list; everything
// else goes through the common error envelope.
func (h *ProposalHandler) respondError(c *gin.Context, err error) {
	var ruleErr *models.RuleViolationError
	if errors.As(err, &ruleErr) {
		c.Header("Cache-Control", "no-store")
		c.JSON(appErrors.ErrRuleViolation.Status, response.Envelope{
			Error: appErrors.Clone(appErrors.ErrRuleViolation, ruleErr.Message),
			Meta:  map[string]interface{}{"violations": ruleErr.Violations},
		})
		return
	}
	response.Error(c, err)
}
