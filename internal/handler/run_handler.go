package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gilang-arya/crew-dispatch-api/internal/dto"
	"github.com/gilang-arya/crew-dispatch-api/internal/models"
	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
	"github.com/gilang-arya/crew-dispatch-api/pkg/response"
)

type runService interface {
	Run(ctx context.Context, trigger models.RunTrigger) (*models.DispatchRun, error)
	FindRun(ctx context.Context, id string) (*models.DispatchRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.DispatchRun, error)
}

// RunHandler exposes the dispatch run endpoints.
type RunHandler struct {
	engine   runService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRunHandler constructs the handler.
func NewRunHandler(engine runService, validate *validator.Validate, logger *zap.Logger) *RunHandler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{engine: engine, validate: validate, logger: logger}
}

// Register mounts the routes.
func (h *RunHandler) Register(group *gin.RouterGroup) {
	group.POST("/runs", h.Start)
	group.GET("/runs", h.List)
	group.GET("/runs/:id", h.Find)
}

// Start launches a dispatch run. Responds 409 when another run is active.
func (h *RunHandler) Start(c *gin.Context) {
	var req dto.StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run request"))
		return
	}

	run, err := h.engine.Run(c.Request.Context(), models.RunTrigger(req.Trigger))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.RunResponse{Run: *run, Proposals: run.Assigned})
}

// Find returns a single run from the ledger.
func (h *RunHandler) Find(c *gin.Context) {
	run, err := h.engine.FindRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run)
}

// List returns recent runs, newest first.
func (h *RunHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.engine.ListRuns(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, map[string]interface{}{"count": len(runs)})
}
