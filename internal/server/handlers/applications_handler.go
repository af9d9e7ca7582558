package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/orchard/internal/domain/models"
	"github.com/mamadbah2/orchard/internal/service/applications"
	"github.com/mamadbah2/orchard/internal/service/lifecycle"
	"github.com/mamadbah2/orchard/internal/service/movements"
	"github.com/mamadbah2/orchard/internal/service/reporting"
)

// ApplicationService is the lifecycle surface exposed over HTTP.
type ApplicationService interface {
	Create(ctx context.Context, in applications.CreateInput) (models.Application, error)
	Get(ctx context.Context, id string) (models.Application, error)
	List(ctx context.Context, estado models.Estado) ([]models.Application, error)
	UpdateMixtures(ctx context.Context, id string, in applications.PlanInput) (models.Application, error)
	PurchaseList(ctx context.Context, id string) (models.PurchaseList, error)
	StartExecution(ctx context.Context, id string, in applications.StartInput) (models.Application, error)
	RecordMovement(ctx context.Context, id string, in applications.MovementInput) (models.DailyMovement, movements.Progress, error)
	DeleteMovement(ctx context.Context, id, movementID string) (movements.Progress, error)
	Movements(ctx context.Context, id, lotID string) ([]models.DailyMovement, error)
	Progress(ctx context.Context, id, lotID string) (movements.Progress, error)
	Close(ctx context.Context, id string, in applications.CloseInput) (models.Application, error)
	Approve(ctx context.Context, id string, in applications.ApproveInput) (models.Application, error)
	Report(ctx context.Context, id string) (reporting.ClosureReport, error)
}

// ApplicationHandler serves the application lifecycle endpoints.
type ApplicationHandler struct {
	svc    ApplicationService
	logger *zap.Logger
}

// NewApplicationHandler constructs the HTTP handler adapter.
func NewApplicationHandler(svc ApplicationService, logger *zap.Logger) *ApplicationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationHandler{svc: svc, logger: logger}
}

// Create plans a new application.
func (h *ApplicationHandler) Create(c *gin.Context) {
	var in applications.CreateInput
	if !h.bind(c, &in) {
		return
	}
	app, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// List returns applications, filtered by the optional estado query parameter.
func (h *ApplicationHandler) List(c *gin.Context) {
	apps, err := h.svc.List(c.Request.Context(), models.Estado(c.Query("estado")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

// Get returns one application.
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// UpdateMixtures replaces lots and mixtures of a planned application.
func (h *ApplicationHandler) UpdateMixtures(c *gin.Context) {
	var in applications.PlanInput
	if !h.bind(c, &in) {
		return
	}
	app, err := h.svc.UpdateMixtures(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// PurchaseList recomputes the purchase list against current stock.
func (h *ApplicationHandler) PurchaseList(c *gin.Context) {
	list, err := h.svc.PurchaseList(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Start moves an application into execution.
func (h *ApplicationHandler) Start(c *gin.Context) {
	var in applications.StartInput
	if !h.bind(c, &in) {
		return
	}
	app, err := h.svc.StartExecution(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// RecordMovement stores a daily movement and returns the recomputed progress.
func (h *ApplicationHandler) RecordMovement(c *gin.Context) {
	var in applications.MovementInput
	if !h.bind(c, &in) {
		return
	}
	mv, progress, err := h.svc.RecordMovement(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"movement": mv, "progress": progress})
}

// ListMovements returns recorded movements, optionally for one lot.
func (h *ApplicationHandler) ListMovements(c *gin.Context) {
	mvs, err := h.svc.Movements(c.Request.Context(), c.Param("id"), c.Query("lot_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": mvs})
}

// DeleteMovement removes a movement and returns the recomputed progress.
func (h *ApplicationHandler) DeleteMovement(c *gin.Context) {
	progress, err := h.svc.DeleteMovement(c.Request.Context(), c.Param("id"), c.Param("movementID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Progress returns consumption against plan, optionally for one lot.
func (h *ApplicationHandler) Progress(c *gin.Context) {
	progress, err := h.svc.Progress(c.Request.Context(), c.Param("id"), c.Query("lot_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Close runs the closure.
func (h *ApplicationHandler) Close(c *gin.Context) {
	var in applications.CloseInput
	if !h.bind(c, &in) {
		return
	}
	app, err := h.svc.Close(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// Approve records managerial approval of a closure.
func (h *ApplicationHandler) Approve(c *gin.Context) {
	var in applications.ApproveInput
	if !h.bind(c, &in) {
		return
	}
	app, err := h.svc.Approve(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// Report returns the closure report data object.
func (h *ApplicationHandler) Report(c *gin.Context) {
	report, err := h.svc.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ApplicationHandler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return false
	}
	return true
}

// fail maps service errors to HTTP status codes.
func (h *ApplicationHandler) fail(c *gin.Context, err error) {
	var (
		verrs models.ValidationErrors
		gate  *applications.StockGateError
	)
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "errors": verrs})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &gate):
		c.JSON(http.StatusConflict, gin.H{
			"error":      gate.Error(),
			"code":       "stock_not_acknowledged",
			"shortfalls": gate.Shortfalls,
		})
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrOperationNotAllowed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrStartDateMissing), errors.Is(err, lifecycle.ErrStartDateInFuture),
		errors.Is(err, lifecycle.ErrNoMovements), errors.Is(err, lifecycle.ErrNoLabor),
		errors.Is(err, lifecycle.ErrApproverMissing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
