// Package controller exposes the executor over HTTP.
package controller

import (
	"context"
	"net/http"

	"cppexec/internal/executor/model"

	"github.com/gin-gonic/gin"
)

// ExecutorService is the pipeline surface the controller dispatches to.
type ExecutorService interface {
	Execute(ctx context.Context, req model.ExecutionRequest) model.ExecutionResult
	Validate(ctx context.Context, code string) model.ValidationResult
	Info() model.ServiceInfo
}

// ExecutorController handles code execution requests.
type ExecutorController struct {
	svc ExecutorService
}

// NewExecutorController creates a new controller.
func NewExecutorController(svc ExecutorService) *ExecutorController {
	return &ExecutorController{svc: svc}
}

// Execute compiles and runs one submission.
func (h *ExecutorController) Execute(c *gin.Context) {
	var req model.ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ExecutionResult{
			Error:  "Invalid request: " + err.Error(),
			Status: model.StatusError,
		})
		return
	}
	c.JSON(http.StatusOK, h.svc.Execute(c.Request.Context(), req))
}

// Validate syntax-checks one submission without running it.
func (h *ExecutorController) Validate(c *gin.Context) {
	var req model.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewValidationResult(false, "Invalid request: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, h.svc.Validate(c.Request.Context(), req.Code))
}

// Health reports service liveness.
func (h *ExecutorController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": h.svc.Info().Service})
}

// Info reports compiler and limit metadata.
func (h *ExecutorController) Info(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Info())
}
