package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/parcelscope/api/internal/errors"
	"github.com/parcelscope/api/internal/services"
)

// StatusHandler handles the pipeline status surface.
type StatusHandler struct {
	service services.StatusService
}

// NewStatusHandler creates a new StatusHandler instance.
func NewStatusHandler(service services.StatusService) *StatusHandler {
	return &StatusHandler{
		service: service,
	}
}

// Status handles GET /api/v1/counties/status.
// It reports per-county coverage against the acceptance thresholds along
// with the most recent ingestion jobs.
func (h *StatusHandler) Status(c *gin.Context) {
	report, err := h.service.Report(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to assemble county status", err)
		return
	}

	c.JSON(http.StatusOK, report)
}
