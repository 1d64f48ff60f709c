package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/parcelscope/api/internal/errors"
	"github.com/parcelscope/api/internal/ingest"
	"github.com/parcelscope/api/internal/middleware"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/services"
)

// IngestHandler handles ingestion trigger requests.
type IngestHandler struct {
	service services.IngestService
}

// NewIngestHandler creates a new IngestHandler instance.
func NewIngestHandler(service services.IngestService) *IngestHandler {
	return &IngestHandler{
		service: service,
	}
}

// IngestRequest represents the body of an ingestion trigger.
type IngestRequest struct {
	County string `json:"county" binding:"required,min=1"`
}

// IngestResponse represents the outcome of one ingestion invocation.
// Source is present only on failed runs; Cursor tells a resuming caller
// where the next invocation picks up.
type IngestResponse struct {
	NullAudit     map[string]int     `json:"null_audit,omitempty"`
	Source        *IngestSourceError `json:"source_error,omitempty"`
	MedianLandVal *float64           `json:"median_land_val,omitempty"`
	Status        string             `json:"status"`
	County        string             `json:"county"`
	JobID         string             `json:"job_id"`
	Cursor        int64              `json:"cursor"`
	Processed     int                `json:"processed"`
	Failed        int                `json:"failed"`
	WithGeometry  int                `json:"with_geometry"`
	PagesFetched  int                `json:"pages_fetched"`
}

// IngestSourceError carries the failing request's parameters and a truncated
// response body for diagnosis.
type IngestSourceError struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

// Ingest handles POST /api/v1/ingest.
// completed runs return 200, deadline-truncated runs return 202 with the
// cursor to resume from, and source failures return 502.
func (h *IngestHandler) Ingest(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Processing ingestion trigger", map[string]interface{}{
			"county": req.County,
		})
	}

	result, err := h.service.Ingest(c.Request.Context(), req.County)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedCounty) {
			apierrors.BadRequest(c, "County is not supported", map[string]interface{}{
				"county":    req.County,
				"supported": h.service.SupportedCounties(),
			})
			return
		}
		apierrors.InternalServerError(c, "Ingestion run could not be recorded", err)
		return
	}

	resp := ingestResponse(result)
	switch result.Status {
	case ingest.StatusCompleted:
		c.JSON(http.StatusOK, resp)
	case ingest.StatusInProgress:
		c.JSON(http.StatusAccepted, resp)
	default:
		c.JSON(http.StatusBadGateway, resp)
	}
}

func ingestResponse(result *ingest.RunResult) IngestResponse {
	job := result.Job
	resp := IngestResponse{
		Status:       result.Status,
		County:       job.County,
		JobID:        job.ID,
		Cursor:       job.Cursor,
		Processed:    job.Processed,
		Failed:       job.Failed,
		WithGeometry: job.WithGeometry,
		PagesFetched: job.PagesFetched,
		NullAudit:    job.NullAudit,
	}
	if job.Status == models.JobStatusCompleted {
		resp.MedianLandVal = job.MedianLandVal
	}
	if result.Source != nil {
		resp.Source = &IngestSourceError{
			URL:        result.Source.URL,
			StatusCode: result.Source.StatusCode,
			Body:       result.Source.Body,
		}
	}
	return resp
}
