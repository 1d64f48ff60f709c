package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/parcelscope/api/internal/errors"
	"github.com/parcelscope/api/internal/middleware"
	"github.com/parcelscope/api/internal/services"
)

// ScoreHandler handles scoring trigger requests.
type ScoreHandler struct {
	service services.ScoringService
}

// NewScoreHandler creates a new ScoreHandler instance.
func NewScoreHandler(service services.ScoringService) *ScoreHandler {
	return &ScoreHandler{
		service: service,
	}
}

// ScoreRequest represents the body of a scoring trigger.
type ScoreRequest struct {
	County string `json:"county" binding:"required,min=1"`
}

// Score handles POST /api/v1/score.
// It recomputes signals and scores for every scorable parcel in the county.
func (h *ScoreHandler) Score(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log != nil {
		log.Info("Processing scoring trigger", map[string]interface{}{
			"county": req.County,
		})
	}

	run, err := h.service.ScoreCounty(c.Request.Context(), req.County)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedCounty) {
			apierrors.BadRequest(c, "County is not supported", map[string]interface{}{
				"county": req.County,
			})
			return
		}
		apierrors.InternalServerError(c, "Scoring run failed", err)
		return
	}

	c.JSON(http.StatusOK, run)
}
