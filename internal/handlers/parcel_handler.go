package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/parcelscope/api/internal/errors"
	"github.com/parcelscope/api/internal/middleware"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/services"
)

// Bounds for the top-parcels listing.
const (
	defaultTopLimit = 50
	maxTopLimit     = 500
)

// ParcelHandler handles the parcel read surface: ranked listings and
// per-parcel detail.
type ParcelHandler struct {
	service services.ParcelService
}

// NewParcelHandler creates a new ParcelHandler instance.
func NewParcelHandler(service services.ParcelService) *ParcelHandler {
	return &ParcelHandler{
		service: service,
	}
}

// TopParcelsRequest represents the query parameters for the top endpoint.
type TopParcelsRequest struct {
	County   string  `form:"county"`
	Limit    int     `form:"limit" binding:"omitempty,min=1,max=500"`
	MinScore float64 `form:"min_score" binding:"omitempty,min=0,max=1"`
}

// ScoredParcelData pairs a parcel with its score in listing responses.
type ScoredParcelData struct {
	Parcel models.Parcel `json:"parcel"`
	Score  models.Score  `json:"score"`
}

// TopParcelsResponse represents the ranked listing response.
type TopParcelsResponse struct {
	Parcels []ScoredParcelData `json:"parcels"`
	Count   int                `json:"count"`
}

// Top handles GET /api/v1/parcels/top.
// Results are ordered by investment score descending; county is optional.
func (h *ParcelHandler) Top(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req TopParcelsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultTopLimit
	}

	if log != nil {
		log.Info("Processing top-parcels request", map[string]interface{}{
			"county":    req.County,
			"limit":     req.Limit,
			"min_score": req.MinScore,
		})
	}

	scored, err := h.service.GetTopParcels(c.Request.Context(), req.County, req.Limit, req.MinScore)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to query top parcels", err)
		return
	}

	parcels := make([]ScoredParcelData, 0, len(scored))
	for _, sp := range scored {
		parcels = append(parcels, ScoredParcelData{
			Parcel: sp.Parcel,
			Score:  sp.Score,
		})
	}

	c.JSON(http.StatusOK, TopParcelsResponse{
		Parcels: parcels,
		Count:   len(parcels),
	})
}

// Detail handles GET /api/v1/parcels/:county/:pin.
// Returns the parcel with its current score and full snapshot history.
func (h *ParcelHandler) Detail(c *gin.Context) {
	county := c.Param("county")
	pin := c.Param("pin")
	if county == "" || pin == "" {
		apierrors.BadRequest(c, "county and pin are required", nil)
		return
	}

	detail, err := h.service.GetParcelDetail(c.Request.Context(), county, pin)
	if err != nil {
		if errors.Is(err, services.ErrParcelNotFound) {
			apierrors.NotFound(c, "No parcel found for this county and PIN")
			return
		}
		apierrors.InternalServerError(c, "Failed to query parcel detail", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}
