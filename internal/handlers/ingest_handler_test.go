package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/parcelscope/api/internal/ingest"
	"github.com/parcelscope/api/internal/logger"
	"github.com/parcelscope/api/internal/middleware"
	"github.com/parcelscope/api/internal/models"
	"github.com/parcelscope/api/internal/services"
	"github.com/parcelscope/api/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIngestService is a mock implementation of IngestService for testing
type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) Ingest(ctx context.Context, county string) (*ingest.RunResult, error) {
	args := m.Called(ctx, county)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.RunResult), args.Error(1)
}

func (m *MockIngestService) SupportedCounties() []string {
	return source.Supported()
}

// setupIngestTestRouter creates a test router with middleware and the ingest handler.
func setupIngestTestRouter(handler *IngestHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.New("test")))

	router.POST("/api/v1/ingest", handler.Ingest)
	return router
}

func postIngest(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIngest_Completed(t *testing.T) {
	mockService := new(MockIngestService)
	router := setupIngestTestRouter(NewIngestHandler(mockService))

	median := 125000.0
	mockService.On("Ingest", mock.Anything, "wake").Return(&ingest.RunResult{
		Status: ingest.StatusCompleted,
		Job: models.IngestionJob{
			ID:            "job-1",
			County:        "wake",
			Status:        models.JobStatusCompleted,
			Cursor:        50000,
			Processed:     2000,
			WithGeometry:  1990,
			PagesFetched:  1,
			MedianLandVal: &median,
		},
	}, nil)

	w := postIngest(t, router, `{"county": "wake"}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, int64(50000), resp.Cursor)
	assert.Equal(t, 2000, resp.Processed)
	require.NotNil(t, resp.MedianLandVal)
	assert.Equal(t, median, *resp.MedianLandVal)
}

func TestIngest_InProgressReturnsAccepted(t *testing.T) {
	mockService := new(MockIngestService)
	router := setupIngestTestRouter(NewIngestHandler(mockService))

	mockService.On("Ingest", mock.Anything, "wake").Return(&ingest.RunResult{
		Status: ingest.StatusInProgress,
		Job: models.IngestionJob{
			ID:     "job-1",
			County: "wake",
			Status: models.JobStatusRunning,
			Cursor: 24000,
		},
	}, nil)

	w := postIngest(t, router, `{"county": "wake"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "in_progress", resp.Status)
	assert.Equal(t, int64(24000), resp.Cursor)
}

func TestIngest_FailedReturnsBadGatewayWithSourceError(t *testing.T) {
	mockService := new(MockIngestService)
	router := setupIngestTestRouter(NewIngestHandler(mockService))

	mockService.On("Ingest", mock.Anything, "wake").Return(&ingest.RunResult{
		Status: ingest.StatusFailed,
		Job: models.IngestionJob{
			ID:     "job-1",
			County: "wake",
			Status: models.JobStatusFailed,
			Cursor: 24000,
		},
		Source: &source.SourceError{
			URL:        "https://maps.example.test/query?where=OBJECTID+%3E+24000",
			StatusCode: 503,
			Body:       "service unavailable",
		},
	}, nil)

	w := postIngest(t, router, `{"county": "wake"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Source)
	assert.Equal(t, 503, resp.Source.StatusCode)
	assert.Contains(t, resp.Source.URL, "where=")
	// The failure did not lose the committed cursor.
	assert.Equal(t, int64(24000), resp.Cursor)
}

func TestIngest_UnsupportedCounty(t *testing.T) {
	mockService := new(MockIngestService)
	router := setupIngestTestRouter(NewIngestHandler(mockService))

	mockService.On("Ingest", mock.Anything, "atlantis").Return(nil, services.ErrUnsupportedCounty)

	w := postIngest(t, router, `{"county": "atlantis"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "supported")
}

func TestIngest_MissingCounty(t *testing.T) {
	mockService := new(MockIngestService)
	router := setupIngestTestRouter(NewIngestHandler(mockService))

	w := postIngest(t, router, `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}
