package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"github.com/nsoterop/asii-medical-sub000/internal/worker"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRunStore is a mock implementation of RunStore
type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) CreateRun(ctx context.Context, originalFilename, storedPath string) (*models.ImportRun, error) {
	args := m.Called(ctx, originalFilename, storedPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportRun), args.Error(1)
}

func (m *MockRunStore) GetRun(ctx context.Context, runID uuid.UUID) (*models.ImportRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportRun), args.Error(1)
}

func (m *MockRunStore) ListRuns(ctx context.Context, page, limit int) ([]models.ImportRun, int64, error) {
	args := m.Called(ctx, page, limit)
	return args.Get(0).([]models.ImportRun), args.Get(1).(int64), args.Error(2)
}

func (m *MockRunStore) ListRowErrors(ctx context.Context, runID uuid.UUID, page, limit int) ([]models.ImportRowError, int64, error) {
	args := m.Called(ctx, runID, page, limit)
	return args.Get(0).([]models.ImportRowError), args.Get(1).(int64), args.Error(2)
}

func (m *MockRunStore) MarkFailedIfActive(ctx context.Context, runID uuid.UUID, message string) (bool, error) {
	args := m.Called(ctx, runID, message)
	return args.Bool(0), args.Error(1)
}

// MockFeedQueue is a mock implementation of FeedQueue
type MockFeedQueue struct {
	mock.Mock
}

func (m *MockFeedQueue) Enqueue(job worker.Job) error {
	args := m.Called(job)
	return args.Error(0)
}

func newTestHandler(t *testing.T) (*ImportHandler, *MockRunStore, *MockFeedQueue, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	runs := new(MockRunStore)
	queue := new(MockFeedQueue)
	handler := NewImportHandler(runs, queue, t.TempDir(), 20, 100, logger)

	router := gin.New()
	imports := router.Group("/api/v1/catalog/imports")
	{
		imports.POST("", handler.UploadFeed)
		imports.GET("", handler.ListRuns)
		imports.GET("/template", handler.GetFeedTemplate)
		imports.GET("/:id", handler.GetRun)
		imports.GET("/:id/errors", handler.ListRunErrors)
		imports.POST("/:id/cancel", handler.CancelRun)
	}
	return handler, runs, queue, router
}

func multipartFeedBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadFeedQueuesRun(t *testing.T) {
	handler, runs, queue, router := newTestHandler(t)

	runID := uuid.New()
	runs.On("CreateRun", mock.Anything, "supplier_feed.csv", mock.AnythingOfType("string")).
		Return(&models.ImportRun{ID: runID, Status: models.ImportRunStatusQueued}, nil)
	queue.On("Enqueue", mock.MatchedBy(func(job worker.Job) bool {
		return job.RunID == runID && strings.HasPrefix(job.FilePath, handler.uploadDir)
	})).Return(nil)

	body, contentType := multipartFeedBody(t, "supplier_feed.csv", "ItemID,ProductID\n1,10\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	runs.AssertExpectations(t)
	queue.AssertExpectations(t)

	// The upload is stored on disk before the run is queued
	storedPath := runs.Calls[0].Arguments.String(2)
	data, err := os.ReadFile(storedPath)
	require.NoError(t, err)
	assert.Equal(t, "ItemID,ProductID\n1,10\n", string(data))
}

func TestUploadFeedRequiresFile(t *testing.T) {
	_, runs, _, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/imports", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	runs.AssertNotCalled(t, "CreateRun")
}

func TestUploadFeedQueueFullFailsRun(t *testing.T) {
	_, runs, queue, router := newTestHandler(t)

	runID := uuid.New()
	runs.On("CreateRun", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.ImportRun{ID: runID, Status: models.ImportRunStatusQueued}, nil)
	queue.On("Enqueue", mock.Anything).Return(worker.ErrQueueFull)
	runs.On("MarkFailedIfActive", mock.Anything, runID, mock.Anything).Return(true, nil)

	body, contentType := multipartFeedBody(t, "feed.csv", "data")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	runs.AssertExpectations(t)
}

func TestGetRunInvalidID(t *testing.T) {
	_, runs, _, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/imports/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	runs.AssertNotCalled(t, "GetRun")
}

func TestGetRunNotFound(t *testing.T) {
	_, runs, _, router := newTestHandler(t)

	runID := uuid.New()
	runs.On("GetRun", mock.Anything, runID).Return(nil, assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/imports/"+runID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRun(t *testing.T) {
	_, runs, _, router := newTestHandler(t)

	runID := uuid.New()
	runs.On("GetRun", mock.Anything, runID).
		Return(&models.ImportRun{ID: runID, Status: models.ImportRunStatusSucceeded}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/imports/"+runID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool             `json:"success"`
		Run     models.ImportRun `json:"run"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, runID, resp.Run.ID)
}

func TestListRunsClampsPagination(t *testing.T) {
	_, runs, _, router := newTestHandler(t)

	runs.On("ListRuns", mock.Anything, 1, 100).Return([]models.ImportRun{}, int64(0), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/imports?page=0&limit=999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	runs.AssertExpectations(t)
}

func TestListRunErrors(t *testing.T) {
	_, runs, _, router := newTestHandler(t)

	runID := uuid.New()
	field := "ManufacturerID"
	runs.On("ListRowErrors", mock.Anything, runID, 1, 20).Return([]models.ImportRowError{
		{ImportRunID: runID, RowNumber: 3, Field: &field, Message: "must be an integer"},
	}, int64(1), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/imports/"+runID.String()+"/errors", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Errors []models.ImportRowError `json:"errors"`
		Total  int64                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 3, resp.Errors[0].RowNumber)
	assert.Equal(t, int64(1), resp.Total)
}

func TestCancelRun(t *testing.T) {
	_, runs, _, router := newTestHandler(t)

	runID := uuid.New()
	runs.On("MarkFailedIfActive", mock.Anything, runID, CancelledByOperatorMessage).Return(true, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/imports/"+runID.String()+"/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Cancelled bool `json:"cancelled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Cancelled)
}

func TestCancelRunAlreadyTerminal(t *testing.T) {
	_, runs, _, router := newTestHandler(t)

	runID := uuid.New()
	runs.On("MarkFailedIfActive", mock.Anything, runID, CancelledByOperatorMessage).Return(false, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/imports/"+runID.String()+"/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Cancelled bool `json:"cancelled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Cancelled)
}

func TestGetFeedTemplateJSON(t *testing.T) {
	_, _, _, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/imports/template", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Template models.FeedTemplate `json:"template"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Template.Columns, len(models.FeedColumns()))
}

func TestGetFeedTemplateCSV(t *testing.T) {
	_, _, _, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/imports/template?format=csv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	line := strings.TrimSpace(w.Body.String())
	got := strings.Split(line, ",")
	require.Len(t, got, len(models.FeedColumns()))
	assert.Equal(t, "ItemID", got[0])
}
