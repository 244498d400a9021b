package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"github.com/nsoterop/asii-medical-sub000/internal/worker"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// CancelledByOperatorMessage is recorded when an operator force-fails a run
const CancelledByOperatorMessage = "import cancelled by operator"

// RunStore is the slice of the run repository the HTTP surface needs
type RunStore interface {
	CreateRun(ctx context.Context, originalFilename, storedPath string) (*models.ImportRun, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*models.ImportRun, error)
	ListRuns(ctx context.Context, page, limit int) ([]models.ImportRun, int64, error)
	ListRowErrors(ctx context.Context, runID uuid.UUID, page, limit int) ([]models.ImportRowError, int64, error)
	MarkFailedIfActive(ctx context.Context, runID uuid.UUID, message string) (bool, error)
}

// FeedQueue hands accepted feed files to the background worker
type FeedQueue interface {
	Enqueue(job worker.Job) error
}

type ImportHandler struct {
	runs            RunStore
	worker          FeedQueue
	uploadDir       string
	defaultPageSize int
	maxPageSize     int
	log             *logrus.Entry
}

func NewImportHandler(runs RunStore, wkr FeedQueue, uploadDir string, defaultPageSize, maxPageSize int, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		runs:            runs,
		worker:          wkr,
		uploadDir:       uploadDir,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             logrus.NewEntry(logger).WithField("component", "import_handler"),
	}
}

// UploadFeed accepts a supplier feed file and queues an import run
// POST /api/v1/catalog/imports
func (h *ImportHandler) UploadFeed(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_REQUIRED",
				Message: "Please upload a supplier feed file",
			},
		})
		return
	}
	defer file.Close()

	storedPath := filepath.Join(h.uploadDir, uuid.New().String()+".feed")
	out, err := createStoredFile(storedPath, file)
	if err != nil {
		h.log.WithError(err).Error("failed to store uploaded feed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "STORE_FAILED",
				Message: "Failed to store uploaded file",
			},
		})
		return
	}

	run, err := h.runs.CreateRun(c.Request.Context(), header.Filename, out)
	if err != nil {
		h.log.WithError(err).Error("failed to create import run")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to create import run",
			},
		})
		return
	}

	if err := h.worker.Enqueue(worker.Job{RunID: run.ID, FilePath: out}); err != nil {
		_, _ = h.runs.MarkFailedIfActive(c.Request.Context(), run.ID, err.Error())
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "QUEUE_FULL",
				Message: "Import queue is full, try again later",
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"run":     run,
	})
}

// ListRuns returns import runs newest first
// GET /api/v1/catalog/imports
func (h *ImportHandler) ListRuns(c *gin.Context) {
	page, limit := h.pagination(c)

	runs, total, err := h.runs.ListRuns(c.Request.Context(), page, limit)
	if err != nil {
		h.log.WithError(err).Error("failed to list import runs")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "DB_ERROR", Message: "Failed to list import runs"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"runs":    runs,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// GetRun returns one import run
// GET /api/v1/catalog/imports/:id
func (h *ImportHandler) GetRun(c *gin.Context) {
	runID, ok := h.runID(c)
	if !ok {
		return
	}

	run, err := h.runs.GetRun(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "NOT_FOUND", Message: "Import run not found"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "run": run})
}

// ListRunErrors returns a run's row errors ordered by row number
// GET /api/v1/catalog/imports/:id/errors
func (h *ImportHandler) ListRunErrors(c *gin.Context) {
	runID, ok := h.runID(c)
	if !ok {
		return
	}
	page, limit := h.pagination(c)

	rowErrors, total, err := h.runs.ListRowErrors(c.Request.Context(), runID, page, limit)
	if err != nil {
		h.log.WithError(err).Error("failed to list row errors")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "DB_ERROR", Message: "Failed to list row errors"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"errors":  rowErrors,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// CancelRun force-fails a run that is still queued or running. Cancelling an
// already-terminal run is a no-op and reports cancelled=false.
// POST /api/v1/catalog/imports/:id/cancel
func (h *ImportHandler) CancelRun(c *gin.Context) {
	runID, ok := h.runID(c)
	if !ok {
		return
	}

	cancelled, err := h.runs.MarkFailedIfActive(c.Request.Context(), runID, CancelledByOperatorMessage)
	if err != nil {
		h.log.WithError(err).Error("failed to cancel import run")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "DB_ERROR", Message: "Failed to cancel import run"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "cancelled": cancelled})
}

// GetFeedTemplate returns the feed template definition or file
// GET /api/v1/catalog/imports/template
func (h *ImportHandler) GetFeedTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	template := models.CatalogFeedTemplate()

	switch format {
	case "csv":
		h.writeCSVTemplate(c, template)
	case "xlsx":
		h.writeXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

func (h *ImportHandler) writeCSVTemplate(c *gin.Context, template models.FeedTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=catalog_feed_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

func (h *ImportHandler) writeXLSXTemplate(c *gin.Context, template models.FeedTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Feed"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col.Name)
		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 22)
	}

	f.NewSheet("Columns")
	f.SetCellValue("Columns", "A1", "Column")
	f.SetCellValue("Columns", "B1", "Description")
	f.SetCellValue("Columns", "C1", "Required")
	f.SetCellValue("Columns", "D1", "Type")
	f.SetCellValue("Columns", "E1", "Example")
	for i, col := range template.Columns {
		row := i + 2
		f.SetCellValue("Columns", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Columns", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional per row"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Columns", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Columns", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Columns", fmt.Sprintf("E%d", row), col.Example)
	}
	f.SetColWidth("Columns", "A", "A", 25)
	f.SetColWidth("Columns", "B", "B", 50)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=catalog_feed_template.xlsx")
	f.Write(c.Writer)
}

func (h *ImportHandler) runID(c *gin.Context) (uuid.UUID, bool) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "INVALID_ID", Message: "Import run id must be a UUID"},
		})
		return uuid.Nil, false
	}
	return runID, true
}

// createStoredFile copies the uploaded feed to its stored path
func createStoredFile(path string, src io.Reader) (string, error) {
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (h *ImportHandler) pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.defaultPageSize)))
	if limit < 1 {
		limit = h.defaultPageSize
	}
	if limit > h.maxPageSize {
		limit = h.maxPageSize
	}
	return page, limit
}
