package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"gorm.io/gorm"
)

// ImportRunsRepository persists import runs and their row errors. Status
// transitions are conditional updates so a run can never record more than
// one terminal status.
type ImportRunsRepository struct {
	db *gorm.DB
}

func NewImportRunsRepository(db *gorm.DB) *ImportRunsRepository {
	return &ImportRunsRepository{db: db}
}

// CreateRun records an accepted feed file as a QUEUED run
func (r *ImportRunsRepository) CreateRun(ctx context.Context, originalFilename, storedPath string) (*models.ImportRun, error) {
	run := &models.ImportRun{
		ID:               uuid.New(),
		Status:           models.ImportRunStatusQueued,
		OriginalFilename: originalFilename,
		StoredPath:       storedPath,
		CreatedAt:        time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun fetches one run by id
func (r *ImportRunsRepository) GetRun(ctx context.Context, runID uuid.UUID) (*models.ImportRun, error) {
	var run models.ImportRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", runID).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs newest first with pagination
func (r *ImportRunsRepository) ListRuns(ctx context.Context, page, limit int) ([]models.ImportRun, int64, error) {
	var runs []models.ImportRun
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ImportRun{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// MarkRunning transitions a QUEUED run to RUNNING and stamps its start time
func (r *ImportRunsRepository) MarkRunning(ctx context.Context, runID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ? AND status = ?", runID, models.ImportRunStatusQueued).
		Updates(map[string]interface{}{
			"status":     models.ImportRunStatusRunning,
			"started_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("import run %s is not queued", runID)
	}
	return nil
}

// MarkSucceeded finalizes a RUNNING run with its aggregate counts
func (r *ImportRunsRepository) MarkSucceeded(ctx context.Context, runID uuid.UUID, stats models.ImportRunStats) error {
	result := r.db.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ? AND status = ?", runID, models.ImportRunStatusRunning).
		Updates(map[string]interface{}{
			"status":            models.ImportRunStatusSucceeded,
			"total_rows":        stats.TotalRows,
			"inserted_count":    stats.Inserted,
			"updated_count":     stats.Updated,
			"deactivated_count": stats.Deactivated,
			"error_count":       stats.ErrorCount,
			"finished_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("import run %s is not running", runID)
	}
	return nil
}

// MarkFailed finalizes a non-terminal run as FAILED with the triggering
// error message. Already-terminal runs are left untouched.
func (r *ImportRunsRepository) MarkFailed(ctx context.Context, runID uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ? AND status IN ?", runID, []models.ImportRunStatus{
			models.ImportRunStatusQueued,
			models.ImportRunStatusRunning,
		}).
		Updates(map[string]interface{}{
			"status":      models.ImportRunStatusFailed,
			"last_error":  message,
			"finished_at": time.Now().UTC(),
		}).Error
}

// MarkFailedIfActive is the operator escape hatch: force-fail a run that is
// still QUEUED or RUNNING. Returns false when the run was already terminal,
// which makes the operation idempotent.
func (r *ImportRunsRepository) MarkFailedIfActive(ctx context.Context, runID uuid.UUID, message string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ? AND status IN ?", runID, []models.ImportRunStatus{
			models.ImportRunStatusQueued,
			models.ImportRunStatusRunning,
		}).
		Updates(map[string]interface{}{
			"status":      models.ImportRunStatusFailed,
			"last_error":  message,
			"finished_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FailStaleRunning force-fails every RUNNING run started before the cutoff.
// Used by the startup reconciler to recover runs stranded by a crash.
func (r *ImportRunsRepository) FailStaleRunning(ctx context.Context, startedBefore time.Time, message string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.ImportRun{}).
		Where("status = ? AND started_at < ?", models.ImportRunStatusRunning, startedBefore).
		Updates(map[string]interface{}{
			"status":      models.ImportRunStatusFailed,
			"last_error":  message,
			"finished_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// CreateRowErrors appends a batch of row errors for a run
func (r *ImportRunsRepository) CreateRowErrors(ctx context.Context, rowErrors []models.ImportRowError) error {
	if len(rowErrors) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range rowErrors {
		if rowErrors[i].ID == uuid.Nil {
			rowErrors[i].ID = uuid.New()
		}
		rowErrors[i].CreatedAt = now
	}
	return r.db.WithContext(ctx).Create(&rowErrors).Error
}

// ListRowErrors returns a run's row errors ordered by row number, paginated
func (r *ImportRunsRepository) ListRowErrors(ctx context.Context, runID uuid.UUID, page, limit int) ([]models.ImportRowError, int64, error) {
	var rowErrors []models.ImportRowError
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ImportRowError{}).Where("import_run_id = ?", runID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("row_number ASC").Offset(offset).Limit(limit).Find(&rowErrors).Error; err != nil {
		return nil, 0, err
	}
	return rowErrors, total, nil
}
