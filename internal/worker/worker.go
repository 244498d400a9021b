package worker

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// Job asks the worker to process one stored feed file
type Job struct {
	RunID    uuid.UUID
	FilePath string
}

// Pipeline is the import entry point the worker drives
type Pipeline interface {
	ProcessImport(ctx context.Context, runID uuid.UUID, filePath string) (*models.ImportSummary, error)
}

// RunFailer lets the worker make sure a run ends up FAILED when the pipeline
// errored before finalizing the record itself
type RunFailer interface {
	MarkFailedIfActive(ctx context.Context, runID uuid.UUID, message string) (bool, error)
}

// ErrQueueFull is returned when the job queue cannot take another import
var ErrQueueFull = errors.New("import queue is full")

// Worker consumes queued import jobs one at a time and invokes the pipeline.
// Only one import is processed at a time; concurrency lives inside the
// pipeline's chunk pool, not here.
type Worker struct {
	jobs     chan Job
	pipeline Pipeline
	runs     RunFailer
	log      *logrus.Entry
}

func New(pipeline Pipeline, runs RunFailer, queueDepth int, logger *logrus.Logger) *Worker {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	return &Worker{
		jobs:     make(chan Job, queueDepth),
		pipeline: pipeline,
		runs:     runs,
		log:      logrus.NewEntry(logger).WithField("component", "import_worker"),
	}
}

// Enqueue hands a job to the worker without blocking
func (w *Worker) Enqueue(job Job) error {
	select {
	case w.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the consume loop until the context is cancelled
func (w *Worker) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-w.jobs:
				w.process(ctx, job)
			}
		}
	}()
}

func (w *Worker) process(ctx context.Context, job Job) {
	log := w.log.WithField("runId", job.RunID)

	// The uploaded file is removed whether the run succeeds or fails; the
	// pipeline itself never deletes it.
	defer func() {
		if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("failed to remove processed feed file")
		}
	}()

	if _, err := w.pipeline.ProcessImport(ctx, job.RunID, job.FilePath); err != nil {
		// The orchestrator normally records the failure itself; this is the
		// caller-side guarantee for errors raised before it could.
		if _, markErr := w.runs.MarkFailedIfActive(ctx, job.RunID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("failed to finalize failed run")
		}
		log.WithError(err).Error("import job failed")
	}
}
