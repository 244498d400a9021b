package importer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"github.com/nsoterop/asii-medical-sub000/internal/search"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize is the number of feed rows handed to one worker at a time
	DefaultChunkSize = 500
	// DefaultConcurrency is the size of the chunk worker pool
	DefaultConcurrency = 4
	// DefaultErrorBatchSize bounds the payload of one row-error insert
	DefaultErrorBatchSize = 200

	// MissingCategoryPathMessage is the advisory recorded for rows imported
	// without a category path
	MissingCategoryPathMessage = "Missing; set to Uncategorized"
)

// RunStore is the slice of the import-run storage layer the pipeline mutates
type RunStore interface {
	MarkRunning(ctx context.Context, runID uuid.UUID) error
	MarkSucceeded(ctx context.Context, runID uuid.UUID, stats models.ImportRunStats) error
	MarkFailed(ctx context.Context, runID uuid.UUID, message string) error
	CreateRowErrors(ctx context.Context, rowErrors []models.ImportRowError) error
}

// Options tunes the orchestrator. Zero values fall back to the defaults.
type Options struct {
	ChunkSize      int
	Concurrency    int
	ErrorBatchSize int
}

// Service owns the import run lifecycle: chunking, bounded-concurrency
// dispatch, error aggregation, category-tree materialization, stale-SKU
// deactivation and run-status transitions.
type Service struct {
	runs    RunStore
	catalog CatalogStore
	batcher *BatchUpserter
	indexer search.Indexer
	log     *logrus.Entry

	chunkSize      int
	concurrency    int
	errorBatchSize int
}

func NewService(runs RunStore, catalog CatalogStore, indexer search.Indexer, logger *logrus.Logger, opts Options) *Service {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ErrorBatchSize <= 0 {
		opts.ErrorBatchSize = DefaultErrorBatchSize
	}
	return &Service{
		runs:           runs,
		catalog:        catalog,
		batcher:        NewBatchUpserter(catalog, logger),
		indexer:        indexer,
		log:            logrus.NewEntry(logger).WithField("component", "import_orchestrator"),
		chunkSize:      opts.ChunkSize,
		concurrency:    opts.Concurrency,
		errorBatchSize: opts.ErrorBatchSize,
	}
}

// ProcessImport runs one import end to end and finalizes the run record.
// Row-level problems are recorded and survive; any step-level failure marks
// the run FAILED and is returned to the caller. Partial chunk writes are left
// in place on failure. On success a search reindex is triggered; a reindex
// failure is logged but cannot un-succeed the run.
func (s *Service) ProcessImport(ctx context.Context, runID uuid.UUID, filePath string) (*models.ImportSummary, error) {
	log := s.log.WithField("runId", runID)

	if err := s.runs.MarkRunning(ctx, runID); err != nil {
		return nil, fmt.Errorf("failed to mark run running: %w", err)
	}
	log.Info("import run started")

	summary, err := s.run(ctx, runID, filePath)
	if err != nil {
		log.WithError(err).Error("import run failed")
		if markErr := s.runs.MarkFailed(ctx, runID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("failed to record run failure")
		}
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"totalRows":   summary.TotalRows,
		"inserted":    summary.Inserted,
		"updated":     summary.Updated,
		"deactivated": summary.Deactivated,
		"errors":      summary.ErrorCount,
	}).Info("import run succeeded")

	if err := s.indexer.Reindex(ctx); err != nil {
		log.WithError(err).Warn("search reindex failed after successful import")
	}

	return summary, nil
}

// chunkOutcome collects one chunk's normalized results
type chunkOutcome struct {
	inserted  int
	updated   int
	pathNames []string
	errors    []RowError
}

func (s *Service) run(ctx context.Context, runID uuid.UUID, filePath string) (*models.ImportSummary, error) {
	records, err := ParseFeedFile(filePath)
	if err != nil {
		return nil, err
	}
	totalRows := len(records)

	chunks := chunkRecords(records, s.chunkSize)
	outcomes := make([]chunkOutcome, len(chunks))

	// Fixed pool of workers draining a shared chunk cursor. Each worker
	// writes only its own outcome slot, so no lock is needed beyond the
	// cursor itself.
	var cursor atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < s.concurrency; w++ {
		g.Go(func() error {
			for {
				idx := int(cursor.Add(1)) - 1
				if idx >= len(chunks) {
					return nil
				}
				outcome, err := s.processChunk(gctx, runID, chunks[idx])
				if err != nil {
					return err
				}
				outcomes[idx] = *outcome
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Aggregate in chunk order. Row numbers were fixed at parse time, so
	// the report is identical regardless of worker scheduling.
	var inserted, updated int
	var allErrors []RowError
	distinctPaths := make(map[string]bool)
	for _, outcome := range outcomes {
		inserted += outcome.inserted
		updated += outcome.updated
		allErrors = append(allErrors, outcome.errors...)
		for _, name := range outcome.pathNames {
			distinctPaths[name] = true
		}
	}

	if err := s.flushRowErrors(ctx, runID, allErrors); err != nil {
		return nil, err
	}

	if len(distinctPaths) > 0 {
		if err := s.materializeCategories(ctx, distinctPaths); err != nil {
			return nil, err
		}
	}

	// Deactivation strictly follows the worker join: every chunk has
	// stamped its last-seen marker by now.
	deactivated, err := s.catalog.DeactivateStaleSkus(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate stale skus: %w", err)
	}

	stats := models.ImportRunStats{
		TotalRows:   totalRows,
		Inserted:    inserted,
		Updated:     updated,
		Deactivated: int(deactivated),
		ErrorCount:  len(allErrors),
	}
	if err := s.runs.MarkSucceeded(ctx, runID, stats); err != nil {
		return nil, fmt.Errorf("failed to mark run succeeded: %w", err)
	}

	return &models.ImportSummary{
		TotalRows:   stats.TotalRows,
		Inserted:    stats.Inserted,
		Updated:     stats.Updated,
		Deactivated: stats.Deactivated,
		ErrorCount:  stats.ErrorCount,
	}, nil
}

// processChunk normalizes one chunk's rows and hands the valid ones to the
// batch upserter. Validation failures and category-path advisories become row
// errors; they never abort the chunk.
func (s *Service) processChunk(ctx context.Context, runID uuid.UUID, records []RawRecord) (*chunkOutcome, error) {
	outcome := &chunkOutcome{}
	valid := make([]*Row, 0, len(records))

	for _, rec := range records {
		row, rowErr := NormalizeRecord(rec)
		if rowErr != nil {
			outcome.errors = append(outcome.errors, *rowErr)
			continue
		}
		if row.MissingCategoryPath {
			outcome.errors = append(outcome.errors, RowError{
				LineNumber: row.LineNumber,
				Field:      "CategoryPathID",
				Message:    MissingCategoryPathMessage,
			})
		}
		valid = append(valid, row)
	}

	result, err := s.batcher.ProcessChunk(ctx, runID, valid)
	if err != nil {
		return nil, err
	}
	outcome.inserted = result.Inserted
	outcome.updated = result.Updated
	outcome.pathNames = result.CategoryPathNames
	outcome.errors = append(outcome.errors, result.Errors...)
	return outcome, nil
}

// flushRowErrors persists row errors in bounded batches so very large error
// counts do not blow up a single insert payload
func (s *Service) flushRowErrors(ctx context.Context, runID uuid.UUID, rowErrors []RowError) error {
	records := make([]models.ImportRowError, len(rowErrors))
	for i, rowErr := range rowErrors {
		records[i] = models.ImportRowError{
			ImportRunID: runID,
			RowNumber:   rowErr.LineNumber,
			Message:     rowErr.Message,
		}
		if rowErr.Field != "" {
			field := rowErr.Field
			records[i].Field = &field
		}
	}

	for start := 0; start < len(records); start += s.errorBatchSize {
		end := start + s.errorBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.runs.CreateRowErrors(ctx, records[start:end]); err != nil {
			return fmt.Errorf("failed to record row errors: %w", err)
		}
	}
	return nil
}

func (s *Service) materializeCategories(ctx context.Context, distinctPaths map[string]bool) error {
	paths := make([]string, 0, len(distinctPaths))
	for path := range distinctPaths {
		paths = append(paths, path)
	}

	nodes := ExpandCategoryPaths(paths)
	categories := make([]models.Category, len(nodes))
	for i, node := range nodes {
		categories[i] = models.Category{
			Path:       node.Path,
			Name:       node.Name,
			ParentPath: node.ParentPath,
			Depth:      node.Depth - 1, // stored depth is 0 at the root
		}
	}

	if err := s.catalog.InsertCategories(ctx, categories); err != nil {
		return fmt.Errorf("failed to materialize categories: %w", err)
	}
	if err := s.catalog.InvalidateCategoryTreeCache(ctx); err != nil {
		s.log.WithError(err).Warn("failed to invalidate category tree cache")
	}
	return nil
}

func chunkRecords(records []RawRecord, size int) [][]RawRecord {
	var chunks [][]RawRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
