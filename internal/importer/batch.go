package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxWriteAttempts bounds retries of a chunk's database step on
	// transient conflicts
	DefaultMaxWriteAttempts = 4
	// DefaultBackoffStep is multiplied by the attempt number between retries
	DefaultBackoffStep = 150 * time.Millisecond
)

// CatalogStore is the slice of the catalog storage layer the import pipeline
// writes through
type CatalogStore interface {
	UpsertManufacturers(ctx context.Context, manufacturers []models.Manufacturer) error
	UpsertCategoryPaths(ctx context.Context, paths []models.CategoryPath) error
	UpsertProducts(ctx context.Context, products []models.Product) error
	ExistingItemIDs(ctx context.Context, itemIDs []int64) (map[int64]bool, error)
	UpsertSkus(ctx context.Context, runID uuid.UUID, seenAt time.Time, skus []models.Sku) error
	InsertCategories(ctx context.Context, categories []models.Category) error
	DeactivateStaleSkus(ctx context.Context, runID uuid.UUID) (int64, error)
	InvalidateCategoryTreeCache(ctx context.Context) error
}

// ChunkResult reports what one chunk's database step accomplished
type ChunkResult struct {
	Inserted          int
	Updated           int
	CategoryPathNames []string
	Errors            []RowError
}

// BatchUpserter performs the idempotent writes for one chunk of normalized
// rows: manufacturers and category-path labels first, then products, then
// SKUs. The ordering guarantees every SKU references a product that already
// exists by the time the SKU write runs.
type BatchUpserter struct {
	store       CatalogStore
	log         *logrus.Entry
	maxAttempts int
	backoffStep time.Duration
	sleep       func(time.Duration)
}

func NewBatchUpserter(store CatalogStore, logger *logrus.Logger) *BatchUpserter {
	return &BatchUpserter{
		store:       store,
		log:         logrus.NewEntry(logger).WithField("component", "batch_upserter"),
		maxAttempts: DefaultMaxWriteAttempts,
		backoffStep: DefaultBackoffStep,
		sleep:       time.Sleep,
	}
}

// ProcessChunk writes one chunk and reports its counts and row-level errors.
// Concurrent chunks race on shared manufacturer/category-path keys, so
// transient lock and deadlock conflicts are expected: the whole database step
// is retried with linear backoff. A chunk that exhausts its retries, or hits
// a non-transient write error, turns every one of its rows into a row-level
// error instead of failing the run. Only context cancellation escalates.
func (b *BatchUpserter) ProcessChunk(ctx context.Context, runID uuid.UUID, rows []*Row) (*ChunkResult, error) {
	result := &ChunkResult{}
	if len(rows) == 0 {
		return result, nil
	}

	manufacturers, paths, products, skus := collectChunkEntities(rows)
	for _, p := range paths {
		result.CategoryPathNames = append(result.CategoryPathNames, p.Name)
	}

	var writeErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		inserted, updated, err := b.writeChunk(ctx, runID, manufacturers, paths, products, skus)
		if err == nil {
			result.Inserted = inserted
			result.Updated = updated
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		writeErr = err
		if !isTransientConflict(err) {
			b.log.WithError(err).WithField("runId", runID).Error("chunk write failed with non-transient error")
			break
		}
		b.log.WithError(err).WithFields(logrus.Fields{
			"runId":   runID,
			"attempt": attempt,
		}).Warn("transient write conflict, retrying chunk")
		if attempt < b.maxAttempts {
			b.sleep(b.backoffStep * time.Duration(attempt))
		}
	}

	// The chunk could not be written: demote every row to a row-level error
	// so the run can continue.
	for _, row := range rows {
		result.Errors = append(result.Errors, RowError{
			LineNumber: row.LineNumber,
			Message:    "chunk write failed: " + writeErr.Error(),
		})
	}
	return result, nil
}

func (b *BatchUpserter) writeChunk(
	ctx context.Context,
	runID uuid.UUID,
	manufacturers []models.Manufacturer,
	paths []models.CategoryPath,
	products []models.Product,
	skus []models.Sku,
) (inserted, updated int, err error) {
	if err := b.store.UpsertManufacturers(ctx, manufacturers); err != nil {
		return 0, 0, err
	}
	if err := b.store.UpsertCategoryPaths(ctx, paths); err != nil {
		return 0, 0, err
	}
	if err := b.store.UpsertProducts(ctx, products); err != nil {
		return 0, 0, err
	}

	// Inserted vs updated is decided by which item ids existed before the
	// SKU write. The read-then-write race with other chunks is acceptable:
	// the counts are informational.
	itemIDs := make([]int64, len(skus))
	for i, sku := range skus {
		itemIDs[i] = sku.ItemID
	}
	existing, err := b.store.ExistingItemIDs(ctx, itemIDs)
	if err != nil {
		return 0, 0, err
	}

	if err := b.store.UpsertSkus(ctx, runID, time.Now().UTC(), skus); err != nil {
		return 0, 0, err
	}

	for _, sku := range skus {
		if existing[sku.ItemID] {
			updated++
		} else {
			inserted++
		}
	}
	return inserted, updated, nil
}

// collectChunkEntities dedups the chunk's rows into entity slices. When a
// chunk mentions the same external id twice, the later row wins, matching
// the last-write-wins policy across chunks.
func collectChunkEntities(rows []*Row) ([]models.Manufacturer, []models.CategoryPath, []models.Product, []models.Sku) {
	manufacturerNames := make(map[int64]string)
	pathNames := make(map[int64]string)
	productsByID := make(map[int64]models.Product)
	skusByID := make(map[int64]models.Sku)

	var manufacturerOrder, pathOrder, productOrder, skuOrder []int64

	for _, row := range rows {
		if _, ok := manufacturerNames[row.ManufacturerID]; !ok {
			manufacturerOrder = append(manufacturerOrder, row.ManufacturerID)
		}
		manufacturerNames[row.ManufacturerID] = row.ManufacturerName

		if row.CategoryPathID != nil && row.CategoryPathName != nil {
			if _, ok := pathNames[*row.CategoryPathID]; !ok {
				pathOrder = append(pathOrder, *row.CategoryPathID)
			}
			pathNames[*row.CategoryPathID] = *row.CategoryPathName
		}

		if _, ok := productsByID[row.ProductID]; !ok {
			productOrder = append(productOrder, row.ProductID)
		}
		manufacturerID := row.ManufacturerID
		productsByID[row.ProductID] = models.Product{
			ExternalID:     row.ProductID,
			Name:           row.ProductName,
			Description:    row.ProductDescription,
			ManufacturerID: &manufacturerID,
			CategoryPathID: row.CategoryPathID,
		}

		if _, ok := skusByID[row.ItemID]; !ok {
			skuOrder = append(skuOrder, row.ItemID)
		}
		skusByID[row.ItemID] = models.Sku{
			ItemID:                 row.ItemID,
			ProductID:              row.ProductID,
			ItemDescription:        row.ItemDescription,
			ItemImageURL:           row.ItemImageURL,
			NDCItemCode:            row.NDCItemCode,
			Package:                row.Package,
			UnitPrice:              row.UnitPrice,
			PriceDescription:       row.PriceDescription,
			Availability:           row.Availability,
			PackingListDescription: row.PackingListDescription,
			UnitWeight:             row.UnitWeight,
			UnitVolume:             row.UnitVolume,
			UOMFactor:              row.UOMFactor,
			CountryOfOrigin:        row.CountryOfOrigin,
			TariffCode:             row.TariffCode,
			HazmatFlag:             row.HazmatFlag,
			HazmatClass:            row.HazmatClass,
			PharmacyProductType:    row.PharmacyProductType,
			NationalDrugCode:       row.NationalDrugCode,
			RxOTCIndicator:         row.RxOTCIndicator,
			BrandID:                row.BrandID,
			BrandName:              row.BrandName,
			IsActive:               true,
		}
	}

	manufacturers := make([]models.Manufacturer, 0, len(manufacturerOrder))
	for _, id := range manufacturerOrder {
		manufacturers = append(manufacturers, models.Manufacturer{ExternalID: id, Name: manufacturerNames[id]})
	}
	paths := make([]models.CategoryPath, 0, len(pathOrder))
	for _, id := range pathOrder {
		paths = append(paths, models.CategoryPath{ExternalID: id, Name: pathNames[id]})
	}
	products := make([]models.Product, 0, len(productOrder))
	for _, id := range productOrder {
		products = append(products, productsByID[id])
	}
	skus := make([]models.Sku, 0, len(skuOrder))
	for _, id := range skuOrder {
		skus = append(skus, skusByID[id])
	}
	return manufacturers, paths, products, skus
}

// Postgres SQLSTATEs for serialization failure, deadlock and lock-not-available
var transientSQLStates = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
}

// isTransientConflict classifies lock/deadlock-class write conflicts that are
// worth retrying. Everything else fails the chunk immediately.
func isTransientConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientSQLStates[pgErr.Code]
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") || strings.Contains(msg, "could not serialize")
}
