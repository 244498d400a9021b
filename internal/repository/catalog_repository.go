package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	categoryTreeCacheKey = "catalog:categories:tree"
	categoryTreeCacheTTL = 30 * time.Minute // categories rarely change outside imports
)

// CatalogRepository persists the catalog entities the import pipeline writes:
// manufacturers, category-path labels, the materialized category tree,
// products and SKUs
type CatalogRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCatalogRepository(db *gorm.DB, redisClient *redis.Client) *CatalogRepository {
	return &CatalogRepository{db: db, redis: redisClient}
}

// UpsertManufacturers writes manufacturers keyed by external id; the display
// name is overwritten on conflict
func (r *CatalogRepository) UpsertManufacturers(ctx context.Context, manufacturers []models.Manufacturer) error {
	if len(manufacturers) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range manufacturers {
		manufacturers[i].CreatedAt = now
		manufacturers[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&manufacturers).Error
}

// UpsertCategoryPaths writes feed category-path labels keyed by external id
func (r *CatalogRepository) UpsertCategoryPaths(ctx context.Context, paths []models.CategoryPath) error {
	if len(paths) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range paths {
		paths[i].CreatedAt = now
		paths[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&paths).Error
}

// UpsertProducts writes products keyed by external id
func (r *CatalogRepository) UpsertProducts(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range products {
		products[i].CreatedAt = now
		products[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "manufacturer_id", "category_path_id", "updated_at",
		}),
	}).Create(&products).Error
}

// ExistingItemIDs reports which of the given item ids already have a SKU row
func (r *CatalogRepository) ExistingItemIDs(ctx context.Context, itemIDs []int64) (map[int64]bool, error) {
	existing := make(map[int64]bool, len(itemIDs))
	if len(itemIDs) == 0 {
		return existing, nil
	}
	var found []int64
	if err := r.db.WithContext(ctx).Model(&models.Sku{}).
		Where("item_id IN ?", itemIDs).
		Pluck("item_id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

// UpsertSkus writes SKUs keyed by item id. Every row, insert or update, is
// stamped active with the current run id and timestamp; the stamp is what the
// stale-deactivation pass keys off.
func (r *CatalogRepository) UpsertSkus(ctx context.Context, runID uuid.UUID, seenAt time.Time, skus []models.Sku) error {
	if len(skus) == 0 {
		return nil
	}
	for i := range skus {
		skus[i].IsActive = true
		skus[i].LastSeenImportRunID = &runID
		skus[i].LastSeenAt = &seenAt
		skus[i].CreatedAt = seenAt
		skus[i].UpdatedAt = seenAt
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id", "item_description", "item_image_url", "ndc_item_code",
			"package", "unit_price", "price_description", "availability",
			"packing_list_description", "unit_weight", "unit_volume", "uom_factor",
			"country_of_origin", "tariff_code", "hazmat_flag", "hazmat_class",
			"pharmacy_product_type", "national_drug_code", "rx_otc_indicator",
			"brand_id", "brand_name", "is_active", "last_seen_import_run_id",
			"last_seen_at", "updated_at",
		}),
	}).Create(&skus).Error
}

// InsertCategories materializes category tree nodes, skipping ones that
// already exist. Nodes are never removed by an import.
func (r *CatalogRepository) InsertCategories(ctx context.Context, categories []models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range categories {
		categories[i].CreatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoNothing: true,
	}).Create(&categories).Error
}

// DeactivateStaleSkus flips every active SKU not stamped by the given run.
// Anything the current feed did not mention is considered gone from the
// supplier's offering.
// TODO: scope deactivation by supplier once multi-supplier feeds land.
func (r *CatalogRepository) DeactivateStaleSkus(ctx context.Context, runID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Sku{}).
		Where("is_active = ? AND (last_seen_import_run_id IS NULL OR last_seen_import_run_id <> ?)", true, runID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// GetCategoryTree returns all materialized category nodes ordered by path,
// cached in Redis between imports
func (r *CatalogRepository) GetCategoryTree(ctx context.Context) ([]models.Category, error) {
	if r.redis != nil {
		if val, err := r.redis.Get(ctx, categoryTreeCacheKey).Result(); err == nil {
			var cached []models.Category
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		}
	}

	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("path ASC").Find(&categories).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(categories); err == nil {
			r.redis.Set(ctx, categoryTreeCacheKey, data, categoryTreeCacheTTL)
		}
	}
	return categories, nil
}

// InvalidateCategoryTreeCache drops the cached category tree after an import
// materializes new nodes
func (r *CatalogRepository) InvalidateCategoryTreeCache(ctx context.Context) error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Del(ctx, categoryTreeCacheKey).Err()
}
