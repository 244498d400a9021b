package models

import (
	"time"

	"github.com/google/uuid"
)

// ImportRunStatus represents the lifecycle state of an import run
type ImportRunStatus string

const (
	ImportRunStatusQueued    ImportRunStatus = "QUEUED"
	ImportRunStatusRunning   ImportRunStatus = "RUNNING"
	ImportRunStatusSucceeded ImportRunStatus = "SUCCEEDED"
	ImportRunStatusFailed    ImportRunStatus = "FAILED"
)

// ImportRun tracks one attempt at importing a supplier feed file
type ImportRun struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Status           ImportRunStatus `json:"status" gorm:"not null;default:'QUEUED';index"`
	OriginalFilename string          `json:"originalFilename" gorm:"not null"`
	StoredPath       string          `json:"-" gorm:"not null"`
	TotalRows        int             `json:"totalRows" gorm:"not null;default:0"`
	InsertedCount    int             `json:"insertedCount" gorm:"not null;default:0"`
	UpdatedCount     int             `json:"updatedCount" gorm:"not null;default:0"`
	DeactivatedCount int             `json:"deactivatedCount" gorm:"not null;default:0"`
	ErrorCount       int             `json:"errorCount" gorm:"not null;default:0"`
	LastError        *string         `json:"lastError,omitempty" gorm:"type:text"`
	CreatedAt        time.Time       `json:"createdAt"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	FinishedAt       *time.Time      `json:"finishedAt,omitempty"`
}

func (ImportRun) TableName() string {
	return "import_runs"
}

// IsTerminal reports whether the run has reached a final status
func (r *ImportRun) IsTerminal() bool {
	return r.Status == ImportRunStatusSucceeded || r.Status == ImportRunStatusFailed
}

// ImportRowError records one validation or write failure for a feed row.
// RowNumber is the physical line number in the feed file: the header is
// line 1, so the first data row reports as 2.
type ImportRowError struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ImportRunID uuid.UUID `json:"importRunId" gorm:"type:uuid;not null;index"`
	RowNumber   int       `json:"rowNumber" gorm:"not null"`
	Field       *string   `json:"field,omitempty"`
	Message     string    `json:"message" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (ImportRowError) TableName() string {
	return "import_row_errors"
}

// ImportSummary is the aggregate result returned by a completed run
type ImportSummary struct {
	TotalRows   int `json:"totalRows"`
	Inserted    int `json:"inserted"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	ErrorCount  int `json:"errorCount"`
}

// ImportRunStats carries the final counts recorded on a successful run
type ImportRunStats struct {
	TotalRows   int
	Inserted    int
	Updated     int
	Deactivated int
	ErrorCount  int
}

// FeedTemplateColumn defines a column in the feed template
type FeedTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number
	Example     string `json:"example"`
}

// FeedTemplate defines the structure of the supplier feed
type FeedTemplate struct {
	Entity  string               `json:"entity"`
	Version string               `json:"version"`
	Columns []FeedTemplateColumn `json:"columns"`
}

// FeedColumns returns the column definitions for the supplier feed. Every
// column must be present in the header row; most values are optional per row.
func FeedColumns() []FeedTemplateColumn {
	return []FeedTemplateColumn{
		{Name: "ItemID", Description: "Supplier item (SKU) number", Required: true, Type: "number", Example: "1004523"},
		{Name: "CategoryPathID", Description: "Category path identifier", Required: false, Type: "number", Example: "311"},
		{Name: "CategoryPathName", Description: "Category hierarchy, '>'-delimited", Required: false, Type: "string", Example: "Dental>Anesthetics>Topicals"},
		{Name: "ManufacturerID", Description: "Manufacturer identifier", Required: true, Type: "number", Example: "88"},
		{Name: "ManufacturerName", Description: "Manufacturer display name", Required: true, Type: "string", Example: "Septodont"},
		{Name: "ProductID", Description: "Product identifier", Required: true, Type: "number", Example: "50213"},
		{Name: "ProductName", Description: "Product display name", Required: true, Type: "string", Example: "Topical Anesthetic Gel"},
		{Name: "ProductDescription", Description: "Product long description", Required: false, Type: "string", Example: ""},
		{Name: "ItemDescription", Description: "Item-level description", Required: false, Type: "string", Example: "Gel 1oz Jar Mint"},
		{Name: "ItemImageURL", Description: "Item image URL", Required: false, Type: "string", Example: ""},
		{Name: "NDCItemCode", Description: "NDC item code", Required: false, Type: "string", Example: "0362-0600-10"},
		{Name: "Package", Description: "Package description", Required: false, Type: "string", Example: "Each"},
		{Name: "UnitPrice", Description: "Unit price", Required: false, Type: "number", Example: "12.95"},
		{Name: "PriceDescription", Description: "Price unit description", Required: false, Type: "string", Example: "EA"},
		{Name: "Availability", Description: "Availability text", Required: false, Type: "string", Example: "In Stock"},
		{Name: "PackingListDescription", Description: "Packing list description", Required: false, Type: "string", Example: ""},
		{Name: "UnitWeight", Description: "Unit weight", Required: false, Type: "number", Example: "0.35"},
		{Name: "UnitVolume", Description: "Unit volume", Required: false, Type: "number", Example: "0.02"},
		{Name: "UOMFactor", Description: "Unit-of-measure factor", Required: false, Type: "number", Example: "1"},
		{Name: "CountryOfOrigin", Description: "Country of origin", Required: false, Type: "string", Example: "FR"},
		{Name: "TariffCode", Description: "Harmonized tariff code", Required: false, Type: "string", Example: "3006.40.00"},
		{Name: "HazmatFlag", Description: "Hazmat indicator", Required: false, Type: "string", Example: "N"},
		{Name: "HazmatClass", Description: "Hazmat class code", Required: false, Type: "string", Example: ""},
		{Name: "PharmacyProductType", Description: "Pharmacy product type", Required: false, Type: "string", Example: ""},
		{Name: "NationalDrugCode", Description: "National drug code", Required: false, Type: "string", Example: ""},
		{Name: "RxOTCIndicator", Description: "Rx / OTC indicator", Required: false, Type: "string", Example: "OTC"},
		{Name: "BrandID", Description: "Brand identifier", Required: false, Type: "number", Example: ""},
		{Name: "BrandName", Description: "Brand display name", Required: false, Type: "string", Example: ""},
	}
}

// RequiredFeedHeaders returns the exact header set a feed file must carry
func RequiredFeedHeaders() []string {
	cols := FeedColumns()
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names
}

// CatalogFeedTemplate returns the template definition for the supplier feed
func CatalogFeedTemplate() FeedTemplate {
	return FeedTemplate{
		Entity:  "catalog-feed",
		Version: "1.0",
		Columns: FeedColumns(),
	}
}
