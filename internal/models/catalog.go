package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Manufacturer is keyed by the supplier's external manufacturer id. The name
// is overwritten on every import that mentions it.
type Manufacturer struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ExternalID int64     `json:"externalId" gorm:"not null;uniqueIndex"`
	Name       string    `json:"name" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Manufacturer) TableName() string {
	return "manufacturers"
}

// CategoryPath is the leaf category label exactly as the feed gives it,
// distinct from the materialized Category tree.
type CategoryPath struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ExternalID int64     `json:"externalId" gorm:"not null;uniqueIndex"`
	Name       string    `json:"name" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (CategoryPath) TableName() string {
	return "category_paths"
}

// Category is a materialized tree node identified by its '>'-joined path.
// Depth is 0 at the root; ParentPath is nil at the root. Imports only ever
// add nodes, never remove them.
type Category struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Path       string    `json:"path" gorm:"not null;uniqueIndex"`
	Name       string    `json:"name" gorm:"not null"`
	ParentPath *string   `json:"parentPath,omitempty" gorm:"index"`
	Depth      int       `json:"depth" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Category) TableName() string {
	return "categories"
}

// Product is keyed by the supplier's external product id
type Product struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ExternalID     int64     `json:"externalId" gorm:"not null;uniqueIndex"`
	Name           string    `json:"name" gorm:"not null"`
	Description    *string   `json:"description,omitempty" gorm:"type:text"`
	ManufacturerID *int64    `json:"manufacturerId,omitempty" gorm:"index"`
	CategoryPathID *int64    `json:"categoryPathId,omitempty" gorm:"index"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}

// Sku is one orderable item. ItemID is the supplier's item number. IsActive
// flips to false when a later import no longer mentions the item;
// LastSeenImportRunID records which run last saw it.
type Sku struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ItemID    int64     `json:"itemId" gorm:"not null;uniqueIndex"`
	ProductID int64     `json:"productId" gorm:"not null;index"`

	ItemDescription        *string          `json:"itemDescription,omitempty" gorm:"type:text"`
	ItemImageURL           *string          `json:"itemImageUrl,omitempty"`
	NDCItemCode            *string          `json:"ndcItemCode,omitempty"`
	Package                *string          `json:"package,omitempty"`
	UnitPrice              *decimal.Decimal `json:"unitPrice,omitempty" gorm:"type:numeric(14,4)"`
	PriceDescription       *string          `json:"priceDescription,omitempty"`
	Availability           *string          `json:"availability,omitempty"`
	PackingListDescription *string          `json:"packingListDescription,omitempty"`
	UnitWeight             *decimal.Decimal `json:"unitWeight,omitempty" gorm:"type:numeric(14,4)"`
	UnitVolume             *decimal.Decimal `json:"unitVolume,omitempty" gorm:"type:numeric(14,4)"`
	UOMFactor              *int             `json:"uomFactor,omitempty"`
	CountryOfOrigin        *string          `json:"countryOfOrigin,omitempty"`
	TariffCode             *string          `json:"tariffCode,omitempty"`
	HazmatFlag             *string          `json:"hazmatFlag,omitempty"`
	HazmatClass            *string          `json:"hazmatClass,omitempty"`
	PharmacyProductType    *string          `json:"pharmacyProductType,omitempty"`
	NationalDrugCode       *string          `json:"nationalDrugCode,omitempty"`
	RxOTCIndicator         *string          `json:"rxOtcIndicator,omitempty"`
	BrandID                *int64           `json:"brandId,omitempty"`
	BrandName              *string          `json:"brandName,omitempty"`

	IsActive            bool       `json:"isActive" gorm:"not null;default:true;index"`
	LastSeenImportRunID *uuid.UUID `json:"lastSeenImportRunId,omitempty" gorm:"type:uuid;index"`
	LastSeenAt          *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func (Sku) TableName() string {
	return "skus"
}

// Error is the error payload shape returned by the API
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}
