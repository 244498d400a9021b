package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Row is a fully-typed, validated feed row
type Row struct {
	LineNumber int

	ItemID           int64
	ProductID        int64
	ManufacturerID   int64
	ManufacturerName string
	ProductName      string

	ProductDescription *string
	CategoryPathID     *int64
	CategoryPathName   *string

	// MissingCategoryPath marks a row accepted without a category path; the
	// orchestrator records an advisory error but still writes the row.
	MissingCategoryPath bool

	ItemDescription        *string
	ItemImageURL           *string
	NDCItemCode            *string
	Package                *string
	UnitPrice              *decimal.Decimal
	PriceDescription       *string
	Availability           *string
	PackingListDescription *string
	UnitWeight             *decimal.Decimal
	UnitVolume             *decimal.Decimal
	UOMFactor              *int
	CountryOfOrigin        *string
	TariffCode             *string
	HazmatFlag             *string
	HazmatClass            *string
	PharmacyProductType    *string
	NationalDrugCode       *string
	RxOTCIndicator         *string
	BrandID                *int64
	BrandName              *string
}

// RowError is a row-level failure or advisory. It is recorded against the
// run and never propagates as a Go error.
type RowError struct {
	LineNumber int
	Field      string
	Message    string
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d, field %s: %s", e.LineNumber, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.LineNumber, e.Message)
}

// NormalizeRecord converts one raw record into a typed row, or fails with a
// RowError naming the offending field. A failed row is excluded from all
// further processing; nothing about it is partially written.
func NormalizeRecord(rec RawRecord) (*Row, *RowError) {
	row := &Row{LineNumber: rec.LineNumber}

	var err *RowError
	if row.ItemID, err = requiredInt(rec, "ItemID"); err != nil {
		return nil, err
	}
	if row.ProductID, err = requiredInt(rec, "ProductID"); err != nil {
		return nil, err
	}
	if row.ManufacturerID, err = requiredInt(rec, "ManufacturerID"); err != nil {
		return nil, err
	}
	if row.ManufacturerName, err = requiredString(rec, "ManufacturerName"); err != nil {
		return nil, err
	}
	if row.ProductName, err = requiredString(rec, "ProductName"); err != nil {
		return nil, err
	}

	// A category path id without its name is an error; no id at all is
	// accepted and flagged for the advisory.
	row.CategoryPathID = optionalInt64(rec.Values["CategoryPathID"])
	if row.CategoryPathID != nil {
		name := optionalString(rec.Values["CategoryPathName"])
		if name == nil {
			return nil, &RowError{
				LineNumber: rec.LineNumber,
				Field:      "CategoryPathName",
				Message:    "CategoryPathName is required when CategoryPathID is present",
			}
		}
		row.CategoryPathName = name
	} else {
		row.MissingCategoryPath = true
	}

	if raw := rec.Values["UnitPrice"]; strings.TrimSpace(raw) != "" {
		price, perr := decimal.NewFromString(strings.TrimSpace(raw))
		if perr != nil {
			return nil, &RowError{
				LineNumber: rec.LineNumber,
				Field:      "UnitPrice",
				Message:    fmt.Sprintf("UnitPrice %q is not a valid decimal number", raw),
			}
		}
		row.UnitPrice = &price
	}

	row.ProductDescription = optionalString(rec.Values["ProductDescription"])
	row.ItemDescription = optionalString(rec.Values["ItemDescription"])
	row.ItemImageURL = optionalString(rec.Values["ItemImageURL"])
	row.NDCItemCode = optionalString(rec.Values["NDCItemCode"])
	row.Package = optionalString(rec.Values["Package"])
	row.PriceDescription = optionalString(rec.Values["PriceDescription"])
	row.Availability = optionalString(rec.Values["Availability"])
	row.PackingListDescription = optionalString(rec.Values["PackingListDescription"])
	row.UnitWeight = optionalDecimal(rec.Values["UnitWeight"])
	row.UnitVolume = optionalDecimal(rec.Values["UnitVolume"])
	row.UOMFactor = optionalInt(rec.Values["UOMFactor"])
	row.CountryOfOrigin = optionalString(rec.Values["CountryOfOrigin"])
	row.TariffCode = optionalString(rec.Values["TariffCode"])
	row.HazmatFlag = optionalString(rec.Values["HazmatFlag"])
	row.HazmatClass = optionalString(rec.Values["HazmatClass"])
	row.PharmacyProductType = optionalString(rec.Values["PharmacyProductType"])
	row.NationalDrugCode = optionalString(rec.Values["NationalDrugCode"])
	row.RxOTCIndicator = optionalString(rec.Values["RxOTCIndicator"])
	row.BrandID = optionalInt64(rec.Values["BrandID"])
	row.BrandName = optionalString(rec.Values["BrandName"])

	return row, nil
}

func requiredInt(rec RawRecord, field string) (int64, *RowError) {
	raw := strings.TrimSpace(rec.Values[field])
	if raw == "" {
		return 0, &RowError{LineNumber: rec.LineNumber, Field: field, Message: field + " is required"}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &RowError{
			LineNumber: rec.LineNumber,
			Field:      field,
			Message:    fmt.Sprintf("%s %q is not a valid integer", field, raw),
		}
	}
	return n, nil
}

func requiredString(rec RawRecord, field string) (string, *RowError) {
	raw := strings.TrimSpace(rec.Values[field])
	if raw == "" {
		return "", &RowError{LineNumber: rec.LineNumber, Field: field, Message: field + " is required"}
	}
	return raw, nil
}

// optionalString returns nil for blank or whitespace-only values
func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalInt64(value string) *int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return &n
	}
	return nil
}

func optionalInt(value string) *int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return &n
	}
	return nil
}

func optionalDecimal(value string) *decimal.Decimal {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if d, err := decimal.NewFromString(trimmed); err == nil {
		return &d
	}
	return nil
}
