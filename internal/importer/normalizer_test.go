package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRecord(line int, cells map[string]string) RawRecord {
	return RawRecord{LineNumber: line, Values: cells}
}

func validRecordCells() map[string]string {
	return map[string]string{
		"ItemID":           "1004523",
		"ProductID":        "50213",
		"ProductName":      "Topical Anesthetic Gel",
		"ManufacturerID":   "88",
		"ManufacturerName": "Septodont",
		"CategoryPathID":   "311",
		"CategoryPathName": "Dental>Anesthetics>Topicals",
	}
}

func TestNormalizeRecordValidRow(t *testing.T) {
	cells := validRecordCells()
	cells["UnitPrice"] = "12.95"
	cells["ItemDescription"] = "Gel 1oz Jar Mint"
	cells["UOMFactor"] = "6"
	cells["BrandID"] = "42"

	row, rowErr := NormalizeRecord(rawRecord(2, cells))
	require.Nil(t, rowErr)

	assert.Equal(t, 2, row.LineNumber)
	assert.Equal(t, int64(1004523), row.ItemID)
	assert.Equal(t, int64(50213), row.ProductID)
	assert.Equal(t, int64(88), row.ManufacturerID)
	assert.Equal(t, "Septodont", row.ManufacturerName)
	assert.Equal(t, "Topical Anesthetic Gel", row.ProductName)
	require.NotNil(t, row.CategoryPathID)
	assert.Equal(t, int64(311), *row.CategoryPathID)
	require.NotNil(t, row.CategoryPathName)
	assert.Equal(t, "Dental>Anesthetics>Topicals", *row.CategoryPathName)
	assert.False(t, row.MissingCategoryPath)

	require.NotNil(t, row.UnitPrice)
	assert.Equal(t, "12.95", row.UnitPrice.String())
	require.NotNil(t, row.UOMFactor)
	assert.Equal(t, 6, *row.UOMFactor)
	require.NotNil(t, row.BrandID)
	assert.Equal(t, int64(42), *row.BrandID)
	require.NotNil(t, row.ItemDescription)
	assert.Equal(t, "Gel 1oz Jar Mint", *row.ItemDescription)
}

func TestNormalizeRecordRequiredIntegerFields(t *testing.T) {
	for _, field := range []string{"ItemID", "ProductID", "ManufacturerID"} {
		t.Run(field+" blank", func(t *testing.T) {
			cells := validRecordCells()
			cells[field] = ""
			row, rowErr := NormalizeRecord(rawRecord(3, cells))
			assert.Nil(t, row)
			require.NotNil(t, rowErr)
			assert.Equal(t, field, rowErr.Field)
			assert.Equal(t, 3, rowErr.LineNumber)
		})
		t.Run(field+" non-numeric", func(t *testing.T) {
			cells := validRecordCells()
			cells[field] = "abc"
			row, rowErr := NormalizeRecord(rawRecord(3, cells))
			assert.Nil(t, row)
			require.NotNil(t, rowErr)
			assert.Equal(t, field, rowErr.Field)
			assert.Contains(t, rowErr.Message, "abc")
		})
	}
}

func TestNormalizeRecordRequiredStringFields(t *testing.T) {
	for _, field := range []string{"ManufacturerName", "ProductName"} {
		t.Run(field, func(t *testing.T) {
			cells := validRecordCells()
			cells[field] = "   "
			row, rowErr := NormalizeRecord(rawRecord(4, cells))
			assert.Nil(t, row)
			require.NotNil(t, rowErr)
			assert.Equal(t, field, rowErr.Field)
		})
	}
}

func TestNormalizeRecordCategoryPathIDRequiresName(t *testing.T) {
	cells := validRecordCells()
	cells["CategoryPathName"] = ""

	row, rowErr := NormalizeRecord(rawRecord(5, cells))
	assert.Nil(t, row)
	require.NotNil(t, rowErr)
	assert.Equal(t, "CategoryPathName", rowErr.Field)
}

func TestNormalizeRecordMissingCategoryPathIsAcceptedAndFlagged(t *testing.T) {
	cells := validRecordCells()
	cells["CategoryPathID"] = ""
	cells["CategoryPathName"] = ""

	row, rowErr := NormalizeRecord(rawRecord(6, cells))
	require.Nil(t, rowErr)
	assert.True(t, row.MissingCategoryPath)
	assert.Nil(t, row.CategoryPathID)
	assert.Nil(t, row.CategoryPathName)
}

func TestNormalizeRecordInvalidUnitPrice(t *testing.T) {
	cells := validRecordCells()
	cells["UnitPrice"] = "12,95"

	row, rowErr := NormalizeRecord(rawRecord(7, cells))
	assert.Nil(t, row)
	require.NotNil(t, rowErr)
	assert.Equal(t, "UnitPrice", rowErr.Field)
}

func TestNormalizeRecordBlankOptionalsNormalizeToAbsent(t *testing.T) {
	cells := validRecordCells()
	cells["ItemDescription"] = "   "
	cells["UnitPrice"] = ""
	cells["CountryOfOrigin"] = ""

	row, rowErr := NormalizeRecord(rawRecord(8, cells))
	require.Nil(t, rowErr)
	assert.Nil(t, row.ItemDescription)
	assert.Nil(t, row.UnitPrice)
	assert.Nil(t, row.CountryOfOrigin)
}

func TestNormalizeRecordLenientOptionalNumerics(t *testing.T) {
	// Optional numeric fields coerce silently; only the required integers
	// and UnitPrice are strict
	cells := validRecordCells()
	cells["UOMFactor"] = "six"
	cells["BrandID"] = "not-a-number"
	cells["UnitWeight"] = "heavy"

	row, rowErr := NormalizeRecord(rawRecord(9, cells))
	require.Nil(t, rowErr)
	assert.Nil(t, row.UOMFactor)
	assert.Nil(t, row.BrandID)
	assert.Nil(t, row.UnitWeight)
}
