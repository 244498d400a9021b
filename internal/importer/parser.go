package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"golang.org/x/text/encoding/charmap"
)

// RawRecord is one data row of the feed, keyed by header name. LineNumber is
// the physical line in the file; the header occupies line 1, so the first
// data record carries LineNumber 2.
type RawRecord struct {
	LineNumber int
	Values     map[string]string
}

// MissingHeadersError rejects a feed file whose header row lacks one or more
// required columns. The whole file is refused before any row is processed.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return fmt.Sprintf("feed file is missing required headers: %s", strings.Join(e.Missing, ", "))
}

// ParseFeedFile decodes a supplier feed file into ordered data records.
//
// Supplier exports are Windows-1252, not UTF-8; the decode step must stay or
// accented manufacturer and product names corrupt silently. Rows with fewer
// or more columns than the header are tolerated; a missing required header
// rejects the file as a whole.
func ParseFeedFile(path string) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file: %w", err)
	}
	defer f.Close()

	return parseFeed(f)
}

func parseFeed(r io.Reader) ([]RawRecord, error) {
	reader := csv.NewReader(charmap.Windows1252.NewDecoder().Reader(r))
	reader.FieldsPerRecord = -1 // ragged rows are tolerated

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read feed header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	if missing := missingHeaders(headers); len(missing) > 0 {
		return nil, &MissingHeadersError{Missing: missing}
	}

	var records []RawRecord
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error reading feed line %d: %w", line, err)
		}

		values := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				values[header] = strings.TrimSpace(record[i])
			}
		}
		records = append(records, RawRecord{LineNumber: line, Values: values})
	}

	return records, nil
}

// missingHeaders returns every required header absent from the header row.
// Matching is exact and case-sensitive; column order does not matter.
func missingHeaders(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	var missing []string
	for _, required := range models.RequiredFeedHeaders() {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	return missing
}
