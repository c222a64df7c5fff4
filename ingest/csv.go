package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV reads a comma separated file with a header row
func ReadCSV(r io.Reader, resolver *ColumnResolver) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv, %w", err)
	}
	return newTable(rows, resolver, parseDateWith)
}
