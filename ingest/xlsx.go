package ingest

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// excel serial numbers between these bounds are read as dates (1954 to 2119)
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

// ReadXLSX reads a sheet of an Excel workbook with a header row. An empty sheet name reads
// the first sheet.
func ReadXLSX(r io.Reader, sheet string, resolver *ColumnResolver) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to open workbook, %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoColumns
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet %q, %w", sheet, err)
	}
	return newTable(rows, resolver, parseExcelDate)
}

// parseExcelDate accepts raw date serial numbers and text dates in one of layouts
func parseExcelDate(s string, layouts []string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("%q, %w", s, ErrParseDate)
		}
		return t.Round(time.Second), nil
	}
	return parseDateWith(s, layouts)
}
