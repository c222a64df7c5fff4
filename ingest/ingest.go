// Package ingest reads tabular files of dated metrics. The date column is picked by an
// injectable ColumnResolver and every other column is a numeric metric.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoColumns         = errors.New("no columns in header")
	ErrNoRows            = errors.New("no data rows")
	ErrNoMetricColumns   = errors.New("no metric columns besides the date column")
	ErrUnknownMetric     = errors.New("unknown metric column")
	ErrParseDate         = errors.New("unable to parse date")
	ErrParseValue        = errors.New("unable to parse numeric value")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrDuplicateColumn   = errors.New("duplicate column name")
	ErrMixedDateOrder    = fmt.Errorf("date column mixes day first and month first dates, %w", ErrParseDate)
)

// DefaultDateAliases are the header names recognized as the date column
var DefaultDateAliases = []string{"date", "data", "dia", "Date", "DATA"}

// Slashed layouts with ambiguous day and month order. A date column uses one of them for
// every cell.
const (
	MonthFirstLayout = "01/02/2006"
	DayFirstLayout   = "02/01/2006"
)

// DateLayouts are tried in order when parsing a date cell. Month first comes before day
// first.
var DateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
	"2006/01/02",
	MonthFirstLayout,
	DayFirstLayout,
}

// ColumnResolver picks the date column of a header
type ColumnResolver struct {
	// DateAliases are matched exactly against each header in header order. When no header
	// matches, the first column is the date column.
	DateAliases []string
}

// NewDefaultColumnResolver returns a resolver for DefaultDateAliases
func NewDefaultColumnResolver() *ColumnResolver {
	aliases := make([]string, len(DefaultDateAliases))
	copy(aliases, DefaultDateAliases)
	return &ColumnResolver{DateAliases: aliases}
}

// Resolve returns the index of the date column in headers
func (c *ColumnResolver) Resolve(headers []string) (int, error) {
	if len(headers) == 0 {
		return 0, ErrNoColumns
	}
	if c == nil {
		c = NewDefaultColumnResolver()
	}
	aliases := make(map[string]struct{}, len(c.DateAliases))
	for _, a := range c.DateAliases {
		aliases[a] = struct{}{}
	}
	for i, h := range headers {
		if _, ok := aliases[h]; ok {
			return i, nil
		}
	}
	return 0, nil
}

// Table holds the dated rows of a file sorted by date
type Table struct {
	DateColumn  string               `json:"date_column"`
	Dates       []time.Time          `json:"dates"`
	Metrics     map[string][]float64 `json:"metrics"`
	MetricNames []string             `json:"metric_names"`
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Dates)
}

// Metric returns the dates and values of the named metric column
func (t *Table) Metric(name string) ([]time.Time, []float64, error) {
	if t == nil {
		return nil, nil, fmt.Errorf("%q, %w", name, ErrUnknownMetric)
	}
	y, ok := t.Metrics[name]
	if !ok {
		return nil, nil, fmt.Errorf("%q not in %v, %w", name, t.MetricNames, ErrUnknownMetric)
	}
	dates := make([]time.Time, len(t.Dates))
	copy(dates, t.Dates)
	vals := make([]float64, len(y))
	copy(vals, y)
	return dates, vals, nil
}

// ReadFile reads a .csv or .xlsx file from disk
func ReadFile(path string, resolver *ColumnResolver) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, filepath.Base(path), resolver)
}

// Read reads r as csv or xlsx depending on the extension of filename
func Read(r io.Reader, filename string, resolver *ColumnResolver) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv", ".txt":
		return ReadCSV(r, resolver)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r, "", resolver)
	default:
		return nil, fmt.Errorf("%q, %w", ext, ErrUnsupportedFormat)
	}
}

// cellParser converts a raw date cell to a time trying layouts in order
type cellParser func(s string, layouts []string) (time.Time, error)

// newTable builds a table from a header and its rows. Rows shorter than the header are
// padded with empty cells.
func newTable(rows [][]string, resolver *ColumnResolver, parseDate cellParser) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrNoColumns
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	dateIdx, err := resolver.Resolve(headers)
	if err != nil {
		return nil, err
	}
	if len(headers) < 2 {
		return nil, ErrNoMetricColumns
	}

	tbl := &Table{
		DateColumn: headers[dateIdx],
		Metrics:    make(map[string][]float64, len(headers)-1),
	}
	metricIdx := make([]int, 0, len(headers)-1)
	for i, h := range headers {
		if i == dateIdx {
			continue
		}
		if _, exists := tbl.Metrics[h]; exists || h == tbl.DateColumn {
			return nil, fmt.Errorf("%q, %w", h, ErrDuplicateColumn)
		}
		tbl.Metrics[h] = make([]float64, 0, len(rows)-1)
		tbl.MetricNames = append(tbl.MetricNames, h)
		metricIdx = append(metricIdx, i)
	}

	var dateCells []string
	var rowNums []int
	for r := 1; r < len(rows); r++ {
		row := rows[r]
		if isBlank(row) {
			continue
		}
		cell := func(i int) string {
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		dateCells = append(dateCells, cell(dateIdx))
		rowNums = append(rowNums, r+1)
		for j, i := range metricIdx {
			v, err := parseValue(cell(i))
			if err != nil {
				return nil, fmt.Errorf("row %d column %q, %w", r+1, tbl.MetricNames[j], err)
			}
			name := tbl.MetricNames[j]
			tbl.Metrics[name] = append(tbl.Metrics[name], v)
		}
	}

	layouts, err := ColumnLayouts(dateCells)
	if err != nil {
		return nil, fmt.Errorf("column %q, %w", tbl.DateColumn, err)
	}
	tbl.Dates = make([]time.Time, 0, len(dateCells))
	for i, c := range dateCells {
		d, err := parseDate(c, layouts)
		if err != nil {
			return nil, fmt.Errorf("row %d column %q, %w", rowNums[i], tbl.DateColumn, err)
		}
		tbl.Dates = append(tbl.Dates, d)
	}
	if len(tbl.Dates) == 0 {
		return nil, ErrNoRows
	}
	tbl.sortByDate()
	return tbl, nil
}

func (t *Table) sortByDate() {
	idx := make([]int, len(t.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return t.Dates[idx[i]].Before(t.Dates[idx[j]])
	})

	dates := make([]time.Time, len(idx))
	for i, k := range idx {
		dates[i] = t.Dates[k]
	}
	t.Dates = dates
	for name, vals := range t.Metrics {
		sorted := make([]float64, len(idx))
		for i, k := range idx {
			sorted[i] = vals[k]
		}
		t.Metrics[name] = sorted
	}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseDate parses s with the first matching layout of DateLayouts
func ParseDate(s string) (time.Time, error) {
	return parseDateWith(s, DateLayouts)
}

// ColumnLayouts returns the layouts used for every cell of a date column. A column is read
// either month first or day first: a cell that only parses day first switches the whole
// column to day first, and a column holding cells that only parse one way each fails with
// ErrMixedDateOrder. Columns without such cells are read month first.
func ColumnLayouts(cells []string) ([]string, error) {
	var monthFirst, dayFirst string
	for _, c := range cells {
		_, errM := time.Parse(MonthFirstLayout, c)
		_, errD := time.Parse(DayFirstLayout, c)
		switch {
		case errM == nil && errD != nil && monthFirst == "":
			monthFirst = c
		case errD == nil && errM != nil && dayFirst == "":
			dayFirst = c
		}
	}
	if monthFirst != "" && dayFirst != "" {
		return nil, fmt.Errorf("%q is month first and %q is day first, %w", monthFirst, dayFirst, ErrMixedDateOrder)
	}

	exclude := DayFirstLayout
	if dayFirst != "" {
		exclude = MonthFirstLayout
	}
	layouts := make([]string, 0, len(DateLayouts))
	for _, l := range DateLayouts {
		if l != exclude {
			layouts = append(layouts, l)
		}
	}
	return layouts, nil
}

func parseDateWith(s string, layouts []string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date, %w", ErrParseDate)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q, %w", s, ErrParseDate)
}

// parseValue parses a numeric cell. Empty cells are missing values and return NaN.
func parseValue(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q, %w", s, ErrParseValue)
	}
	return v, nil
}
