package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptySheet is returned when a sheet has no header row or no data rows.
	ErrEmptySheet = errors.New("sheet is empty or missing headers")

	// ErrUnsupportedFormat is returned for anything but .csv and .xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format (expected .csv or .xlsx)")
)

// Sheet is a header row plus data rows. Rows hold raw cell values: serial
// numbers for dates, unformatted numbers for amounts. Formatted holds the text
// a spreadsheet displays for the same cells and is nil for CSV input.
type Sheet struct {
	Source    string
	Headers   []string
	Rows      [][]string
	Formatted [][]string
}

// Cell returns the value of column col in data row row as field should read
// it. Dates and amounts come from the raw grid; every other field takes the
// displayed text, so a cell styled "18%" stays "18%" rather than 0.18.
func (s *Sheet) Cell(row, col int, field string) string {
	switch FieldKind(field) {
	case KindDate, KindMoney:
		return gridCell(s.Rows, row, col)
	}
	if s.Formatted != nil {
		return gridCell(s.Formatted, row, col)
	}
	return gridCell(s.Rows, row, col)
}

func gridCell(grid [][]string, row, col int) string {
	if row >= len(grid) || col >= len(grid[row]) {
		return ""
	}
	return grid[row][col]
}

// ReadFile loads the first sheet of a .csv or .xlsx file.
func ReadFile(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var sheet *Sheet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		sheet, err = ReadCSV(f)
	case ".xlsx":
		sheet, err = ReadXLSX(f)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	sheet.Source = filepath.Base(path)
	return sheet, nil
}

// ReadCSV parses comma separated rows. Ragged rows are accepted.
func ReadCSV(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return FromValues(records)
}

// ReadXLSX reads the first worksheet twice: once with raw cell values, so
// date cells come back as Excel serial numbers rather than locale formatted
// text, and once as displayed.
func ReadXLSX(r io.Reader) (*Sheet, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	raw, err := wb.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	shown, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return fromGrids(raw, shown)
}

// FromValues builds a Sheet from a grid whose first row is the header row.
func FromValues(grid [][]string) (*Sheet, error) {
	if len(grid) < 2 || len(grid[0]) == 0 {
		return nil, ErrEmptySheet
	}
	return &Sheet{
		Headers: grid[0],
		Rows:    grid[1:],
	}, nil
}

func fromGrids(raw, shown [][]string) (*Sheet, error) {
	sheet, err := FromValues(raw)
	if err != nil {
		return nil, err
	}
	if len(shown) > 1 {
		sheet.Formatted = shown[1:]
	}
	return sheet, nil
}

// FromInterfaces converts grids of loosely typed cells, as returned by the
// Sheets API, into a Sheet. raw is the unformatted rendering and shown the
// formatted one; shown may be nil.
func FromInterfaces(raw, shown [][]interface{}) (*Sheet, error) {
	if shown == nil {
		return FromValues(textGrid(raw))
	}
	return fromGrids(textGrid(raw), textGrid(shown))
}

func textGrid(grid [][]interface{}) [][]string {
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = cellText(cell)
		}
	}
	return out
}

func cellText(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}
