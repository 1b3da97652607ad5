package report

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	appLog "calstats/internal/log"
)

// ErrCapacityExceeded is returned when a table holds more rows than the
// sheet capacity reserved in configuration. The write is refused before
// any cell is touched; raising max_rows is the remedy, silent truncation
// is not.
var ErrCapacityExceeded = errors.New("report: row capacity exceeded")

// Workbook wraps an .xlsx file acting as the report sink. Reads happen
// once at the start of a run to seed aggregator state; writes happen
// once at the end as a full-range overwrite. There is no cell-by-cell
// read-modify-write.
type Workbook struct {
	f       *excelize.File
	path    string
	maxRows int
	created bool
}

// Open opens the workbook at path, creating a fresh one in memory if the
// file does not exist yet. maxRows caps the data rows of every sheet.
func Open(path string, maxRows int) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open workbook %s: %w", path, err)
		}
		f = excelize.NewFile()
		appLog.Info("workbook not found, starting fresh", "path", path)
		return &Workbook{f: f, path: path, maxRows: maxRows, created: true}, nil
	}
	return &Workbook{f: f, path: path, maxRows: maxRows}, nil
}

// Close releases the underlying file without saving.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// Save writes the workbook back to disk. On a freshly created workbook
// the default placeholder sheet is dropped first.
func (w *Workbook) Save() error {
	if w.created {
		if idx, err := w.f.GetSheetIndex("Sheet1"); err == nil && idx >= 0 {
			// Ignore failure: deleting the last remaining sheet is refused
			// by the format, which only happens if nothing was written.
			_ = w.f.DeleteSheet("Sheet1")
		}
	}
	if err := w.f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	return nil
}

// ReadSheet returns the header row and the data rows of a sheet. The
// stopping predicate for data is explicit: reading ends at the first row
// whose first cell is empty, the sheet's end-of-data marker. A missing
// sheet reads as empty.
func (w *Workbook) ReadSheet(sheet string) (header []string, rows [][]string, err error) {
	idx, err := w.f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, nil, nil
	}

	all, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}

	header = all[0]
	for _, row := range all[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			break
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// Table is one rendered report destined for a sheet.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]any

	// SortColumn (1-based) and SortAscending drive the final sort,
	// applied in memory before writing. Zero means no sort.
	SortColumn    int
	SortAscending bool

	// NumberCols (1-based) receive NumberFormat as their display format.
	NumberCols   []int
	NumberFormat string
}

// WriteTable overwrites a sheet with the given table: bold frozen header
// row, sorted data rows, number formats, content-sized columns, and any
// leftover rows from the previous run blanked out.
func (w *Workbook) WriteTable(t Table) error {
	if len(t.Rows) > w.maxRows {
		return fmt.Errorf("%w: sheet %s needs %d rows, capacity %d",
			ErrCapacityExceeded, t.Sheet, len(t.Rows), w.maxRows)
	}

	priorWidth := 0
	if idx, err := w.f.GetSheetIndex(t.Sheet); err != nil || idx < 0 {
		if _, err := w.f.NewSheet(t.Sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", t.Sheet, err)
		}
	} else if all, err := w.f.GetRows(t.Sheet); err == nil && len(all) > 0 {
		priorWidth = len(all[0])
	}

	if t.SortColumn > 0 {
		sortRows(t.Rows, t.SortColumn, t.SortAscending)
	}

	width := len(t.Header)

	// Header: bold, frozen.
	headerRow := make([]any, width)
	for i, h := range t.Header {
		headerRow[i] = h
	}
	if err := w.f.SetSheetRow(t.Sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header on %s: %w", t.Sheet, err)
	}
	boldStyle, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastHeaderCell, _ := excelize.CoordinatesToCellName(width, 1)
	if err := w.f.SetCellStyle(t.Sheet, "A1", lastHeaderCell, boldStyle); err != nil {
		return err
	}
	if err := w.f.SetPanes(t.Sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	// Data rows.
	for i, row := range t.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		r := row
		if err := w.f.SetSheetRow(t.Sheet, cell, &r); err != nil {
			return fmt.Errorf("write row %d on %s: %w", i+2, t.Sheet, err)
		}
	}

	// Full-range overwrite: blank every capacity row below the new data
	// so shrinking tables never leave stale rows behind, and blank any
	// columns the previous run wrote beyond the new width.
	for rowIdx := len(t.Rows) + 2; rowIdx <= w.maxRows+1; rowIdx++ {
		for col := 1; col <= width; col++ {
			cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
			if err := w.f.SetCellStr(t.Sheet, cell, ""); err != nil {
				return err
			}
		}
	}
	for col := width + 1; col <= priorWidth; col++ {
		for rowIdx := 1; rowIdx <= w.maxRows+1; rowIdx++ {
			cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
			if err := w.f.SetCellStr(t.Sheet, cell, ""); err != nil {
				return err
			}
		}
	}

	if err := w.applyNumberFormat(t); err != nil {
		return err
	}

	if err := w.autoSizeColumns(t); err != nil {
		return err
	}

	appLog.Debug("sheet written", "sheet", t.Sheet, "rows", len(t.Rows), "cols", width)
	return nil
}

func (w *Workbook) applyNumberFormat(t Table) error {
	if len(t.NumberCols) == 0 || len(t.Rows) == 0 {
		return nil
	}
	format := t.NumberFormat
	if format == "" {
		format = "0.0"
	}
	style, err := w.f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return err
	}
	for _, col := range t.NumberCols {
		top, _ := excelize.CoordinatesToCellName(col, 2)
		bottom, _ := excelize.CoordinatesToCellName(col, len(t.Rows)+1)
		if err := w.f.SetCellStyle(t.Sheet, top, bottom, style); err != nil {
			return err
		}
	}
	return nil
}

// autoSizeColumns sizes every column to its longest rendered content,
// clamped to keep runaway notes cells from producing absurd widths.
func (w *Workbook) autoSizeColumns(t Table) error {
	const (
		minWidth = 8
		maxWidth = 48
		padding  = 2
	)
	for col := 1; col <= len(t.Header); col++ {
		longest := len(t.Header[col-1])
		for _, row := range t.Rows {
			if col-1 < len(row) {
				if n := len(fmt.Sprint(row[col-1])); n > longest {
					longest = n
				}
			}
		}
		width := float64(longest + padding)
		if width < minWidth {
			width = minWidth
		}
		if width > maxWidth {
			width = maxWidth
		}
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		if err := w.f.SetColWidth(t.Sheet, name, name, width); err != nil {
			return err
		}
	}
	return nil
}

// sortRows orders rows by one column, stable so ties keep insertion
// order. Blank cells sort last in either direction, numeric cells
// compare numerically, everything else lexically.
func sortRows(rows [][]any, column int, ascending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, aBlank := cellValue(rows[i], column)
		b, bBlank := cellValue(rows[j], column)
		if aBlank || bBlank {
			return !aBlank && bBlank
		}
		less := lessCell(a, b)
		if ascending {
			return less
		}
		return lessCell(b, a)
	})
}

func cellValue(row []any, column int) (any, bool) {
	idx := column - 1
	if idx < 0 || idx >= len(row) {
		return nil, true
	}
	v := row[idx]
	if v == nil {
		return nil, true
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, true
	}
	return v, false
}

func lessCell(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af < bf
	}
	if aNum != bNum {
		// Numbers before text, like a spreadsheet sort.
		return aNum
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
