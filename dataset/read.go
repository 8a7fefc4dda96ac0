package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// FromRecords builds a table from a header row and string rows. Short rows
// are padded with missing cells and long rows are truncated. A column is
// Numeric when it has at least one non-missing cell and every non-missing
// cell parses as a number; otherwise it is Text with missing cells stored as "".
func FromRecords(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, errors.NewValueError("FromRecords", "no columns in header")
	}

	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for j, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = "column_" + itoa(j)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "_" + itoa(n+1)
		} else {
			seen[name] = 0
		}
		names[j] = name
	}

	cols := make([]*Column, len(names))
	for j, name := range names {
		raw := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				raw[i] = row[j]
			}
		}
		cols[j] = inferColumn(name, raw)
	}
	return NewTable(cols...)
}

func inferColumn(name string, raw []string) *Column {
	nums := make([]float64, len(raw))
	present := 0
	numeric := true
	for i, cell := range raw {
		if IsMissingToken(cell) {
			nums[i] = nan()
			continue
		}
		v, ok := ParseNumber(cell)
		if !ok {
			numeric = false
			break
		}
		nums[i] = v
		present++
	}
	if numeric && present > 0 {
		return &Column{name: name, kind: Numeric, nums: nums}
	}

	text := make([]string, len(raw))
	for i, cell := range raw {
		if !IsMissingToken(cell) {
			text[i] = cell
		}
	}
	return &Column{name: name, kind: Text, text: text}
}

// ReadCSV parses comma-separated records with a header row.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse csv")
	}
	if len(records) == 0 {
		return nil, errors.NewValueError("ReadCSV", "empty input")
	}
	return FromRecords(records[0], records[1:])
}

// ReadXLSX reads a workbook sheet with a header row. An empty sheet name
// selects the first sheet.
func ReadXLSX(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workbook")
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.NewValueError("ReadXLSX", "workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	// GetRows drops trailing empty rows but keeps interior blank ones.
	var kept [][]string
	for _, row := range rows {
		if !blankRow(row) {
			kept = append(kept, row)
		}
	}
	if len(kept) == 0 {
		return nil, errors.NewValueError("ReadXLSX", "sheet "+sheet+" is empty")
	}
	return FromRecords(kept[0], kept[1:])
}

// Read picks a reader from the file extension: .xlsx/.xlsm/.xls go through
// excelize, everything else is treated as CSV.
func Read(r io.Reader, filename string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xls":
		return ReadXLSX(r, "")
	default:
		return ReadCSV(r)
	}
}

// ReadFile opens path and dispatches on its extension.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewValueError("ReadFile", "input file not found: "+path)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return Read(bytes.NewReader(data), path)
}

// WriteCSV writes the table with a header row. Missing cells are written empty.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return errors.Wrap(err, "failed to write csv header")
	}
	row := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for j := 0; j < t.NumCols(); j++ {
			row[j] = t.ColumnAt(j).String(i)
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "failed to write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush csv")
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
