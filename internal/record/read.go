package record

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies a dataset encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf maps a file name to its dataset format.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Load reads the dataset at path.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Read(path, f)
}

// Read parses r according to the extension of name. Any error fails the
// whole batch; no partial table is returned.
func Read(name string, r io.Reader) (Table, error) {
	format, err := FormatOf(name)
	if err != nil {
		return Table{}, err
	}
	var t Table
	switch format {
	case FormatCSV:
		t, err = ReadCSV(r)
	case FormatXLSX:
		t, err = ReadXLSX(r)
	}
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", filepath.Base(name), err)
	}
	t.Source = name
	return t, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses comma-separated text with a header row.
func ReadCSV(r io.Reader) (Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Table{}, err
	}
	b = bytes.TrimPrefix(b, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	// Quoted fields may span lines, so the physical line of each record
	// comes from the reader rather than the record index.
	var (
		rows  [][]string
		lines []int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, err
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
	return newTable(rows, lines)
}

// ReadXLSX parses the first sheet of a workbook.
func ReadXLSX(r io.Reader) (Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, err
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyDataset
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("sheet %q: %w", sheets[0], err)
	}
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return newTable(rows, lines)
}

// newTable takes the raw rows and the 1-based source line of each.
func newTable(rows [][]string, lines []int) (Table, error) {
	// Leading blank lines are common in hand-made sheets.
	first := 0
	for first < len(rows) && blankRow(rows[first]) {
		first++
	}
	if first == len(rows) {
		return Table{}, ErrEmptyDataset
	}

	header := make([]string, len(rows[first]))
	for i, h := range rows[first] {
		header[i] = strings.TrimSpace(h)
	}

	t := Table{Header: header}
	for i := first + 1; i < len(rows); i++ {
		if blankRow(rows[i]) {
			continue
		}
		t.Rows = append(t.Rows, rows[i])
		t.Lines = append(t.Lines, lines[i])
	}
	return t, nil
}

func blankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
