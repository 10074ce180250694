package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
)

// Kind is the tabular format of an upload.
type Kind string

const (
	KindCSV  Kind = "csv"
	KindXLSX Kind = "xlsx"
	KindXLS  Kind = "xls"
)

// ErrDecode marks any failure to turn upload bytes into rows.
var ErrDecode = errors.New("could not read file")

var (
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// SniffKind decides the format from magic bytes first, then the file
// extension, then the declared content type. Anything else is read as CSV.
func SniffKind(fileName, contentType string, data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return KindXLSX
	case bytes.HasPrefix(data, cfbMagic):
		return KindXLS
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return KindXLSX
	case ".xls":
		return KindXLS
	case ".csv", ".txt":
		return KindCSV
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "openxmlformats"):
		return KindXLSX
	case strings.Contains(ct, "ms-excel"):
		return KindXLS
	}
	return KindCSV
}

// RawRow is one source row keyed by header label. Labels is shared by every
// row of a table; Values is aligned with it.
type RawRow struct {
	Number int
	Labels []string
	Values []string
}

// Table is a decoded upload: the chosen header and the rows below it.
type Table struct {
	Kind        Kind
	HeaderIndex int
	Labels      []string
	Rows        []RawRow
}

// Decode parses upload bytes of the given kind into a Table. Spreadsheets
// run header detection; CSV takes its first record as the header.
func Decode(data []byte, kind Kind, aliases AliasTable) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch kind {
	case KindXLSX:
		t, err = decodeXLSX(data, aliases)
	case KindXLS:
		t, err = decodeXLS(data, aliases)
	default:
		t, err = decodeCSV(data)
	}
	if err != nil {
		return nil, err
	}
	t.Kind = kind
	return t, nil
}

func decodeErr(kind Kind, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDecode, kind, err)
}

// csvText strips a UTF-8 BOM and falls back to EUC-KR for legacy exports.
func csvText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := korean.EUCKR.NewDecoder().Bytes(data)
	if err != nil {
		return nil, err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return nil, errors.New("text is neither UTF-8 nor EUC-KR")
	}
	return out, nil
}

func decodeCSV(data []byte) (*Table, error) {
	text, err := csvText(data)
	if err != nil {
		return nil, decodeErr(KindCSV, err)
	}
	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, decodeErr(KindCSV, err)
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	width := 0
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}
	labels := headerLabels(records[0], width)
	t := &Table{HeaderIndex: 0, Labels: labels}
	for i := 1; i < len(records); i++ {
		t.Rows = append(t.Rows, RawRow{
			Number: lines[i],
			Labels: labels,
			Values: padValues(records[i], len(labels)),
		})
	}
	return t, nil
}

func decodeXLSX(data []byte, aliases AliasTable) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, decodeErr(KindXLSX, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, decodeErr(KindXLSX, errors.New("workbook has no sheets"))
	}
	// Raw values keep dates as serials and numbers without display formatting.
	grid, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, decodeErr(KindXLSX, err)
	}
	return tableFromGrid(grid, aliases), nil
}

func decodeXLS(data []byte, aliases AliasTable) (t *Table, err error) {
	// The BIFF reader panics on some truncated files.
	defer func() {
		if p := recover(); p != nil {
			t, err = nil, decodeErr(KindXLS, fmt.Errorf("malformed workbook: %v", p))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, decodeErr(KindXLS, err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, decodeErr(KindXLS, errors.New("workbook has no sheets"))
	}
	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		last := row.LastCol()
		cells := make([]string, last)
		for c := row.FirstCol(); c < last; c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}
	return tableFromGrid(grid, aliases), nil
}

// tableFromGrid applies header detection to a spreadsheet grid. Rows whose
// cells are all blank are skipped; row numbers stay 1-based sheet rows.
func tableFromGrid(grid [][]string, aliases AliasTable) *Table {
	if len(grid) == 0 {
		return &Table{}
	}
	header := DetectHeader(grid, aliases)
	width := 0
	for _, row := range grid[header:] {
		if len(row) > width {
			width = len(row)
		}
	}
	labels := headerLabels(grid[header], width)
	t := &Table{HeaderIndex: header, Labels: labels}
	for i := header + 1; i < len(grid); i++ {
		if blankCells(grid[i]) {
			continue
		}
		t.Rows = append(t.Rows, RawRow{
			Number: i + 1,
			Labels: labels,
			Values: padValues(grid[i], len(labels)),
		})
	}
	return t
}

func padValues(cells []string, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(cells); i++ {
		out[i] = trimCell(cells[i])
	}
	return out
}

func blankCells(cells []string) bool {
	for _, c := range cells {
		if trimCell(c) != "" {
			return false
		}
	}
	return true
}

// trimCell removes surrounding whitespace, including the no-break spaces
// spreadsheet exports pad with.
func trimCell(s string) string {
	return strings.TrimSpace(s)
}
