package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"async-import/internal/domain"
)

// ExcelParser reads spreadsheet workbooks with excelize. Only the OOXML
// format is readable; legacy .xls files fail format validation.
//
// Options: sheetIndex (default 0), sheetName (overrides sheetIndex),
// skipHeader (default true), columns, maxRows (sheet rows to scan, 0 = all).
type ExcelParser struct{}

// NewExcelParser creates an ExcelParser.
func NewExcelParser() *ExcelParser {
	return &ExcelParser{}
}

func (p *ExcelParser) Supports(fileType domain.FileType) bool {
	return fileType.IsSpreadsheet()
}

func (p *ExcelParser) Parse(path string, opts Options) (RowIterator, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, malformed("open spreadsheet: %v", err)
	}

	sheet, err := resolveSheet(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, malformed("read sheet %q: %v", sheet, err)
	}

	it := &excelIterator{
		file:       f,
		rows:       rows,
		skipHeader: opts.Bool("skipHeader", true),
		maxRows:    opts.Int("maxRows", 0),
	}
	if !it.skipHeader {
		it.headers = opts.Strings("columns")
	}
	return it, nil
}

func (p *ExcelParser) CountRows(path string, opts Options) (int, error) {
	it, err := p.Parse(path, opts)
	if err != nil {
		return 0, err
	}
	return count(it)
}

// Headers returns the first non-empty row, stopping at the first blank cell.
func (p *ExcelParser) Headers(path string, opts Options) []string {
	if !opts.Bool("skipHeader", true) {
		return opts.Strings("columns")
	}

	it, err := p.Parse(path, Options{"skipHeader": false, "sheetIndex": opts["sheetIndex"], "sheetName": opts["sheetName"]})
	if err != nil {
		return nil
	}
	defer it.Close()

	if !it.Next() {
		return nil
	}
	cells, ok := it.Row().([]string)
	if !ok {
		return nil
	}
	var headers []string
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			break
		}
		headers = append(headers, c)
	}
	return headers
}

func (p *ExcelParser) ValidateFormat(path string) *domain.ValidationResult {
	result := checkFile(path, "xls", "xlsx")
	if !result.IsValid() {
		return result
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.Failure(fmt.Sprintf("cannot read spreadsheet: %v", err))
	}
	defer f.Close()

	if len(f.GetSheetList()) == 0 {
		return domain.Failure("spreadsheet has no worksheets")
	}
	return result
}

// SheetNames lists the worksheets of a workbook.
func (p *ExcelParser) SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, malformed("open spreadsheet: %v", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func resolveSheet(f *excelize.File, opts Options) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", malformed("spreadsheet has no worksheets")
	}

	if name := opts.String("sheetName", ""); name != "" {
		for _, s := range sheets {
			if s == name {
				return s, nil
			}
		}
		return "", malformed("sheet %q not found", name)
	}

	idx := opts.Int("sheetIndex", 0)
	if idx < 0 || idx >= len(sheets) {
		return "", malformed("sheet index %d out of range (%d sheets)", idx, len(sheets))
	}
	return sheets[idx], nil
}

type excelIterator struct {
	file       *excelize.File
	rows       *excelize.Rows
	skipHeader bool
	headers    []string
	maxRows    int
	scanned    int
	row        any
	err        error
	closed     bool
}

func (it *excelIterator) Next() bool {
	if it.closed {
		return false
	}
	for it.rows.Next() {
		it.scanned++
		if it.maxRows > 0 && it.scanned > it.maxRows {
			break
		}

		cells, err := it.rows.Columns()
		if err != nil {
			it.err = malformed("read row %d: %v", it.scanned, err)
			it.Close()
			return false
		}
		if isEmptyRecord(cells) {
			continue
		}
		if it.skipHeader && it.headers == nil {
			it.headers = cleanHeaders(cells)
			continue
		}
		if it.headers == nil {
			it.row = cells
		} else {
			it.row = keyRow(it.headers, cells)
		}
		return true
	}

	if err := it.rows.Error(); err != nil {
		it.err = malformed("iterate rows: %v", err)
	}
	it.Close()
	return false
}

func (it *excelIterator) Row() any   { return it.row }
func (it *excelIterator) Err() error { return it.err }

func (it *excelIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	rowsErr := it.rows.Close()
	if err := it.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
