package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"async-import/internal/domain"
)

// CSVParser parses delimited text files. Recognised options:
//
//	delimiter  single character, "\t" or "tab" (default ",")
//	skipHeader treat the first non-empty record as header (default true)
//	columns    header names to use when skipHeader is false
//	lazyQuotes tolerate bare quotes in unquoted fields
type CSVParser struct{}

// NewCSVParser creates a CSVParser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Supports(fileType domain.FileType) bool {
	return fileType == domain.FileTypeCSV
}

func (p *CSVParser) Parse(path string, opts Options) (RowIterator, error) {
	delim, err := delimiter(opts)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}

	r := csv.NewReader(skipBOM(f))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = opts.Bool("lazyQuotes", false)

	it := &csvIterator{
		file:       f,
		reader:     r,
		skipHeader: opts.Bool("skipHeader", true),
	}
	if !it.skipHeader {
		it.headers = opts.Strings("columns")
	}
	return it, nil
}

func (p *CSVParser) CountRows(path string, opts Options) (int, error) {
	it, err := p.Parse(path, opts)
	if err != nil {
		return 0, err
	}
	return count(it)
}

func (p *CSVParser) Headers(path string, opts Options) []string {
	if !opts.Bool("skipHeader", true) {
		return opts.Strings("columns")
	}

	delim, err := delimiter(opts)
	if err != nil {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(skipBOM(f))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	for {
		rec, err := r.Read()
		if err != nil {
			return nil
		}
		if !isEmptyRecord(rec) {
			return cleanHeaders(rec)
		}
	}
}

func (p *CSVParser) ValidateFormat(path string) *domain.ValidationResult {
	result := checkFile(path, "csv")
	if !result.IsValid() {
		return result
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Failure(fmt.Sprintf("cannot open file: %v", err))
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return domain.Failure(fmt.Sprintf("cannot read file: %v", err))
	}
	if !bytes.ContainsAny(line, ",;\t") {
		return domain.Failure("no CSV delimiter found in first line")
	}
	return result
}

type csvIterator struct {
	file       *os.File
	reader     *csv.Reader
	skipHeader bool
	headers    []string
	row        any
	err        error
	closed     bool
}

func (it *csvIterator) Next() bool {
	if it.closed {
		return false
	}
	for {
		rec, err := it.reader.Read()
		if errors.Is(err, io.EOF) {
			it.Close()
			return false
		}
		if err != nil {
			it.err = malformed("%v", err)
			it.Close()
			return false
		}
		if isEmptyRecord(rec) {
			continue
		}
		if it.skipHeader && it.headers == nil {
			it.headers = cleanHeaders(rec)
			continue
		}
		if it.headers == nil {
			it.row = rec
		} else {
			it.row = keyRow(it.headers, rec)
		}
		return true
	}
}

func (it *csvIterator) Row() any   { return it.row }
func (it *csvIterator) Err() error { return it.err }

func (it *csvIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.file.Close()
}

func delimiter(opts Options) (rune, error) {
	d := opts.String("delimiter", ",")
	switch d {
	case "\\t", "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(d)
	if size != len(d) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("%w: invalid delimiter %q", domain.ErrValidationFailed, d)
	}
	return r, nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && string(b) == bom {
		_, _ = br.Discard(3)
	}
	return br
}
