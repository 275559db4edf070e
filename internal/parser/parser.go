// Package parser decodes uploaded files into lazily produced rows.
// Each FileParser handles one family of file types and is resolved through a
// Registry keyed by domain.FileType.
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"async-import/internal/domain"
)

// RowIterator yields parsed rows one at a time. It is finite and cannot be
// restarted; it releases its resources once exhausted, on error, or on Close.
type RowIterator interface {
	Next() bool
	// Row returns the current row. Keyed rows are map[string]any; parsers
	// return other shapes when the file cannot be keyed.
	Row() any
	Err() error
	Close() error
}

// FileParser decodes one family of file types.
type FileParser interface {
	Supports(fileType domain.FileType) bool
	Parse(path string, opts Options) (RowIterator, error)
	// CountRows returns the number of rows Parse would yield.
	CountRows(path string, opts Options) (int, error)
	// Headers is best effort and returns nil on failure.
	Headers(path string, opts Options) []string
	ValidateFormat(path string) *domain.ValidationResult
}

// Options carries parser settings taken from a task's import configuration.
// Values may come from JSON, so numeric values are accepted as float64 too.
type Options map[string]any

// String returns the string option key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Bool returns the boolean option key or def.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns the integer option key or def.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// Strings returns the string list option key, or nil.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}

// Registry maps file types to parsers.
type Registry struct {
	parsers map[domain.FileType]FileParser
}

var knownTypes = []domain.FileType{
	domain.FileTypeCSV,
	domain.FileTypeExcel,
	domain.FileTypeXLS,
	domain.FileTypeXLSX,
	domain.FileTypeJSON,
}

// NewRegistry registers each parser for every file type it supports.
// Later parsers win when two support the same type.
func NewRegistry(parsers ...FileParser) *Registry {
	r := &Registry{parsers: make(map[domain.FileType]FileParser)}
	for _, p := range parsers {
		for _, ft := range knownTypes {
			if p.Supports(ft) {
				r.parsers[ft] = p
			}
		}
	}
	return r
}

// NewDefaultRegistry returns a registry with the CSV, spreadsheet and JSON parsers.
func NewDefaultRegistry() *Registry {
	return NewRegistry(NewCSVParser(), NewExcelParser(), NewJSONParser())
}

// Register binds a parser to a file type explicitly.
func (r *Registry) Register(fileType domain.FileType, p FileParser) {
	r.parsers[fileType] = p
}

// Get returns the parser for fileType.
func (r *Registry) Get(fileType domain.FileType) (FileParser, error) {
	p, ok := r.parsers[fileType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrParserNotFound, fileType)
	}
	return p, nil
}

// SupportedTypes lists registered file types in sorted order.
func (r *Registry) SupportedTypes() []domain.FileType {
	types := make([]domain.FileType, 0, len(r.parsers))
	for ft := range r.parsers {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// checkFile runs the checks every ValidateFormat starts with.
func checkFile(path string, extensions ...string) *domain.ValidationResult {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Failure("file does not exist")
	}
	if err != nil {
		return domain.Failure(fmt.Sprintf("file is not readable: %v", err))
	}
	if info.IsDir() {
		return domain.Failure("path is a directory")
	}
	if info.Size() == 0 {
		return domain.Failure("file is empty")
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, allowed := range extensions {
		if ext == allowed {
			return domain.Success()
		}
	}
	return domain.Failure(fmt.Sprintf("unexpected file extension: %q", ext))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedFile, fmt.Sprintf(format, args...))
}

// keyRow zips headers and values into a row, padding missing values with
// empty strings and dropping extra values.
func keyRow(headers, values []string) map[string]any {
	row := make(map[string]any, len(headers))
	for i, h := range headers {
		if i < len(values) {
			row[h] = values[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

const bom = "\uFEFF"

func cleanHeaders(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(strings.TrimPrefix(v, bom))
	}
	return out
}

func isEmptyRecord(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}

// count drains an iterator.
func count(it RowIterator) (int, error) {
	defer it.Close()
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Err()
}
