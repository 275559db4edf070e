package parser

import (
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"async-import/internal/domain"
)

const jsonBufferSize = 32 * 1024

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONParser streams rows out of a JSON document. The document is either an
// array of objects or a single object counted as one row. With the rootKey
// option the rows are read from that member of the top-level object.
type JSONParser struct{}

// NewJSONParser creates a JSONParser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Supports(fileType domain.FileType) bool {
	return fileType == domain.FileTypeJSON
}

func (p *JSONParser) Parse(path string, opts Options) (RowIterator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open json: %w", err)
	}

	iter := jsoniter.Parse(jsonAPI, f, jsonBufferSize)
	if err := seekRoot(iter, opts.String("rootKey", "")); err != nil {
		f.Close()
		return nil, err
	}

	it := &jsonIterator{file: f, iter: iter}
	switch iter.WhatIsNext() {
	case jsoniter.ArrayValue:
		it.array = true
	case jsoniter.ObjectValue:
		it.single = true
	default:
		f.Close()
		if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
			return nil, malformed("invalid JSON: %v", iter.Error)
		}
		return nil, malformed("JSON data is not an array or object")
	}
	return it, nil
}

func (p *JSONParser) CountRows(path string, opts Options) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open json: %w", err)
	}
	defer f.Close()

	iter := jsoniter.Parse(jsonAPI, f, jsonBufferSize)
	if err := seekRoot(iter, opts.String("rootKey", "")); err != nil {
		return 0, err
	}

	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		return 1, nil
	case jsoniter.ArrayValue:
	default:
		return 0, nil
	}

	n := 0
	for iter.ReadArray() {
		iter.Skip()
		if iter.Error != nil {
			break
		}
		n++
	}
	if iter.Error != nil {
		return 0, malformed("invalid JSON: %v", iter.Error)
	}
	return n, nil
}

// Headers returns the keys of the first row in document order.
func (p *JSONParser) Headers(path string, opts Options) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	iter := jsoniter.Parse(jsonAPI, f, jsonBufferSize)
	if err := seekRoot(iter, opts.String("rootKey", "")); err != nil {
		return nil
	}

	if iter.WhatIsNext() == jsoniter.ArrayValue {
		if !iter.ReadArray() {
			return nil
		}
	}
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil
	}

	var headers []string
	for key := iter.ReadObject(); key != ""; key = iter.ReadObject() {
		headers = append(headers, key)
		iter.Skip()
	}
	if iter.Error != nil {
		return nil
	}
	return headers
}

func (p *JSONParser) ValidateFormat(path string) *domain.ValidationResult {
	result := checkFile(path, "json")
	if !result.IsValid() {
		return result
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Failure(fmt.Sprintf("cannot open file: %v", err))
	}
	defer f.Close()

	iter := jsoniter.Parse(jsonAPI, f, jsonBufferSize)
	switch iter.WhatIsNext() {
	case jsoniter.ArrayValue, jsoniter.ObjectValue:
	case jsoniter.InvalidValue:
		return domain.Failure("invalid JSON: no value found")
	default:
		return domain.Failure("JSON document must be an array or object")
	}
	iter.Skip()
	if iter.Error != nil {
		return domain.Failure(fmt.Sprintf("invalid JSON: %v", iter.Error))
	}
	return result
}

// seekRoot positions iter at the value holding the rows.
func seekRoot(iter *jsoniter.Iterator, rootKey string) error {
	if rootKey == "" {
		return nil
	}
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return malformed("root key %q requires a top-level object", rootKey)
	}
	for key := iter.ReadObject(); key != ""; key = iter.ReadObject() {
		if key == rootKey {
			return nil
		}
		iter.Skip()
	}
	if iter.Error != nil {
		return malformed("invalid JSON: %v", iter.Error)
	}
	return malformed("root key %q not found", rootKey)
}

type jsonIterator struct {
	file   *os.File
	iter   *jsoniter.Iterator
	array  bool
	single bool
	row    any
	err    error
	closed bool
}

func (it *jsonIterator) Next() bool {
	if it.closed {
		return false
	}

	if it.single {
		it.single = false
		it.row = it.iter.Read()
		if it.iter.Error != nil {
			it.err = malformed("invalid JSON: %v", it.iter.Error)
			it.Close()
			return false
		}
		return true
	}

	if !it.array || !it.iter.ReadArray() {
		if it.iter.Error != nil {
			it.err = malformed("invalid JSON: %v", it.iter.Error)
		}
		it.Close()
		return false
	}

	it.row = it.iter.Read()
	if it.iter.Error != nil {
		it.err = malformed("invalid JSON: %v", it.iter.Error)
		it.Close()
		return false
	}
	return true
}

func (it *jsonIterator) Row() any   { return it.row }
func (it *jsonIterator) Err() error { return it.err }

func (it *jsonIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.file.Close()
}
