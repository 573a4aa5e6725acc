package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"

	"github.com/rendis/weaver/pkg/schema"
)

// JSONLIterator reads newline-delimited JSON records and, when a projection
// query is configured, reshapes each nested record into a flat Row via a
// jq filter before the executor ever sees it — ported from the teacher's
// GoJQEngine (internal/expressions/gojq.go in opcode), compiled once and
// reused across every row rather than per-call.
type JSONLIterator struct {
	scanner *bufio.Scanner
	query   *gojq.Code

	row Row
	err error
}

// NewJSONLIterator builds an Iterator over r's newline-delimited JSON
// records. projection is an optional jq filter (e.g. ".flow" to unwrap a
// nesting envelope) that must yield a single JSON object per input record;
// an empty projection uses each decoded record as the Row directly.
func NewJSONLIterator(r io.Reader, projection string) (*JSONLIterator, error) {
	it := &JSONLIterator{scanner: bufio.NewScanner(r)}
	it.scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	if projection != "" {
		parsed, err := gojq.Parse(projection)
		if err != nil {
			return nil, schema.NewWeaverError(schema.CodeDatasetError,
				fmt.Sprintf("parse jq projection %q: %s", projection, err.Error())).WithCause(err)
		}
		code, err := gojq.Compile(parsed, gojq.WithEnvironLoader(func() []string { return nil }))
		if err != nil {
			return nil, schema.NewWeaverError(schema.CodeDatasetError,
				fmt.Sprintf("compile jq projection %q: %s", projection, err.Error())).WithCause(err)
		}
		it.query = code
	}

	return it, nil
}

func (it *JSONLIterator) Next() bool {
	for it.scanner.Scan() {
		line := it.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var decoded any
		if err := json.Unmarshal(line, &decoded); err != nil {
			it.err = schema.NewWeaverError(schema.CodeDatasetError,
				fmt.Sprintf("decode JSONL record: %s", err.Error())).WithCause(err)
			return false
		}

		row, err := it.project(decoded)
		if err != nil {
			it.err = err
			return false
		}
		it.row = row
		return true
	}
	if err := it.scanner.Err(); err != nil {
		it.err = schema.NewWeaverError(schema.CodeDatasetError, err.Error()).WithCause(err)
	}
	return false
}

func (it *JSONLIterator) project(decoded any) (Row, error) {
	if it.query == nil {
		obj, ok := decoded.(map[string]any)
		if !ok {
			return nil, schema.NewWeaverError(schema.CodeDatasetError, "JSONL record is not a JSON object")
		}
		return Row(obj), nil
	}

	iter := it.query.Run(decoded)
	val, ok := iter.Next()
	if !ok {
		return nil, schema.NewWeaverError(schema.CodeDatasetError, "jq projection produced no output")
	}
	if err, isErr := val.(error); isErr {
		return nil, schema.NewWeaverError(schema.CodeDatasetError,
			fmt.Sprintf("jq projection failed: %s", err.Error())).WithCause(err)
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, schema.NewWeaverError(schema.CodeDatasetError, "jq projection did not produce a JSON object")
	}
	return Row(obj), nil
}

func (it *JSONLIterator) Row() Row  { return it.row }
func (it *JSONLIterator) Err() error { return it.err }
