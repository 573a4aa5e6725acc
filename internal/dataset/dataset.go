// Package dataset defines the row-iterator contract spec.md §1 treats as an
// external collaborator (dataset ingestion is explicitly out of scope), plus
// one concrete adapter for JSONL sources whose records aren't already flat.
package dataset

// Row is one flow record: a flat mapping from column name to value. The
// executor reads string values off it directly (attribute dispatch) and
// numeric values for measure aggregation via AsFloat.
type Row map[string]any

// AsFloat coerces row[column] to float64 for measure aggregation. Absent or
// non-numeric values return (0, false), which the executor treats as a
// missing value (spec.md §4.6 step 3: "mean ignores absent values").
func (r Row) AsFloat(column string) (float64, bool) {
	switch v := r[column].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// AsString coerces row[column] to its string form for attribute dispatch. A
// missing column returns ok=false, which the router treats as "unmatched"
// (falls through to a Branch's default child).
func (r Row) AsString(column string) (string, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return "", false
}

// Iterator is the row source contract an executor call consumes: exactly
// what spec.md §1 asks for ("we assume an iterable of typed records"), no
// query engine, no schema introspection beyond what a Row itself exposes.
type Iterator interface {
	// Next advances to the next row. It returns false once exhausted or on
	// error (Err distinguishes the two).
	Next() bool
	// Row returns the current row. Only valid after a Next call returned true.
	Row() Row
	// Err returns the first error encountered, if any.
	Err() error
}

// SliceIterator adapts an in-memory []Row to the Iterator contract, useful
// for tests and for embedders who already hold rows in memory.
type SliceIterator struct {
	rows []Row
	pos  int
}

// NewSliceIterator wraps rows as an Iterator.
func NewSliceIterator(rows []Row) *SliceIterator {
	return &SliceIterator{rows: rows, pos: -1}
}

func (s *SliceIterator) Next() bool {
	s.pos++
	return s.pos < len(s.rows)
}

func (s *SliceIterator) Row() Row { return s.rows[s.pos] }
func (s *SliceIterator) Err() error { return nil }
