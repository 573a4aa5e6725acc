package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRow_AsFloat(t *testing.T) {
	row := Row{"value": 12.5, "count": 3, "big": int64(9), "label": "x", "missing_nil": nil}

	v, ok := row.AsFloat("value")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	v, ok = row.AsFloat("count")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = row.AsFloat("big")
	assert.True(t, ok)
	assert.Equal(t, 9.0, v)

	_, ok = row.AsFloat("label")
	assert.False(t, ok)

	_, ok = row.AsFloat("absent")
	assert.False(t, ok)
}

func TestRow_AsString(t *testing.T) {
	row := Row{"material": "steel", "count": 3, "empty": nil}

	s, ok := row.AsString("material")
	assert.True(t, ok)
	assert.Equal(t, "steel", s)

	_, ok = row.AsString("count")
	assert.False(t, ok)

	_, ok = row.AsString("empty")
	assert.False(t, ok)

	_, ok = row.AsString("absent")
	assert.False(t, ok)
}

func TestSliceIterator(t *testing.T) {
	rows := []Row{{"a": 1}, {"a": 2}}
	it := NewSliceIterator(rows)

	var seen []Row
	for it.Next() {
		seen = append(seen, it.Row())
	}
	assert.NoError(t, it.Err())
	assert.Equal(t, rows, seen)
}

func TestSliceIterator_Empty(t *testing.T) {
	it := NewSliceIterator(nil)
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}
