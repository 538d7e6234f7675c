// Package table implements the in-memory sales table on top of Apache Arrow.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Column names of the sales dataset. Matching is exact and case-sensitive.
const (
	OrderDate = "Order Date"
	Product   = "Product"
	Sales     = "Sales"
)

// Pool is the Go memory allocator used by Arrow when callers pass none.
var Pool = memory.NewGoAllocator()

// ErrColumnNotFound is returned when a named column is absent from the schema.
var ErrColumnNotFound = errors.New("column not found")

// DateType is the Arrow type of a parsed Order Date column.
var DateType = arrow.FixedWidthTypes.Timestamp_s

// ---------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------

// Table is an ordered sequence of rows sharing a fixed column set. It
// owns one reference to its underlying record; call Release when done.
type Table struct {
	record arrow.Record
}

// New wraps rec in a Table. The table takes its own reference.
func New(rec arrow.Record) *Table {
	rec.Retain()
	return &Table{record: rec}
}

// Empty returns a table with the given schema and no rows.
func Empty(schema *arrow.Schema, mem memory.Allocator) *Table {
	if mem == nil {
		mem = Pool
	}
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	rec := builder.NewRecord()
	defer rec.Release()
	return New(rec)
}

// Schema returns the table schema.
func (t *Table) Schema() *arrow.Schema { return t.record.Schema() }

// Record returns the underlying record without transferring ownership.
func (t *Table) Record() arrow.Record { return t.record }

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return int(t.record.NumRows()) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return int(t.record.NumCols()) }

// Release drops the table's reference to its record.
func (t *Table) Release() {
	if t.record != nil {
		t.record.Release()
		t.record = nil
	}
}

// Column returns the column named name.
func (t *Table) Column(name string) (arrow.Array, error) {
	idx := t.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return t.record.Column(idx[0]), nil
}

// HasNull reports whether row i has a null in any column.
func (t *Table) HasNull(i int) bool {
	for _, col := range t.record.Columns() {
		if col.IsNull(i) {
			return true
		}
	}
	return false
}

// RowKey returns a string identifying the full contents of row i. Two rows
// have equal keys exactly when every column holds the same value. Each cell
// is written as "<len>:<value>", and a null as "-", so cell contents can
// never run into their neighbours.
func (t *Table) RowKey(i int) string {
	var sb strings.Builder
	for _, col := range t.record.Columns() {
		if col.IsNull(i) {
			sb.WriteByte('-')
			continue
		}
		v := col.ValueStr(i)
		sb.WriteString(strconv.Itoa(len(v)))
		sb.WriteByte(':')
		sb.WriteString(v)
	}
	return sb.String()
}

// ---------------------------------------------------------------------
// Derivations
// ---------------------------------------------------------------------

// Filter returns a new table holding only the rows in keep, in their
// original order.
func (t *Table) Filter(keep *roaring.Bitmap, mem memory.Allocator) (*Table, error) {
	if mem == nil {
		mem = Pool
	}
	n := t.NumRows()
	if keep.GetCardinality() == uint64(n) {
		return New(t.record), nil
	}

	runs := contiguousRuns(keep)
	cols := make([]arrow.Array, 0, t.NumCols())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	var rows int64
	for _, r := range runs {
		rows += r[1] - r[0]
	}

	for c, col := range t.record.Columns() {
		if len(runs) == 0 {
			cols = append(cols, array.NewSlice(col, 0, 0))
			continue
		}
		slices := make([]arrow.Array, len(runs))
		for i, r := range runs {
			slices[i] = array.NewSlice(col, r[0], r[1])
		}
		merged, err := array.Concatenate(slices, mem)
		for _, s := range slices {
			s.Release()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to concatenate column %q: %w", t.Schema().Field(c).Name, err)
		}
		cols = append(cols, merged)
	}

	rec := array.NewRecord(t.Schema(), cols, rows)
	defer rec.Release()
	return New(rec), nil
}

// ReplaceColumn returns a new table where the column named name is
// replaced by arr. The field type follows arr.
func (t *Table) ReplaceColumn(name string, arr arrow.Array) (*Table, error) {
	idx := t.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	if int64(arr.Len()) != t.record.NumRows() {
		return nil, fmt.Errorf("column %q has %d rows, table has %d", name, arr.Len(), t.record.NumRows())
	}

	fields := make([]arrow.Field, len(t.Schema().Fields()))
	copy(fields, t.Schema().Fields())
	fields[idx[0]] = arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}

	cols := make([]arrow.Array, t.NumCols())
	copy(cols, t.record.Columns())
	cols[idx[0]] = arr

	md := t.Schema().Metadata()
	rec := array.NewRecord(arrow.NewSchema(fields, &md), cols, t.record.NumRows())
	defer rec.Release()
	return New(rec), nil
}

// contiguousRuns converts a row set into half-open [start, end) ranges.
func contiguousRuns(keep *roaring.Bitmap) [][2]int64 {
	var runs [][2]int64
	it := keep.Iterator()
	for it.HasNext() {
		row := int64(it.Next())
		if n := len(runs); n > 0 && runs[n-1][1] == row {
			runs[n-1][1]++
			continue
		}
		runs = append(runs, [2]int64{row, row + 1})
	}
	return runs
}

// FromRecords concatenates record batches sharing schema into one table.
// The batches are not released.
func FromRecords(schema *arrow.Schema, recs []arrow.Record, mem memory.Allocator) (*Table, error) {
	if mem == nil {
		mem = Pool
	}
	switch len(recs) {
	case 0:
		return Empty(schema, mem), nil
	case 1:
		return New(recs[0]), nil
	}

	var rows int64
	for _, r := range recs {
		if !r.Schema().Equal(schema) {
			return nil, fmt.Errorf("record schema %s does not match table schema %s", r.Schema(), schema)
		}
		rows += r.NumRows()
	}

	cols := make([]arrow.Array, 0, len(schema.Fields()))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for c := range schema.Fields() {
		parts := make([]arrow.Array, len(recs))
		for i, r := range recs {
			parts[i] = r.Column(c)
		}
		merged, err := array.Concatenate(parts, mem)
		if err != nil {
			return nil, fmt.Errorf("failed to concatenate column %q: %w", schema.Field(c).Name, err)
		}
		cols = append(cols, merged)
	}

	rec := array.NewRecord(schema, cols, rows)
	defer rec.Release()
	return New(rec), nil
}
