// Package cleaner normalizes a loaded sales table: rows with missing values
// are dropped, order dates are parsed, and exact duplicates are removed.
//
// Malformed rows are dropped silently. Callers that want to know how many
// rows went where can pass WithStats.
package cleaner

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/TFMV/salesdash/index"
	"github.com/TFMV/salesdash/table"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/araddon/dateparse"
	"github.com/golang/groupcache/lru"
)

const (
	DefaultCacheSize   = 1024
	DefaultBloomFPRate = 0.01
)

// Stats counts the rows removed by each cleaning step.
type Stats struct {
	NullRows   int
	BadDates   int
	Duplicates int
}

type options struct {
	dateColumn string
	cacheSize  int
	fpRate     float64
	mem        memory.Allocator
	stats      *Stats
}

// Option configures Clean.
type Option func(*options)

// WithDateColumn names the column parsed as the order date.
func WithDateColumn(name string) Option {
	return func(o *options) { o.dateColumn = name }
}

// WithCacheSize bounds the number of memoised date parses.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithBloomFPRate sets the false-positive rate of the duplicate filter.
func WithBloomFPRate(rate float64) Option {
	return func(o *options) { o.fpRate = rate }
}

// WithAllocator sets the Arrow allocator for intermediate and output tables.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithStats receives per-step drop counts.
func WithStats(s *Stats) Option {
	return func(o *options) { o.stats = s }
}

// Clean returns a new table with null rows, unparseable dates and
// duplicates removed. The input table is left untouched.
func Clean(t *table.Table, opts ...Option) (*table.Table, error) {
	o := options{
		dateColumn: table.OrderDate,
		cacheSize:  DefaultCacheSize,
		fpRate:     DefaultBloomFPRate,
		mem:        table.Pool,
	}
	for _, opt := range opts {
		opt(&o)
	}
	stats := o.stats
	if stats == nil {
		stats = &Stats{}
	}
	*stats = Stats{}

	// Order matters: pre-existing nulls go first, parse failures second.
	complete, err := dropNulls(t, o.mem)
	if err != nil {
		return nil, err
	}
	defer complete.Release()
	stats.NullRows = t.NumRows() - complete.NumRows()

	parsed, err := parseDates(complete, o)
	if err != nil {
		return nil, err
	}
	defer parsed.Release()

	dated, err := dropNullDates(parsed, o)
	if err != nil {
		return nil, err
	}
	defer dated.Release()
	stats.BadDates = parsed.NumRows() - dated.NumRows()

	out, err := dropDuplicates(dated, o)
	if err != nil {
		return nil, err
	}
	stats.Duplicates = dated.NumRows() - out.NumRows()
	return out, nil
}

func dropNulls(t *table.Table, mem memory.Allocator) (*table.Table, error) {
	keep := roaring.New()
	for i := 0; i < t.NumRows(); i++ {
		if !t.HasNull(i) {
			keep.Add(uint32(i))
		}
	}
	out, err := t.Filter(keep, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to drop null rows: %w", err)
	}
	return out, nil
}

func parseDates(t *table.Table, o options) (*table.Table, error) {
	col, err := t.Column(o.dateColumn)
	if err != nil {
		return nil, err
	}

	switch col.DataType().ID() {
	case arrow.TIMESTAMP:
		return table.New(t.Record()), nil
	case arrow.STRING:
	default:
		return nil, fmt.Errorf("column %q has unsupported type %s", o.dateColumn, col.DataType())
	}

	text := col.(*array.String)
	parser := newDateParser(o.cacheSize)

	builder := array.NewTimestampBuilder(o.mem, table.DateType.(*arrow.TimestampType))
	defer builder.Release()
	builder.Reserve(text.Len())

	for i := 0; i < text.Len(); i++ {
		if text.IsNull(i) {
			builder.AppendNull()
			continue
		}
		ts, ok := parser.parse(text.Value(i))
		if !ok {
			builder.AppendNull()
			continue
		}
		builder.Append(ts)
	}

	dates := builder.NewArray()
	defer dates.Release()
	return t.ReplaceColumn(o.dateColumn, dates)
}

func dropNullDates(t *table.Table, o options) (*table.Table, error) {
	col, err := t.Column(o.dateColumn)
	if err != nil {
		return nil, err
	}
	keep := roaring.New()
	for i := 0; i < col.Len(); i++ {
		if col.IsValid(i) {
			keep.Add(uint32(i))
		}
	}
	out, err := t.Filter(keep, o.mem)
	if err != nil {
		return nil, fmt.Errorf("failed to drop invalid dates: %w", err)
	}
	return out, nil
}

// dropDuplicates keeps the first occurrence of every distinct row.
func dropDuplicates(t *table.Table, o options) (*table.Table, error) {
	seen, err := index.New(index.Bloom, index.Settings{
		BloomFilterFPRate: o.fpRate,
		Capacity:          t.NumRows(),
	})
	if err != nil {
		return nil, err
	}

	keep := roaring.New()
	for i := 0; i < t.NumRows(); i++ {
		key := t.RowKey(i)
		if seen.Search(key) != nil {
			continue
		}
		if err := seen.Add(uint32(i), key); err != nil {
			return nil, err
		}
		keep.Add(uint32(i))
	}
	out, err := t.Filter(keep, o.mem)
	if err != nil {
		return nil, fmt.Errorf("failed to drop duplicates: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------
// Date parsing
// ---------------------------------------------------------------------

type parsedDate struct {
	ts arrow.Timestamp
	ok bool
}

// dateParser memoises parse results; order dates repeat heavily.
type dateParser struct {
	cache *lru.Cache
}

func newDateParser(size int) *dateParser {
	return &dateParser{cache: lru.New(size)}
}

func (p *dateParser) parse(s string) (arrow.Timestamp, bool) {
	if v, ok := p.cache.Get(s); ok {
		d := v.(parsedDate)
		return d.ts, d.ok
	}
	ts, ok := ParseDate(s)
	p.cache.Add(s, parsedDate{ts: ts, ok: ok})
	return ts, ok
}

// ParseDate parses date-like text into a second-resolution timestamp.
// Ambiguous numeric dates are read month first. A date carrying a UTC
// offset keeps its local wall-clock reading, so the calendar day and month
// are the ones written in the input.
func ParseDate(s string) (arrow.Timestamp, bool) {
	tm, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return 0, false
	}
	wall := time.Date(tm.Year(), tm.Month(), tm.Day(), tm.Hour(), tm.Minute(), tm.Second(), 0, time.UTC)
	return arrow.Timestamp(wall.Unix()), true
}
