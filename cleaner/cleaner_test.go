package cleaner

import (
	"strings"
	"testing"
	"time"

	"github.com/TFMV/salesdash/loader"
	"github.com/TFMV/salesdash/table"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func readTable(t require.TestingT, csv string, mem memory.Allocator) *table.Table {
	tbl, err := loader.Read(strings.NewReader(csv), loader.WithAllocator(mem))
	require.NoError(t, err)
	return tbl
}

func rowKeys(t *table.Table) []string {
	keys := make([]string, t.NumRows())
	for i := range keys {
		keys[i] = t.RowKey(i)
	}
	return keys
}

func TestCleanScenario(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	in := readTable(t, `Order Date,Product,Sales
2023-01-05,A,100
2023-01-05,A,100
bad-date,B,50
2023-02-01,B,200
`, mem)
	defer in.Release()

	var stats Stats
	out, err := Clean(in, WithAllocator(mem), WithStats(&stats))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 2, out.NumRows())
	assert.Equal(t, Stats{NullRows: 0, BadDates: 1, Duplicates: 1}, stats)
	assert.Equal(t, 4, in.NumRows(), "input must not be mutated")

	dates, err := out.Column(table.OrderDate)
	require.NoError(t, err)
	require.Equal(t, arrow.TIMESTAMP, dates.DataType().ID())

	ts := dates.(*array.Timestamp)
	assert.Equal(t, time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC).Unix(), int64(ts.Value(0)))
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC).Unix(), int64(ts.Value(1)))

	products, err := out.Column(table.Product)
	require.NoError(t, err)
	assert.Equal(t, "A", products.ValueStr(0))
	assert.Equal(t, "B", products.ValueStr(1))
}

func TestCleanDropsNullsBeforeParsing(t *testing.T) {
	in := readTable(t, `Order Date,Product,Sales,Note
2023-01-05,A,100,
2023-01-06,,100,x
2023-01-07,C,,x
,D,10,x
2023-01-08,E,10,x
`, memory.DefaultAllocator)
	defer in.Release()

	var stats Stats
	out, err := Clean(in, WithStats(&stats))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 1, out.NumRows())
	assert.Equal(t, 4, stats.NullRows)
	assert.Equal(t, 0, stats.BadDates)
}

func TestCleanDuplicatesAfterParsing(t *testing.T) {
	in := readTable(t, `Order Date,Product,Sales
2023-01-05,A,100
01/05/2023,A,100
2023-01-05,A,101
`, memory.DefaultAllocator)
	defer in.Release()

	out, err := Clean(in)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 2, out.NumRows())
}

func TestCleanKeepsRowsDifferingAcrossCells(t *testing.T) {
	in := readTable(t, "Order Date,Sales,Product,Note\n"+
		"2023-01-05,1,A\x1fB,C\n"+
		"2023-01-05,1,A,B\x1fC\n", memory.DefaultAllocator)
	defer in.Release()

	var stats Stats
	out, err := Clean(in, WithStats(&stats))
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 2, out.NumRows())
	assert.Zero(t, stats.Duplicates)
}

func TestCleanMissingDateColumn(t *testing.T) {
	in := readTable(t, "Product,Sales\nA,1\n", memory.DefaultAllocator)
	defer in.Release()

	_, err := Clean(in)
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
}

func TestCleanUnsupportedDateType(t *testing.T) {
	in := readTable(t, "Sales,Product\n1,A\n", memory.DefaultAllocator)
	defer in.Release()

	_, err := Clean(in, WithDateColumn(table.Sales))
	assert.Error(t, err)
}

func TestCleanHeadersOnly(t *testing.T) {
	in := readTable(t, "Order Date,Product,Sales\n", memory.DefaultAllocator)
	defer in.Release()

	out, err := Clean(in)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, 0, out.NumRows())
	assert.Equal(t, 3, out.NumCols())
}

func TestCleanRejectsBadBloomRate(t *testing.T) {
	in := readTable(t, "Order Date,Product,Sales\n2023-01-05,A,1\n", memory.DefaultAllocator)
	defer in.Release()

	_, err := Clean(in, WithBloomFPRate(0))
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2023-01-05", time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"2023/01/05", time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"01/05/2023", time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"2023-01-05 13:45:00", time.Date(2023, 1, 5, 13, 45, 0, 0, time.UTC), true},
		{"2023-01-31T23:30:00-05:00", time.Date(2023, 1, 31, 23, 30, 0, 0, time.UTC), true},
		{"2023-02-01T00:15:00+09:00", time.Date(2023, 2, 1, 0, 15, 0, 0, time.UTC), true},
		{"bad-date", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ts, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want.Unix(), int64(ts))
			}
		})
	}
}

func TestDateParserCache(t *testing.T) {
	p := newDateParser(2)

	ts1, ok := p.parse("2023-01-05")
	require.True(t, ok)
	ts2, ok := p.parse("2023-01-05")
	require.True(t, ok)
	assert.Equal(t, ts1, ts2)
	assert.Equal(t, 1, p.cache.Len())

	_, ok = p.parse("nope")
	assert.False(t, ok)
	_, ok = p.parse("nope")
	assert.False(t, ok)
	assert.Equal(t, 2, p.cache.Len())
}

type genRow struct {
	date, product, sales string
}

func genCSV(t *rapid.T) string {
	row := rapid.Custom(func(t *rapid.T) genRow {
		return genRow{
			date:    rapid.SampledFrom([]string{"2023-01-05", "2023-02-01", "01/15/2023", "2022-12-31", "bad-date", ""}).Draw(t, "date"),
			product: rapid.SampledFrom([]string{"A", "B", "C", ""}).Draw(t, "product"),
			sales:   rapid.SampledFrom([]string{"100", "50", "200.5", "0", ""}).Draw(t, "sales"),
		}
	})
	rows := rapid.SliceOfN(row, 0, 40).Draw(t, "rows")

	var sb strings.Builder
	sb.WriteString("Order Date,Product,Sales\n")
	for _, r := range rows {
		sb.WriteString(r.date + "," + r.product + "," + r.sales + "\n")
	}
	return sb.String()
}

func TestCleanProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := readTable(t, genCSV(t), memory.DefaultAllocator)
		defer in.Release()

		out, err := Clean(in)
		require.NoError(t, err)
		defer out.Release()

		seen := make(map[string]bool)
		for _, k := range rowKeys(out) {
			if seen[k] {
				t.Fatalf("duplicate row %q after cleaning", k)
			}
			seen[k] = true
		}

		dates, err := out.Column(table.OrderDate)
		require.NoError(t, err)
		if dates.NullN() != 0 {
			t.Fatalf("%d null order dates after cleaning", dates.NullN())
		}
		for i := 0; i < out.NumRows(); i++ {
			if out.HasNull(i) {
				t.Fatalf("row %d has a null after cleaning", i)
			}
		}

		again, err := Clean(out)
		require.NoError(t, err)
		defer again.Release()

		if !again.Schema().Equal(out.Schema()) {
			t.Fatalf("schema changed on second clean: %s vs %s", again.Schema(), out.Schema())
		}
		assert.Equal(t, rowKeys(out), rowKeys(again))
	})
}
