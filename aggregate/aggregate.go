// Package aggregate computes revenue totals over a cleaned sales table.
package aggregate

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/TFMV/salesdash/index"
	"github.com/TFMV/salesdash/table"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ProductRevenue is the summed sales of one product.
type ProductRevenue struct {
	Product string
	Revenue float64
}

// Month is a calendar month key.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf truncates tm to its year and month.
func MonthOf(tm time.Time) Month {
	return Month{Year: tm.Year(), Month: tm.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Before reports whether m is chronologically earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// MonthRevenue is the summed sales of one calendar month.
type MonthRevenue struct {
	Month   Month
	Revenue float64
}

// Summary holds every metric produced for one run.
type Summary struct {
	Total float64
	// ByProduct is ordered by descending revenue; ties keep the order in
	// which products were first seen.
	ByProduct []ProductRevenue
	// ByMonth is ordered chronologically.
	ByMonth []MonthRevenue
}

// Aggregate computes total revenue and revenue grouped by product and by
// month. An empty table yields a zero total and empty series.
func Aggregate(t *table.Table) (*Summary, error) {
	sales, err := salesColumn(t)
	if err != nil {
		return nil, err
	}
	products, err := t.Column(table.Product)
	if err != nil {
		return nil, err
	}
	dateCol, err := t.Column(table.OrderDate)
	if err != nil {
		return nil, err
	}
	dates, ok := dateCol.(*array.Timestamp)
	if !ok {
		return nil, fmt.Errorf("column %q: expected timestamp, got %s", table.OrderDate, dateCol.DataType())
	}
	unit := dates.DataType().(*arrow.TimestampType).Unit

	n := t.NumRows()
	byProduct := index.NewHashIndex(n)
	byMonth := index.NewSortedIndex()
	months := make(map[string]Month)

	summary := &Summary{
		ByProduct: []ProductRevenue{},
		ByMonth:   []MonthRevenue{},
	}

	for i := 0; i < n; i++ {
		if sales.IsNull(i) {
			continue
		}
		summary.Total += sales.value(i)

		if products.IsValid(i) {
			if err := byProduct.Add(uint32(i), products.ValueStr(i)); err != nil {
				return nil, err
			}
		}
		if dates.IsValid(i) {
			m := MonthOf(dates.Value(i).ToTime(unit))
			key := m.String()
			months[key] = m
			if err := byMonth.Add(uint32(i), key); err != nil {
				return nil, err
			}
		}
	}

	for _, p := range byProduct.Keys() {
		summary.ByProduct = append(summary.ByProduct, ProductRevenue{
			Product: p,
			Revenue: sales.sum(byProduct.Search(p).ToArray()),
		})
	}
	sort.SliceStable(summary.ByProduct, func(a, b int) bool {
		return summary.ByProduct[a].Revenue > summary.ByProduct[b].Revenue
	})

	for _, key := range byMonth.Keys() {
		summary.ByMonth = append(summary.ByMonth, MonthRevenue{
			Month:   months[key],
			Revenue: sales.sum(byMonth.Search(key).ToArray()),
		})
	}

	return summary, nil
}

// Print writes the total and both series in a human-readable layout.
func (s *Summary) Print(w io.Writer) error {
	p := message.NewPrinter(language.English)

	if _, err := p.Fprintf(w, "Total Revenue: $%.2f\n", s.Total); err != nil {
		return err
	}

	if _, err := p.Fprintf(w, "Revenue by Product:\n"); err != nil {
		return err
	}
	width := len("Product")
	for _, r := range s.ByProduct {
		width = max(width, len(r.Product))
	}
	for _, r := range s.ByProduct {
		if _, err := p.Fprintf(w, "  %-*s  %.2f\n", width, r.Product, r.Revenue); err != nil {
			return err
		}
	}

	if _, err := p.Fprintf(w, "Revenue by Month:\n"); err != nil {
		return err
	}
	for _, r := range s.ByMonth {
		if _, err := p.Fprintf(w, "  %s  %.2f\n", r.Month, r.Revenue); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// Sales column access
// ---------------------------------------------------------------------

type salesValues struct {
	arrow.Array
	value func(i int) float64
}

func (s salesValues) sum(rows []uint32) float64 {
	var total float64
	for _, r := range rows {
		total += s.value(int(r))
	}
	return total
}

func salesColumn(t *table.Table) (salesValues, error) {
	col, err := t.Column(table.Sales)
	if err != nil {
		return salesValues{}, err
	}
	switch c := col.(type) {
	case *array.Float64:
		return salesValues{Array: c, value: c.Value}, nil
	case *array.Int64:
		return salesValues{Array: c, value: func(i int) float64 { return float64(c.Value(i)) }}, nil
	default:
		return salesValues{}, fmt.Errorf("column %q: expected numeric, got %s", table.Sales, col.DataType())
	}
}
