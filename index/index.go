// Package index maps column values to the row positions holding them.
package index

import (
	"fmt"
	"sort"

	roaring "github.com/RoaringBitmap/roaring"
	bloom "github.com/bits-and-blooms/bloom/v3"
	murmur3 "github.com/spaolacci/murmur3"
)

// ---------------------------------------------------------------------
// Strategy: Defines which indexing strategy to use
// ---------------------------------------------------------------------

type Strategy int

const (
	HashIndex Strategy = iota
	Bloom
	SortedColumn
)

func (s Strategy) String() string {
	switch s {
	case HashIndex:
		return "hash"
	case Bloom:
		return "bloom"
	case SortedColumn:
		return "sorted"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ---------------------------------------------------------------------
// Index: The universal interface for all index implementations
// ---------------------------------------------------------------------

type Index interface {
	// Add records that rowID holds value
	Add(rowID uint32, value string) error
	// Search returns the rows holding value, or nil if there are none
	Search(value string) *roaring.Bitmap
	// Keys returns the distinct values in strategy order
	Keys() []string
	// Len returns the number of distinct values
	Len() int
	// Clear removes all entries
	Clear()
}

type Settings struct {
	// BloomFilterFPRate is the desired false-positive rate for the Bloom filter
	BloomFilterFPRate float64
	// Capacity is a sizing hint, usually the number of rows to be indexed
	Capacity int
}

// New creates an index of the given strategy.
func New(strategy Strategy, settings Settings) (Index, error) {
	switch strategy {
	case HashIndex:
		return NewHashIndex(settings.Capacity), nil
	case Bloom:
		return NewBloomIndex(settings.Capacity, settings.BloomFilterFPRate)
	case SortedColumn:
		return NewSortedIndex(), nil
	default:
		return nil, fmt.Errorf("unsupported index strategy: %v", strategy)
	}
}

// ---------------------------------------------------------------------
// 1) Hash Index
//
//    Uses Murmur3 to hash each value into a bucket, and within each bucket
//    stores value -> Roaring bitmap of rowIDs. Keys come back in the order
//    they were first added.
// ---------------------------------------------------------------------

type hashIndex struct {
	size    int
	buckets map[uint64]map[string]*roaring.Bitmap
	order   []string
}

// NewHashIndex constructs a new HashIndex
func NewHashIndex(sizeHint int) Index {
	return &hashIndex{
		size:    sizeHint,
		buckets: make(map[uint64]map[string]*roaring.Bitmap, sizeHint),
	}
}

func (h *hashIndex) Add(rowID uint32, value string) error {
	key := murmur3.Sum64([]byte(value))

	submap, ok := h.buckets[key]
	if !ok {
		submap = make(map[string]*roaring.Bitmap)
		h.buckets[key] = submap
	}
	bm, ok := submap[value]
	if !ok {
		bm = roaring.New()
		submap[value] = bm
		h.order = append(h.order, value)
	}
	bm.Add(rowID)
	return nil
}

func (h *hashIndex) Search(value string) *roaring.Bitmap {
	submap, ok := h.buckets[murmur3.Sum64([]byte(value))]
	if !ok {
		return nil
	}
	return submap[value]
}

func (h *hashIndex) Keys() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

func (h *hashIndex) Len() int { return len(h.order) }

func (h *hashIndex) Clear() {
	h.buckets = make(map[uint64]map[string]*roaring.Bitmap, h.size)
	h.order = nil
}

// ---------------------------------------------------------------------
// 2) Bloom Filter Index
//
//    The filter answers "definitely not present" without touching the
//    value map, which is the common case when most rows are distinct.
// ---------------------------------------------------------------------

type bloomIndex struct {
	filter   *bloom.BloomFilter
	values   map[string]*roaring.Bitmap
	order    []string
	capacity uint
	fpRate   float64
}

// NewBloomIndex builds a bloom-backed index sized for capacity values.
func NewBloomIndex(capacity int, fpRate float64) (Index, error) {
	if fpRate <= 0 || fpRate >= 1 {
		return nil, fmt.Errorf("bloom false-positive rate must be in (0, 1), got %v", fpRate)
	}
	if capacity < 1 {
		capacity = 1
	}
	return &bloomIndex{
		filter:   bloom.NewWithEstimates(uint(capacity), fpRate),
		values:   make(map[string]*roaring.Bitmap, capacity),
		capacity: uint(capacity),
		fpRate:   fpRate,
	}, nil
}

func (b *bloomIndex) Add(rowID uint32, value string) error {
	b.filter.AddString(value)

	bm, ok := b.values[value]
	if !ok {
		bm = roaring.New()
		b.values[value] = bm
		b.order = append(b.order, value)
	}
	bm.Add(rowID)
	return nil
}

func (b *bloomIndex) Search(value string) *roaring.Bitmap {
	if !b.filter.TestString(value) {
		return nil
	}
	return b.values[value]
}

func (b *bloomIndex) Keys() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

func (b *bloomIndex) Len() int { return len(b.order) }

func (b *bloomIndex) Clear() {
	b.filter = bloom.NewWithEstimates(b.capacity, b.fpRate)
	b.values = make(map[string]*roaring.Bitmap)
	b.order = nil
}

// ---------------------------------------------------------------------
// 3) Sorted Column Index
//
//    Keeps distinct values in ascending order. Insertion of a new value
//    is O(n), lookups are O(log n).
// ---------------------------------------------------------------------

type sortedIndex struct {
	entries []sortedEntry
}

type sortedEntry struct {
	value string
	rows  *roaring.Bitmap
}

func NewSortedIndex() Index {
	return &sortedIndex{}
}

func (s *sortedIndex) find(value string) (int, bool) {
	pos := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].value >= value
	})
	return pos, pos < len(s.entries) && s.entries[pos].value == value
}

func (s *sortedIndex) Add(rowID uint32, value string) error {
	pos, ok := s.find(value)
	if !ok {
		s.entries = append(s.entries, sortedEntry{})
		copy(s.entries[pos+1:], s.entries[pos:])
		s.entries[pos] = sortedEntry{value: value, rows: roaring.New()}
	}
	s.entries[pos].rows.Add(rowID)
	return nil
}

func (s *sortedIndex) Search(value string) *roaring.Bitmap {
	pos, ok := s.find(value)
	if !ok {
		return nil
	}
	return s.entries[pos].rows
}

func (s *sortedIndex) Keys() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.value
	}
	return out
}

func (s *sortedIndex) Len() int { return len(s.entries) }

func (s *sortedIndex) Clear() {
	s.entries = nil
}
