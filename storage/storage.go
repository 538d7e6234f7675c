// Package storage persists tables in the Arrow IPC file format.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/TFMV/salesdash/table"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Compression names a buffer codec for snapshot files.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
	CompressionZstd Compression = "zstd"
)

// ParseCompression maps a codec name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch c := Compression(name); c {
	case CompressionNone, CompressionLZ4, CompressionZstd:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression %q", name)
	}
}

func (c Compression) writerOption() (ipc.Option, bool) {
	switch c {
	case CompressionLZ4:
		return ipc.WithLZ4(), true
	case CompressionZstd:
		return ipc.WithZstd(), true
	default:
		return nil, false
	}
}

// Option configures SaveTable.
type Option func(*options)

type options struct {
	compression Compression
}

// WithCompression compresses record buffers with c. Readers decompress
// transparently.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// SaveTable writes t to path in the Arrow IPC file format, creating the
// parent directory if needed. An existing file is replaced.
func SaveTable(path string, t *table.Table, opts ...Option) (err error) {
	o := options{compression: CompressionNone}
	for _, opt := range opts {
		opt(&o)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	// 1. Open file for writing
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %q: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file %q: %w", path, cerr)
		}
	}()

	// 2. Create an Arrow IPC FileWriter with the table's schema.
	writerOpts := []ipc.Option{
		ipc.WithSchema(t.Schema()),
		ipc.WithAllocator(memory.NewGoAllocator()),
	}
	if codec, ok := o.compression.writerOption(); ok {
		writerOpts = append(writerOpts, codec)
	}
	writer, err := ipc.NewFileWriter(file, writerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create Arrow file writer: %w", err)
	}

	// 3. Write the single record; Close writes the footer.
	if err := writer.Write(t.Record()); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write record to Arrow file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize Arrow file: %w", err)
	}
	return nil
}

// LoadTable reads a table written by SaveTable.
func LoadTable(path string, mem memory.Allocator) (*table.Table, error) {
	if mem == nil {
		mem = table.Pool
	}

	// 1. Open file for reading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	// 2. Create an Arrow IPC FileReader
	reader, err := ipc.NewFileReader(file, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow file reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	// 3. Collect every record and merge them into one table.
	n := reader.NumRecords()
	recs := make([]arrow.Record, 0, n)
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	for i := 0; i < n; i++ {
		rec, err := reader.RecordAt(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d from file: %w", i, err)
		}
		recs = append(recs, rec)
	}

	return table.FromRecords(reader.Schema(), recs, mem)
}
