// Package loader reads a delimited sales file into an in-memory table.
package loader

import (
	"bytes"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/TFMV/salesdash/table"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
)

// NullValues are the cell contents read as missing.
var NullValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

const defaultChunkSize = 10000

var utf8BOM = []byte("\ufeff")

type options struct {
	delimiter rune
	chunkSize int
	mem       memory.Allocator
	logger    *zap.Logger
}

// Option configures Load and Read.
type Option func(*options)

// WithDelimiter sets the field delimiter. The default is a comma.
func WithDelimiter(r rune) Option {
	return func(o *options) { o.delimiter = r }
}

// WithChunkSize sets how many rows the CSV reader decodes per batch.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithAllocator sets the Arrow allocator for the resulting table.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithLogger sets the logger used for the load status message.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		delimiter: ',',
		chunkSize: defaultChunkSize,
		mem:       table.Pool,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Load reads the delimited file at path. It fails with a FileNotFound
// *Error if path does not exist and an UnexpectedLoadError *Error for any
// other failure.
func Load(path string, opts ...Option) (*table.Table, error) {
	o := buildOptions(opts)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: FileNotFound, Path: path, Err: err}
		}
		return nil, unexpected(path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, unexpected(path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	tbl, err := read(file, o)
	if err != nil {
		return nil, unexpected(path, err)
	}

	o.logger.Info("Dataset loaded successfully",
		zap.String("path", path),
		zap.Int("rows", tbl.NumRows()),
		zap.Int("columns", tbl.NumCols()))
	return tbl, nil
}

// Read parses delimited data from r. Errors are UnexpectedLoadError.
func Read(r io.Reader, opts ...Option) (*table.Table, error) {
	tbl, err := read(r, buildOptions(opts))
	if err != nil {
		return nil, unexpected("", err)
	}
	return tbl, nil
}

func read(r io.Reader, o options) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	// Spreadsheet exports often start with a byte order mark.
	data = bytes.TrimPrefix(data, utf8BOM)

	header, err := readHeader(data, o.delimiter)
	if err != nil {
		return nil, err
	}
	schema := schemaFor(header)

	reader := csv.NewReader(
		bytes.NewReader(data),
		schema,
		csv.WithHeader(true),
		csv.WithComma(o.delimiter),
		csv.WithChunk(o.chunkSize),
		csv.WithAllocator(o.mem),
		csv.WithNullReader(true, NullValues...),
	)
	defer reader.Release()

	var batches []arrow.Record
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		batches = append(batches, rec)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse rows: %w", err)
	}

	return table.FromRecords(schema, batches, o.mem)
}

func readHeader(data []byte, delimiter rune) ([]string, error) {
	cr := stdcsv.NewReader(bytes.NewReader(data))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("no columns to parse from file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return header, nil
}

// schemaFor types every column as text except Sales, which is numeric.
func schemaFor(header []string) *arrow.Schema {
	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if name == table.Sales {
			typ = arrow.PrimitiveTypes.Float64
		}
		fields[i] = arrow.Field{Name: name, Type: typ, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}
