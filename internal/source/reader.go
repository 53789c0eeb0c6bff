package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vvka-141/pgload/pkg/pgload"
)

var errReaderClosed = errors.New("reader is closed")

// maxPreallocRows caps the row capacity reserved up front; larger chunks
// grow as rows arrive.
const maxPreallocRows = 4096

// Reader produces batches of at most ChunkSize rows from a delimited stream.
// It is a single forward pass: once exhausted or failed it stays that way.
//
// Thread-Safety: NOT safe for concurrent use.
type Reader struct {
	opts    pgload.SourceOptions
	csv     *csv.Reader
	columns []pgload.Column
	closers []func() error

	seq    int
	offset int64
	done   bool
	err    error
	closed bool
}

// Open opens the location and reads the header row. Failure to reach the
// location is reported as pgload.ErrSourceUnavailable; a header that does
// not cover the schema as pgload.ErrSchemaMismatch.
func Open(ctx context.Context, opts pgload.SourceOptions) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	rc, err := openLocation(ctx, opts.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v: %w", opts.Location, err, pgload.ErrSourceUnavailable)
	}

	r, err := newReader(rc, opts)
	if err != nil {
		rc.Close()
		return nil, err
	}
	r.closers = append(r.closers, rc.Close)
	return r, nil
}

// NewReader builds a Reader over an already open stream. The caller keeps
// ownership of r.
func NewReader(r io.Reader, opts pgload.SourceOptions) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return newReader(r, opts)
}

func newReader(r io.Reader, opts pgload.SourceOptions) (*Reader, error) {
	plain, closeDecoder, err := decompress(r)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, pgload.ErrSourceUnavailable)
	}

	cr := csv.NewReader(skipBOM(plain))
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}

	reader := &Reader{
		opts:    opts,
		csv:     cr,
		closers: []func() error{closeDecoder},
	}

	header, err := cr.Read()
	switch {
	case errors.Is(err, io.EOF):
		// No header at all: the descriptor alone defines the columns.
		reader.columns = opts.Schema.DeclaredColumns()
		reader.done = true
		return reader, nil
	case err != nil:
		closeDecoder()
		return nil, classifyReadError(err)
	}

	columns, err := resolveColumns(header, opts.Schema)
	if err != nil {
		closeDecoder()
		return nil, err
	}
	reader.columns = columns
	return reader, nil
}

// resolveColumns types each header column from the schema. Undeclared
// columns load as text; declared columns missing from the header are an error.
func resolveColumns(header []string, schema pgload.Schema) ([]pgload.Column, error) {
	columns := make([]pgload.Column, len(header))
	seen := make(map[string]bool, len(header))

	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("header column %d has no name: %w", i+1, pgload.ErrSchemaMismatch)
		}
		if seen[name] {
			return nil, fmt.Errorf("header column %q appears more than once: %w", name, pgload.ErrSchemaMismatch)
		}
		seen[name] = true

		ct, _ := schema.Lookup(name)
		columns[i] = pgload.Column{Name: name, Type: ct}
	}

	var missing []string
	for _, c := range schema.DeclaredColumns() {
		if !seen[c.Name] {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("schema columns missing from source header: %s: %w",
			strings.Join(missing, ", "), pgload.ErrSchemaMismatch)
	}

	return columns, nil
}

// Columns returns the resolved column set shared by every batch.
func (r *Reader) Columns() []pgload.Column {
	out := make([]pgload.Column, len(r.columns))
	copy(out, r.columns)
	return out
}

// Next reads and coerces up to ChunkSize rows. It returns io.EOF once the
// source is exhausted; a batch containing any value that cannot be coerced
// is rejected whole with pgload.ErrSchemaMismatch.
func (r *Reader) Next(ctx context.Context) (*pgload.Batch, error) {
	if r.closed {
		return nil, errReaderClosed
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seq := r.seq + 1
	rows := make([][]any, 0, min(r.opts.ChunkSize, maxPreallocRows))
	for len(rows) < r.opts.ChunkSize {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return nil, r.fail(fmt.Errorf("chunk %d: %w", seq, classifyReadError(err)))
		}

		row, err := r.coerceRecord(record)
		if err != nil {
			return nil, r.fail(fmt.Errorf("chunk %d: %w", seq, err))
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}

	r.seq = seq
	batch := &pgload.Batch{
		Seq:     seq,
		Offset:  r.offset,
		Columns: r.columns,
		Rows:    rows,
	}
	r.offset += int64(len(rows))
	return batch, nil
}

func (r *Reader) coerceRecord(record []string) ([]any, error) {
	line, _ := r.csv.FieldPos(0)
	if len(record) != len(r.columns) {
		return nil, fmt.Errorf("line %d: expected %d fields, got %d: %w",
			line, len(r.columns), len(record), pgload.ErrSchemaMismatch)
	}

	row := make([]any, len(record))
	for i, raw := range record {
		v, err := Coerce(raw, r.columns[i].Type)
		if err != nil {
			return nil, fmt.Errorf("line %d, column %q: cannot parse %q as %s (%v): %w",
				line, r.columns[i].Name, raw, r.columns[i].Type, err, pgload.ErrSchemaMismatch)
		}
		row[i] = v
	}
	return row, nil
}

func (r *Reader) fail(err error) error {
	r.err = err
	return err
}

// classifyReadError separates malformed CSV from failures to read bytes.
func classifyReadError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("malformed CSV: %v: %w", parseErr, pgload.ErrSchemaMismatch)
	}
	return fmt.Errorf("read failed: %v: %w", err, pgload.ErrSourceUnavailable)
}

// Close releases the decoder and the underlying stream. Idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ pgload.BatchSource = (*Reader)(nil)
