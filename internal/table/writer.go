// Package table persists batches into one destination table: the table is
// recreated from the first batch's columns, then every batch is appended.
package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/pgload/internal/db"
	"github.com/vvka-141/pgload/internal/logging"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// Options configures a Writer.
type Options struct {
	// IndexColumn, when set, is prepended as a BIGINT holding each row's
	// ordinal in the source.
	IndexColumn string

	Logger pgload.Logger
}

// Writer implements pgload.TableWriter over a single DBConnection.
//
// Thread-Safety: NOT safe for concurrent use.
type Writer struct {
	conn   pgload.DBConnection
	opts   Options
	logger pgload.Logger

	state   pgload.RunState
	table   pgx.Identifier
	columns []pgload.Column
	names   []string
}

// NewWriter returns a Writer in StateNotStarted.
func NewWriter(conn pgload.DBConnection, opts Options) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Writer{conn: conn, opts: opts, logger: logger, state: pgload.StateNotStarted}
}

// State reports where the writer is in the prime-then-append protocol.
func (w *Writer) State() pgload.RunState {
	return w.state
}

// Prime drops the target table if it exists and creates it from the first
// batch's columns. Both statements run in one implicit transaction, so a
// failed CREATE leaves any previous table in place. The batch's rows are
// not written; pass it to Append afterwards.
func (w *Writer) Prime(ctx context.Context, first *pgload.Batch, table string) error {
	if w.state != pgload.StateNotStarted {
		return fmt.Errorf("cannot prime in state %s: %w", w.state, pgload.ErrInvalidState)
	}
	if first == nil || len(first.Columns) == 0 {
		return fmt.Errorf("cannot create a table without columns: %w", pgload.ErrSchemaMismatch)
	}

	ident, err := ParseTableIdentifier(table)
	if err != nil {
		return err
	}

	w.state = pgload.StatePriming

	columns := first.Columns
	if w.opts.IndexColumn != "" {
		for _, c := range columns {
			if c.Name == w.opts.IndexColumn {
				w.state = pgload.StateFailed
				return fmt.Errorf("index column %q collides with a source column: %w", c.Name, pgload.ErrSchemaMismatch)
			}
		}
	}

	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s; %s", ident.Sanitize(), w.createTableSQL(ident, columns))
	w.logger.Verbose("Priming table: %s", sql)

	if _, err := w.conn.Exec(ctx, sql); err != nil {
		w.state = pgload.StateFailed
		return fmt.Errorf("failed to prime table %s: %w", table, db.ClassifyWriteError(err))
	}

	w.table = ident
	w.columns = append([]pgload.Column(nil), columns...)
	w.names = first.ColumnNames()
	if w.opts.IndexColumn != "" {
		w.names = append([]string{w.opts.IndexColumn}, w.names...)
	}

	w.state = pgload.StateAppending
	return nil
}

func (w *Writer) createTableSQL(ident pgx.Identifier, columns []pgload.Column) string {
	defs := make([]string, 0, len(columns)+1)
	if w.opts.IndexColumn != "" {
		defs = append(defs, pgx.Identifier{w.opts.IndexColumn}.Sanitize()+" BIGINT")
	}
	for _, c := range columns {
		defs = append(defs, pgx.Identifier{c.Name}.Sanitize()+" "+c.Type.PostgresType())
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))
}

// Append writes every row of batch with COPY. The copy is all-or-nothing:
// on error no row of this batch is persisted, earlier batches remain, and
// the writer moves to StateFailed.
func (w *Writer) Append(ctx context.Context, batch *pgload.Batch) (int64, error) {
	if w.state != pgload.StateAppending {
		return 0, fmt.Errorf("cannot append in state %s: %w", w.state, pgload.ErrInvalidState)
	}
	if batch == nil || batch.Len() == 0 {
		return 0, nil
	}
	if err := w.checkColumns(batch); err != nil {
		w.state = pgload.StateFailed
		return 0, err
	}

	rows := batch.Rows
	if w.opts.IndexColumn != "" {
		rows = make([][]any, len(batch.Rows))
		for i, r := range batch.Rows {
			row := make([]any, 0, len(r)+1)
			row = append(row, batch.Offset+int64(i))
			rows[i] = append(row, r...)
		}
	}

	n, err := w.conn.CopyFrom(ctx, w.table, w.names, pgx.CopyFromRows(rows))
	if err != nil {
		w.state = pgload.StateFailed
		return 0, fmt.Errorf("chunk %d: %w", batch.Seq, db.ClassifyWriteError(err))
	}
	return n, nil
}

func (w *Writer) checkColumns(batch *pgload.Batch) error {
	if len(batch.Columns) != len(w.columns) {
		return fmt.Errorf("chunk %d has %d columns, table has %d: %w",
			batch.Seq, len(batch.Columns), len(w.columns), pgload.ErrSchemaMismatch)
	}
	for i, c := range batch.Columns {
		if c != w.columns[i] {
			return fmt.Errorf("chunk %d column %d is %s %s, table has %s %s: %w",
				batch.Seq, i+1, c.Name, c.Type, w.columns[i].Name, w.columns[i].Type, pgload.ErrSchemaMismatch)
		}
	}
	for i, row := range batch.Rows {
		if len(row) != len(w.columns) {
			return fmt.Errorf("chunk %d row %d has %d values, want %d: %w",
				batch.Seq, i+1, len(row), len(w.columns), pgload.ErrSchemaMismatch)
		}
	}
	return nil
}

// Complete ends an appending run. Further Append calls fail with ErrInvalidState.
func (w *Writer) Complete() error {
	if w.state != pgload.StateAppending {
		return fmt.Errorf("cannot complete in state %s: %w", w.state, pgload.ErrInvalidState)
	}
	w.state = pgload.StateCompleted
	return nil
}

// ParseTableIdentifier splits "table" or "schema.table" into a pgx.Identifier.
func ParseTableIdentifier(table string) (pgx.Identifier, error) {
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("table name %q has too many parts (want table or schema.table): %w", table, pgload.ErrInvalidConfig)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("table name %q has an empty part: %w", table, pgload.ErrInvalidConfig)
		}
	}
	return pgx.Identifier(parts), nil
}

var _ pgload.TableWriter = (*Writer)(nil)
