package pgload

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connector abstracts how a connection pool to the destination is established.
type Connector interface {
	Connect(ctx context.Context) (*pgxpool.Pool, error)
}

// DBConnection is the single destination connection held for the whole run.
//
// Thread-Safety: NOT safe for concurrent use. A run owns exactly one.
type DBConnection interface {
	// Exec executes a statement without returning any rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// CopyFrom bulk-loads rows with the COPY protocol and returns the row count.
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)

	// Close releases the connection and everything acquired to obtain it.
	// Idempotent.
	Close() error
}

// BatchSource is a lazy, finite, non-restartable sequence of batches.
type BatchSource interface {
	// Columns returns the resolved column set every batch carries.
	Columns() []Column

	// Next returns the next batch, or io.EOF once the source is exhausted.
	Next(ctx context.Context) (*Batch, error)

	Close() error
}

// TableWriter persists batches using the prime-then-append protocol.
type TableWriter interface {
	// Prime drops and recreates the table from the first batch's columns.
	Prime(ctx context.Context, first *Batch, table string) error

	// Append writes all rows of the batch and returns the count written.
	Append(ctx context.Context, batch *Batch) (int64, error)

	// Complete marks the run finished.
	Complete() error

	State() RunState
}
