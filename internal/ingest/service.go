// Package ingest drives one loading run: it pulls batches from a source one
// at a time and writes each through a table writer before pulling the next.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/vvka-141/pgload/internal/db"
	"github.com/vvka-141/pgload/internal/source"
	"github.com/vvka-141/pgload/internal/table"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// ConnOpener opens the run's single destination connection.
type ConnOpener func(ctx context.Context, config *pgload.ConnectionConfig) (pgload.DBConnection, error)

// SourceOpener opens the run's batch source.
type SourceOpener func(ctx context.Context, opts pgload.SourceOptions) (pgload.BatchSource, error)

// Service runs ingestion.
// Thread-Safety: a Service holds no per-run state; concurrent Run calls
// each use their own connection and source.
type Service struct {
	openConn   ConnOpener
	openSource SourceOpener
	logger     pgload.Logger
}

// NewService creates a Service with its dependencies injected.
// Panics on nil dependencies: those are wiring errors, not runtime conditions.
func NewService(openConn ConnOpener, openSource SourceOpener, logger pgload.Logger) *Service {
	if openConn == nil {
		panic("openConn cannot be nil")
	}
	if openSource == nil {
		panic("openSource cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Service{openConn: openConn, openSource: openSource, logger: logger}
}

// NewDefaultService wires the PostgreSQL session and the CSV source reader.
func NewDefaultService(logger pgload.Logger) *Service {
	return NewService(SessionOpener(logger), OpenSource, logger)
}

// SessionOpener adapts db.OpenSession to ConnOpener, logging server
// notices through logger.
func SessionOpener(logger pgload.Logger) ConnOpener {
	return func(ctx context.Context, config *pgload.ConnectionConfig) (pgload.DBConnection, error) {
		session, err := db.OpenSession(ctx, config, logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// OpenSource adapts source.Open to SourceOpener.
func OpenSource(ctx context.Context, opts pgload.SourceOptions) (pgload.BatchSource, error) {
	reader, err := source.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return reader, nil
}

// Run loads config.Source into config.TargetTable.
//
// The destination is opened before the source so that an unreachable
// database never leads to a dropped table. The returned RunResult is never
// nil; on failure it reports the batches committed before the error.
func (s *Service) Run(ctx context.Context, config pgload.IngestConfig) (*pgload.RunResult, error) {
	result := &pgload.RunResult{RunID: uuid.New(), State: pgload.StateNotStarted}
	start := time.Now()
	defer func() { result.Elapsed = time.Since(start) }()

	if err := config.Validate(); err != nil {
		result.State = pgload.StateFailed
		return result, err
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	s.logger.Verbose("Run %s: %s -> %s@%s:%d/%s table %s (chunk size %d)",
		result.RunID, config.Source.Location, config.Connection.Username, config.Connection.Host,
		config.Connection.Port, config.Connection.Database, config.TargetTable, config.Source.ChunkSize)

	err := s.run(ctx, config, result)
	if err != nil {
		result.State = pgload.StateFailed
		return result, err
	}

	s.logger.Info("Data ingestion complete: %d rows in %d chunks (%s)",
		result.Rows, result.Batches, time.Since(start).Round(time.Millisecond))
	return result, nil
}

func (s *Service) run(ctx context.Context, config pgload.IngestConfig, result *pgload.RunResult) error {
	conn, err := s.openConn(ctx, &config.Connection)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			s.logger.Verbose("Closing destination connection: %v", cerr)
		}
	}()
	s.logger.Verbose("Connected to %s:%d/%s", config.Connection.Host, config.Connection.Port, config.Connection.Database)

	src, err := s.openSource(ctx, config.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	writer := table.NewWriter(conn, table.Options{IndexColumn: config.IndexColumn, Logger: s.logger})
	err = s.load(ctx, src, writer, config.TargetTable, result)
	result.State = writer.State()
	return err
}

// load primes the table with the first batch and appends every batch,
// reporting progress after each one.
func (s *Service) load(ctx context.Context, src pgload.BatchSource, writer pgload.TableWriter, target string, result *pgload.RunResult) error {
	chunkStart := time.Now()

	batch, err := src.Next(ctx)
	switch {
	case errors.Is(err, io.EOF):
		// Zero rows: the table is still created, from the source columns.
		batch = &pgload.Batch{Columns: src.Columns()}
	case err != nil:
		return err
	}

	if err := writer.Prime(ctx, batch, target); err != nil {
		return err
	}

	for batch.Len() > 0 {
		n, err := writer.Append(ctx, batch)
		if err != nil {
			return err
		}
		result.Batches++
		result.Rows += n
		s.logger.Info("Inserted chunk %d (%d rows, %d total), took %.3f seconds",
			batch.Seq, n, result.Rows, time.Since(chunkStart).Seconds())

		chunkStart = time.Now()
		batch, err = src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("after %d rows: %w", result.Rows, err)
		}
	}

	return writer.Complete()
}
