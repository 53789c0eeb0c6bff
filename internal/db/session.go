package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// Session is the one destination connection a run holds from open to close.
// It implements pgload.DBConnection.
type Session struct {
	pool      *pgxpool.Pool
	conn      *pgxpool.Conn
	connector pgload.Connector

	closeOnce sync.Once
	closeErr  error
}

// OpenSession connects with the connector matching config.AuthMethod and
// acquires a single connection. Any failure is reported as
// pgload.ErrConnectionFailed, except unusable auth configuration.
// Server notices are logged at verbose level through logger.
func OpenSession(ctx context.Context, config *pgload.ConnectionConfig, logger pgload.Logger) (*Session, error) {
	connector, err := NewConnector(config, logger)
	if err != nil {
		return nil, err
	}
	return openWith(ctx, connector)
}

func openWith(ctx context.Context, connector pgload.Connector) (*Session, error) {
	pool, err := connector.Connect(ctx)
	if err != nil {
		closeConnector(connector)
		if !errors.Is(err, pgload.ErrConnectionFailed) {
			err = fmt.Errorf("%w: %w", pgload.ErrConnectionFailed, err)
		}
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		closeConnector(connector)
		return nil, fmt.Errorf("%w: failed to acquire connection: %w", pgload.ErrConnectionFailed, err)
	}

	return &Session{pool: pool, conn: conn, connector: connector}, nil
}

func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.conn.Exec(ctx, sql, args...)
}

func (s *Session) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	return s.conn.CopyFrom(ctx, table, columns, src)
}

// Close releases the connection, closes the pool and then the connector's
// own resources (the Cloud SQL dialer). Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.conn.Release()
		s.pool.Close()
		s.closeErr = closeConnector(s.connector)
	})
	return s.closeErr
}

func closeConnector(connector pgload.Connector) error {
	if closer, ok := connector.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

var _ pgload.DBConnection = (*Session)(nil)
