package ingest_test

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pgload/internal/source"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// mockDBConnection is a test double for pgload.DBConnection
type mockDBConnection struct {
	copyErrAt int // 1-based COPY call that fails; 0 = never
	copyErr   error

	execs     []string
	copied    []int
	copyCalls int
	closed    int
}

func (m *mockDBConnection) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (m *mockDBConnection) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	m.copyCalls++
	if m.copyCalls == m.copyErrAt {
		return 0, m.copyErr
	}
	n := 0
	for src.Next() {
		if _, err := src.Values(); err != nil {
			return 0, err
		}
		n++
	}
	m.copied = append(m.copied, n)
	return int64(n), nil
}

func (m *mockDBConnection) Close() error {
	m.closed++
	return nil
}

func connOpener(conn *mockDBConnection) func(context.Context, *pgload.ConnectionConfig) (pgload.DBConnection, error) {
	return func(context.Context, *pgload.ConnectionConfig) (pgload.DBConnection, error) {
		return conn, nil
	}
}

// csvSource serves data from memory through the real CSV reader.
func csvSource(data string, opened *bool) func(context.Context, pgload.SourceOptions) (pgload.BatchSource, error) {
	return func(_ context.Context, opts pgload.SourceOptions) (pgload.BatchSource, error) {
		if opened != nil {
			*opened = true
		}
		r, err := source.NewReader(strings.NewReader(data), opts)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}
