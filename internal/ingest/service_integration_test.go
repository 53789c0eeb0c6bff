package ingest_test

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgload/internal/db"
	"github.com/vvka-141/pgload/internal/ingest"
	"github.com/vvka-141/pgload/internal/logging"
	"github.com/vvka-141/pgload/internal/testinfra"
	"github.com/vvka-141/pgload/pkg/pgload"
)

func writeGzipCSV(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zones.csv.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func integrationConfig(t *testing.T, location, table string, chunk int) pgload.IngestConfig {
	t.Helper()
	connString := testinfra.RequireDatabase(t)

	conn, err := db.ParseConnectionString(connString)
	require.NoError(t, err)

	cfg := ingestConfig(chunk)
	cfg.Connection = *conn
	cfg.Source.Location = location
	cfg.TargetTable = table
	return cfg
}

func TestIntegration_RunIsRepeatable(t *testing.T) {
	cfg := integrationConfig(t, writeGzipCSV(t, zonesCSV(2500)), "it_zones_repeat", 1000)
	pool := testinfra.Pool(t, testinfra.RequireDatabase(t))
	testinfra.DropTable(t, pool, cfg.TargetTable)

	svc := ingest.NewDefaultService(logging.NewNullLogger())

	for run := 1; run <= 2; run++ {
		result, err := svc.Run(context.Background(), cfg)
		require.NoError(t, err, "run %d", run)
		assert.Equal(t, 3, result.Batches)
		assert.Equal(t, int64(2500), result.Rows)
		assert.Equal(t, int64(2500), testinfra.CountRows(t, pool, cfg.TargetTable), "run %d replaces the table", run)
	}
}

func TestIntegration_ZeroRowsCreatesEmptyTable(t *testing.T) {
	cfg := integrationConfig(t, writeGzipCSV(t, zonesCSV(0)), "it_zones_empty", 1000)
	pool := testinfra.Pool(t, testinfra.RequireDatabase(t))
	testinfra.DropTable(t, pool, cfg.TargetTable)

	result, err := ingest.NewDefaultService(logging.NewNullLogger()).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Zero(t, result.Batches)
	assert.Equal(t, int64(0), testinfra.CountRows(t, pool, cfg.TargetTable))

	rows, err := pool.Query(context.Background(),
		`SELECT column_name, data_type FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position`,
		cfg.TargetTable)
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var name, typ string
		require.NoError(t, rows.Scan(&name, &typ))
		got = append(got, name+" "+typ)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"LocationID bigint", "Borough text", "updated_at timestamp without time zone"}, got)
}

func TestIntegration_BadValueLeavesCommittedRows(t *testing.T) {
	data := zonesCSV(4) + "oops,Queens,2021-01-01 10:00:00\n"
	cfg := integrationConfig(t, writeGzipCSV(t, data), "it_zones_bad", 2)
	pool := testinfra.Pool(t, testinfra.RequireDatabase(t))
	testinfra.DropTable(t, pool, cfg.TargetTable)

	result, err := ingest.NewDefaultService(logging.NewNullLogger()).Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, pgload.ErrSchemaMismatch)
	assert.Equal(t, int64(4), result.Rows)
	assert.Equal(t, int64(4), testinfra.CountRows(t, pool, cfg.TargetTable))
}

func TestIntegration_UnreachableDestinationKeepsTable(t *testing.T) {
	cfg := integrationConfig(t, writeGzipCSV(t, zonesCSV(10)), "it_zones_keep", 5)
	pool := testinfra.Pool(t, testinfra.RequireDatabase(t))
	testinfra.DropTable(t, pool, cfg.TargetTable)

	svc := ingest.NewDefaultService(logging.NewNullLogger())
	_, err := svc.Run(context.Background(), cfg)
	require.NoError(t, err)

	unreachable := cfg
	unreachable.Connection.Host = "127.0.0.1"
	unreachable.Connection.Port = 1
	_, err = svc.Run(context.Background(), unreachable)
	require.Error(t, err)
	assert.ErrorIs(t, err, pgload.ErrConnectionFailed)

	assert.Equal(t, int64(10), testinfra.CountRows(t, pool, cfg.TargetTable))
}
