package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgload/pkg/pgload"
)

var isolatedEnv = []string{
	"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE", "DATABASE_URL",
	"AWS_REGION", "AZURE_TENANT_ID", "AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET",
	envSource, envTargetTable,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range isolatedEnv {
		t.Setenv(name, "")
	}
}

// parse builds a fresh root command, parses args and resolves the config.
func parse(t *testing.T, args ...string) (pgload.IngestConfig, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	flags := &ingestFlagValues{}
	cmd := &cobra.Command{Use: "pgload"}
	cmd.Flags().BoolP("verbose", "v", false, "")
	registerIngestFlags(cmd, flags)
	require.NoError(t, cmd.ParseFlags(args))

	return buildIngestConfig(cmd, flags, false)
}

func TestBuildIngestConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := parse(t, "--source", "trips.csv.gz")
	require.NoError(t, err)

	assert.Equal(t, "root", cfg.Connection.Username)
	assert.Equal(t, "root", cfg.Connection.Password)
	assert.Equal(t, "localhost", cfg.Connection.Host)
	assert.Equal(t, 5432, cfg.Connection.Port)
	assert.Equal(t, "ny_taxi", cfg.Connection.Database)
	assert.Equal(t, "yellow_taxi_data", cfg.TargetTable)
	assert.Equal(t, "trips.csv.gz", cfg.Source.Location)
	assert.Equal(t, 100000, cfg.Source.ChunkSize)
	assert.Equal(t, ',', cfg.Source.Delimiter)
	assert.Len(t, cfg.Source.Schema.Columns, 16)
	assert.Equal(t, []string{"tpep_pickup_datetime", "tpep_dropoff_datetime"}, cfg.Source.Schema.ParseDates)
	assert.Empty(t, cfg.IndexColumn)
	assert.Zero(t, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestBuildIngestConfig_SourceRequired(t *testing.T) {
	clearEnv(t)

	_, err := parse(t)
	assert.ErrorIs(t, err, pgload.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "source location is required")
}

func TestBuildIngestConfig_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PGHOST", "env-host")
	t.Setenv("PGUSER", "env-user")
	t.Setenv(envSource, "env.csv")
	t.Setenv(envTargetTable, "env_table")

	cfg, err := parse(t,
		"--pg-host", "pgdatabase",
		"--pg-port", "6543",
		"--pg-pass", "secret",
		"--target-table", "staging.trips",
		"--chunk-size", "500",
		"--delimiter", ";",
		"--index-column", "index",
		"--timeout", "90s",
	)
	require.NoError(t, err)

	assert.Equal(t, "pgdatabase", cfg.Connection.Host)
	assert.Equal(t, "env-user", cfg.Connection.Username)
	assert.Equal(t, 6543, cfg.Connection.Port)
	assert.Equal(t, "secret", cfg.Connection.Password)
	assert.Equal(t, "env.csv", cfg.Source.Location)
	assert.Equal(t, "staging.trips", cfg.TargetTable)
	assert.Equal(t, 500, cfg.Source.ChunkSize)
	assert.Equal(t, ';', cfg.Source.Delimiter)
	assert.Equal(t, "index", cfg.IndexColumn)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
}

func TestBuildIngestConfig_ProjectFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	schemaPath := filepath.Join(dir, "zones.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`
columns:
  - {name: LocationID, type: Int64}
  - {name: Borough, type: string}
`), 0o644))

	configPath := filepath.Join(dir, "pgload.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
connection:
  host: file-host
  port: 7000
  database: warehouse
source:
  location: https://example.com/taxi_zone_lookup.csv
  chunk_size: 2000
  schema_file: `+schemaPath+`
  delimiter: "|"
target_table: zones
timeout: 5m
`), 0o644))

	t.Setenv("PGHOST", "env-host")
	cfg, err := parse(t, "--config", configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Connection.Host, "env beats file")
	assert.Equal(t, 7000, cfg.Connection.Port)
	assert.Equal(t, "warehouse", cfg.Connection.Database)
	assert.Equal(t, "https://example.com/taxi_zone_lookup.csv", cfg.Source.Location)
	assert.Equal(t, 2000, cfg.Source.ChunkSize)
	assert.Equal(t, '|', cfg.Source.Delimiter)
	assert.Equal(t, "zones", cfg.TargetTable)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	require.Len(t, cfg.Source.Schema.Columns, 2)
	assert.Equal(t, pgload.ColumnTypeInt64, cfg.Source.Schema.Columns[0].Type)
}

func TestBuildIngestConfig_ExplicitConfigMissing(t *testing.T) {
	clearEnv(t)

	_, err := parse(t, "--source", "x.csv", "--config", "/nonexistent/pgload.yaml")
	assert.ErrorIs(t, err, pgload.ErrInvalidConfig)
}

func TestBuildIngestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown preset", []string{"--source", "x.csv", "--schema", "green_taxi"}},
		{"missing schema file", []string{"--source", "x.csv", "--schema-file", "/nonexistent.yaml"}},
		{"multi-char delimiter", []string{"--source", "x.csv", "--delimiter", ";;"}},
		{"unknown auth", []string{"--source", "x.csv", "--auth", "kerberos"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := parse(t, tt.args...)
			assert.ErrorIs(t, err, pgload.ErrInvalidConfig)
		})
	}
}

func TestBuildIngestConfig_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(envSource)
	t.Cleanup(func() { os.Unsetenv(envSource) })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PGLOAD_SOURCE=from-dotenv.csv\n"), 0o644))
	t.Chdir(dir)

	flags := &ingestFlagValues{}
	cmd := &cobra.Command{Use: "pgload"}
	registerIngestFlags(cmd, flags)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := buildIngestConfig(cmd, flags, false)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.csv", cfg.Source.Location)
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{",", ',', false},
		{`\t`, '\t', false},
		{"tab", '\t', false},
		{"|", '|', false},
		{"", 0, true},
		{"ab", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDelimiter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"unexpected"})
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, pgload.ExitUsageError, pgload.ExitCodeForError(err))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
