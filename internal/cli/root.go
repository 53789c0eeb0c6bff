package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vvka-141/pgload/internal/config"
	"github.com/vvka-141/pgload/internal/db"
	"github.com/vvka-141/pgload/internal/ingest"
	"github.com/vvka-141/pgload/internal/logging"
	"github.com/vvka-141/pgload/internal/schema"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// Environment variables read in addition to the libpq PG* set.
const (
	envSource      = "PGLOAD_SOURCE"
	envTargetTable = "PGLOAD_TARGET_TABLE"
)

const rootLong = `pgload streams a (possibly compressed) CSV file into a PostgreSQL table in
fixed-size chunks. The first chunk defines the table: it is dropped and
recreated, then every chunk is appended with COPY. Memory use is bounded by
--chunk-size regardless of the file size.

Sources: local paths, file://, http(s):// and s3://bucket/key.
Compression (gzip, bzip2, zstd, xz) is detected automatically.

Settings resolve as: flag > environment > pgload.yaml > default.
Environment: PGUSER, PGPASSWORD, PGHOST, PGPORT, PGDATABASE, PGSSLMODE,
DATABASE_URL, PGLOAD_SOURCE, PGLOAD_TARGET_TABLE. A .env file in the working
directory is loaded first.

A failed run is not rolled back: chunks written before the failure remain.
Re-running starts over with a fresh table.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or schema
  11 - Database connection failed or write rejected
  12 - Source unavailable
  13 - Data does not match the schema`

type ingestFlagValues struct {
	user, pass, host, database, sslMode string
	port                                int
	targetTable                         string

	source, schemaPreset, schemaFile string
	delimiter, indexColumn           string
	chunkSize                        int

	auth, awsRegion, googleInstance string
	azureTenantID, azureClientID    string

	timeout    time.Duration
	configPath string
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	flags := &ingestFlagValues{}

	cmd := &cobra.Command{
		Use:   "pgload",
		Short: "Load a CSV dataset into PostgreSQL in chunks",
		Long:  rootLong,
		Example: `  # NYC yellow taxi trips into the default local database
  pgload --source https://github.com/DataTalksClub/nyc-tlc-data/releases/download/yellow/yellow_tripdata_2021-01.csv.gz

  # Another table and database, smaller chunks
  pgload --source ./trips.csv.gz --pg-db warehouse --target-table staging.trips --chunk-size 50000

  # Custom schema from S3 into RDS with IAM auth
  pgload --source s3://bucket/zones.csv --schema-file zones.yaml --auth aws-iam --aws-region eu-west-1`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, flags)
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	registerIngestFlags(cmd, flags)
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func registerIngestFlags(cmd *cobra.Command, flags *ingestFlagValues) {
	f := cmd.Flags()

	// Destination
	f.StringVar(&flags.user, "pg-user", pgload.DefaultUser, "Destination user ($PGUSER)")
	f.StringVar(&flags.pass, "pg-pass", pgload.DefaultPassword, "Destination password ($PGPASSWORD)")
	f.StringVar(&flags.host, "pg-host", pgload.DefaultHost, "Destination host ($PGHOST)")
	f.IntVar(&flags.port, "pg-port", pgload.DefaultPort, "Destination port ($PGPORT)")
	f.StringVar(&flags.database, "pg-db", pgload.DefaultDatabase, "Destination database ($PGDATABASE)")
	f.StringVar(&flags.targetTable, "target-table", pgload.DefaultTargetTable,
		"Destination table, optionally schema-qualified ($PGLOAD_TARGET_TABLE)")
	f.StringVar(&flags.sslMode, "sslmode", pgload.DefaultSSLMode,
		"SSL mode: disable|allow|prefer|require|verify-ca|verify-full ($PGSSLMODE)")

	// Source
	f.StringVar(&flags.source, "source", "",
		"Source location: path, file://, http(s):// or s3:// URI ($PGLOAD_SOURCE, required)")
	f.IntVar(&flags.chunkSize, "chunk-size", pgload.DefaultChunkSize, "Rows per chunk")
	f.StringVar(&flags.schemaPreset, "schema", pgload.DefaultSchemaPreset, "Built-in schema preset")
	f.StringVar(&flags.schemaFile, "schema-file", "", "YAML schema file (overrides --schema)")
	f.StringVar(&flags.delimiter, "delimiter", ",", "Field delimiter (single character)")
	f.StringVar(&flags.indexColumn, "index-column", "",
		"Add a BIGINT column with this name holding each row's ordinal")

	// Authentication
	f.StringVar(&flags.auth, "auth", "standard", "Authentication: standard|aws-iam|azure|google-iam")
	f.StringVar(&flags.awsRegion, "aws-region", "", "AWS region for --auth aws-iam ($AWS_REGION)")
	f.StringVar(&flags.googleInstance, "google-instance", "",
		"Cloud SQL instance (project:region:instance) for --auth google-iam")
	f.StringVar(&flags.azureTenantID, "azure-tenant-id", "", "Azure AD tenant ID ($AZURE_TENANT_ID)")
	f.StringVar(&flags.azureClientID, "azure-client-id", "", "Azure AD client ID ($AZURE_CLIENT_ID)")

	f.DurationVar(&flags.timeout, "timeout", 0, "Abort the run after this long (0 = no limit). Examples: 30s, 5m, 1h")
	f.StringVar(&flags.configPath, "config", config.ConfigFileName, "Project config file")

	_ = cmd.RegisterFlagCompletionFunc("schema", completeSchemaPresets)
	_ = cmd.RegisterFlagCompletionFunc("auth", completeAuthMethods)
	_ = cmd.RegisterFlagCompletionFunc("sslmode", completeSSLModes)
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

func runIngest(cmd *cobra.Command, flags *ingestFlagValues) error {
	verbose := getVerboseFlag(cmd)

	cfg, err := buildIngestConfig(cmd, flags, verbose)
	if err != nil {
		return err
	}

	logger := logging.NewConsoleLogger(verbose)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\n[INTERRUPT] Received interrupt signal, cancelling ingestion...")
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := ingest.NewDefaultService(logger).Run(ctx, cfg)
	if err != nil {
		if result != nil && result.Rows > 0 {
			logger.Error("%d rows in %d chunks were written to %s before the failure",
				result.Rows, result.Batches, cfg.TargetTable)
		}
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

// buildIngestConfig merges flags, environment, .env and pgload.yaml into an
// IngestConfig. Flags count only when the user set them explicitly.
func buildIngestConfig(cmd *cobra.Command, flags *ingestFlagValues, verbose bool) (pgload.IngestConfig, error) {
	_ = godotenv.Load()

	projectCfg, err := loadProjectConfig(cmd, flags.configPath)
	if err != nil {
		return pgload.IngestConfig{}, err
	}

	changed := cmd.Flags().Changed
	pick := func(name, flagValue string) string {
		if changed(name) {
			return flagValue
		}
		return ""
	}

	connFlags := &db.ConnFlags{
		Host:           pick("pg-host", flags.host),
		Username:       pick("pg-user", flags.user),
		Password:       pick("pg-pass", flags.pass),
		Database:       pick("pg-db", flags.database),
		SSLMode:        pick("sslmode", flags.sslMode),
		AuthMethod:     pick("auth", flags.auth),
		AWSRegion:      pick("aws-region", flags.awsRegion),
		GoogleInstance: pick("google-instance", flags.googleInstance),
		AzureTenantID:  pick("azure-tenant-id", flags.azureTenantID),
		AzureClientID:  pick("azure-client-id", flags.azureClientID),
	}
	if changed("pg-port") {
		connFlags.Port = flags.port
	}

	var fileConn *config.ConnectionConfig
	var fileSrc config.SourceConfig
	var fileTarget string
	if projectCfg != nil {
		fileConn = &projectCfg.Connection
		fileSrc = projectCfg.Source
		fileTarget = projectCfg.TargetTable
	}

	connConfig, err := db.ResolveConnectionParams(connFlags, db.LoadFromEnvironment(), fileConn)
	if err != nil {
		return pgload.IngestConfig{}, err
	}

	location := firstNonEmpty(pick("source", flags.source), os.Getenv(envSource), fileSrc.Location)
	if location == "" {
		return pgload.IngestConfig{}, fmt.Errorf("source location is required (--source, $%s or source.location in %s): %w",
			envSource, config.ConfigFileName, pgload.ErrInvalidConfig)
	}

	chunkSize := pgload.DefaultChunkSize
	switch {
	case changed("chunk-size"):
		chunkSize = flags.chunkSize
	case fileSrc.ChunkSize != 0:
		chunkSize = fileSrc.ChunkSize
	}

	schemaFile := firstNonEmpty(pick("schema-file", flags.schemaFile), fileSrc.SchemaFile)
	preset := firstNonEmpty(pick("schema", flags.schemaPreset), fileSrc.Schema, pgload.DefaultSchemaPreset)
	descriptor, err := schema.Resolve(preset, schemaFile)
	if err != nil {
		return pgload.IngestConfig{}, err
	}

	delimiter, err := parseDelimiter(firstNonEmpty(pick("delimiter", flags.delimiter), fileSrc.Delimiter, ","))
	if err != nil {
		return pgload.IngestConfig{}, err
	}

	timeout := flags.timeout
	if !changed("timeout") {
		timeout, err = projectCfg.ParsedTimeout()
		if err != nil {
			return pgload.IngestConfig{}, fmt.Errorf("invalid timeout in %s: %v: %w", flags.configPath, err, pgload.ErrInvalidConfig)
		}
	}

	return pgload.IngestConfig{
		Connection: *connConfig,
		Source: pgload.SourceOptions{
			Location:  location,
			Schema:    descriptor,
			ChunkSize: chunkSize,
			Delimiter: delimiter,
		},
		TargetTable: firstNonEmpty(pick("target-table", flags.targetTable), os.Getenv(envTargetTable), fileTarget, pgload.DefaultTargetTable),
		IndexColumn: firstNonEmpty(pick("index-column", flags.indexColumn), fileSrc.IndexColumn),
		Timeout:     timeout,
		Verbose:     verbose,
	}, nil
}

// loadProjectConfig returns nil when the default config file is absent.
// A missing file named explicitly with --config is an error.
func loadProjectConfig(cmd *cobra.Command, path string) (*config.ProjectConfig, error) {
	projectCfg, err := config.Load(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && !cmd.Flags().Changed("config"):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load %s: %v: %w", path, err, pgload.ErrInvalidConfig)
	}
	return projectCfg, nil
}

func parseDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q: %w", s, pgload.ErrInvalidConfig)
	}
	return runes[0], nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
