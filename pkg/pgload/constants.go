package pgload

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess           = 0  // Ingestion completed successfully
	ExitGeneralError      = 1  // Unknown or unclassified error
	ExitUsageError        = 2  // CLI usage error (invalid flags)
	ExitPanic             = 3  // Internal panic (unexpected crash)
	ExitConfigError       = 10 // Invalid configuration or schema
	ExitConnectionError   = 11 // Destination unreachable or write rejected
	ExitSourceUnavailable = 12 // Source could not be opened or read
	ExitSchemaMismatch    = 13 // Data incompatible with the declared schema
)

const (
	// DefaultChunkSize is the number of rows per batch.
	DefaultChunkSize = 100000

	// DefaultSchemaPreset is the built-in schema used when none is configured.
	DefaultSchemaPreset = "yellow_taxi"

	// Destination defaults, matching the docker-compose setup the loader targets.
	DefaultUser        = "root"
	DefaultPassword    = "root"
	DefaultHost        = "localhost"
	DefaultPort        = 5432
	DefaultDatabase    = "ny_taxi"
	DefaultTargetTable = "yellow_taxi_data"
	DefaultSSLMode     = "prefer"

	// AppName is reported to PostgreSQL as application_name.
	AppName = "pgload"
)
