package pgload

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ColumnType is the semantic type of a column in a Schema Descriptor.
type ColumnType int

const (
	ColumnTypeText      ColumnType = iota // Free text, NULL when empty
	ColumnTypeInt64                       // Nullable 64-bit integer
	ColumnTypeFloat64                     // Double precision floating point
	ColumnTypeTimestamp                   // Timestamp without time zone
)

// String returns the canonical name of the ColumnType.
func (t ColumnType) String() string {
	switch t {
	case ColumnTypeText:
		return "text"
	case ColumnTypeInt64:
		return "int64"
	case ColumnTypeFloat64:
		return "float64"
	case ColumnTypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// IsValid returns true if the ColumnType is a defined value.
func (t ColumnType) IsValid() bool {
	return t >= ColumnTypeText && t <= ColumnTypeTimestamp
}

// PostgresType returns the column type used when creating the destination table.
func (t ColumnType) PostgresType() string {
	switch t {
	case ColumnTypeInt64:
		return "BIGINT"
	case ColumnTypeFloat64:
		return "DOUBLE PRECISION"
	case ColumnTypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// ParseColumnType resolves a type name, accepting the dtype spellings used by
// dataframe tooling ("Int64", "float64", "string") as well as SQL names.
func ParseColumnType(name string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "int64", "integer", "bigint":
		return ColumnTypeInt64, nil
	case "float", "float64", "double", "double precision", "real", "numeric":
		return ColumnTypeFloat64, nil
	case "str", "string", "text", "object", "varchar":
		return ColumnTypeText, nil
	case "timestamp", "datetime", "datetime64", "datetime64[ns]", "date":
		return ColumnTypeTimestamp, nil
	default:
		return ColumnTypeText, fmt.Errorf("unknown column type %q: %w", name, ErrInvalidConfig)
	}
}

// Column is a named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered Schema Descriptor applied to every batch of a run.
//
// Columns carries the declared column types. ParseDates lists the columns
// interpreted as timestamps; they are kept apart from Columns because the
// source dataset declares them that way.
type Schema struct {
	Columns    []Column
	ParseDates []string
}

// Validate checks that column names are unique and types are defined.
func (s Schema) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(s.Columns)+len(s.ParseDates))

	for _, c := range s.Columns {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("schema column with empty name: %w", ErrInvalidConfig))
			continue
		}
		if !c.Type.IsValid() {
			errs = append(errs, fmt.Errorf("schema column %q has invalid type %d: %w", c.Name, int(c.Type), ErrInvalidConfig))
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("schema column %q declared twice: %w", c.Name, ErrInvalidConfig))
		}
		seen[c.Name] = true
	}

	for _, name := range s.ParseDates {
		if name == "" {
			errs = append(errs, fmt.Errorf("parse-date column with empty name: %w", ErrInvalidConfig))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("column %q is both typed and a parse-date column: %w", name, ErrInvalidConfig))
		}
		seen[name] = true
	}

	return errors.Join(errs...)
}

// Lookup returns the declared type of a column. Parse-date columns report
// ColumnTypeTimestamp.
func (s Schema) Lookup(name string) (ColumnType, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	for _, p := range s.ParseDates {
		if p == name {
			return ColumnTypeTimestamp, true
		}
	}
	return ColumnTypeText, false
}

// DeclaredColumns returns the descriptor as a column list: typed columns
// first, then parse-date columns, each in declaration order.
func (s Schema) DeclaredColumns() []Column {
	cols := make([]Column, 0, len(s.Columns)+len(s.ParseDates))
	cols = append(cols, s.Columns...)
	for _, p := range s.ParseDates {
		cols = append(cols, Column{Name: p, Type: ColumnTypeTimestamp})
	}
	return cols
}

// Batch is a bounded fragment of the source table.
//
// Rows hold values already coerced to Go types matching Columns:
// int64, float64, string, time.Time, or nil for NULL.
type Batch struct {
	// Seq is the 1-based position of the batch in its sequence.
	Seq int

	// Offset is the 0-based ordinal of the first row across the whole source.
	Offset int64

	Columns []Column
	Rows    [][]any
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// ColumnNames returns the batch column names in order.
func (b *Batch) ColumnNames() []string {
	names := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		names[i] = c.Name
	}
	return names
}

// SourceOptions describes where and how the Source Reader reads.
type SourceOptions struct {
	// Location is a local path, file://, http(s):// or s3:// URI.
	Location string

	Schema Schema

	// ChunkSize is the maximum number of rows per batch.
	ChunkSize int

	// Delimiter separates fields; ',' when zero.
	Delimiter rune
}

// Validate checks the SourceOptions for obvious misconfiguration.
func (o SourceOptions) Validate() error {
	var errs []error

	if o.Location == "" {
		errs = append(errs, fmt.Errorf("source location is required: %w", ErrInvalidConfig))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d: %w", o.ChunkSize, ErrInvalidConfig))
	}
	if o.Delimiter == '\r' || o.Delimiter == '\n' || o.Delimiter == '"' {
		errs = append(errs, fmt.Errorf("invalid delimiter %q: %w", o.Delimiter, ErrInvalidConfig))
	}
	if err := o.Schema.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// IngestConfig contains all parameters needed for one ingestion run.
type IngestConfig struct {
	Connection ConnectionConfig
	Source     SourceOptions

	// TargetTable is the destination table, optionally schema-qualified.
	TargetTable string

	// IndexColumn, when set, adds a BIGINT column holding each row's ordinal.
	IndexColumn string

	// Timeout bounds the whole run; zero disables it.
	Timeout time.Duration

	Verbose bool
}

// Validate checks if the IngestConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *IngestConfig) Validate() error {
	var errs []error

	if c.TargetTable == "" {
		errs = append(errs, fmt.Errorf("TargetTable is required: %w", ErrInvalidConfig))
	}
	if c.Connection.Database == "" {
		errs = append(errs, fmt.Errorf("database name is required: %w", ErrInvalidConfig))
	}
	if !c.Connection.AuthMethod.IsValid() {
		errs = append(errs, fmt.Errorf("invalid auth method %d: %w", int(c.Connection.AuthMethod), ErrInvalidConfig))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}
	if c.IndexColumn != "" {
		if _, declared := c.Source.Schema.Lookup(c.IndexColumn); declared {
			errs = append(errs, fmt.Errorf("index column %q collides with a schema column: %w", c.IndexColumn, ErrInvalidConfig))
		}
	}
	if err := c.Source.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ConnectionConfig holds destination database connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Cloud authentication parameters, used according to AuthMethod.
	AWSRegion         string
	GoogleInstance    string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod resolves the --auth flag spelling of an AuthMethod.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "google-iam", "gcp":
		return AuthMethodGoogleIAM, nil
	case "azure", "azure-entra", "entra":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("unknown auth method %q (want standard|aws-iam|google-iam|azure): %w", s, ErrInvalidConfig)
	}
}

// RunState is the Table Writer state for one run.
type RunState int

const (
	StateNotStarted RunState = iota
	StatePriming
	StateAppending
	StateCompleted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StatePriming:
		return "Priming"
	case StateAppending:
		return "Appending"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// RunResult summarizes an ingestion run. On failure it reports what was
// committed before the error.
type RunResult struct {
	RunID   uuid.UUID
	Batches int
	Rows    int64
	Elapsed time.Duration
	State   RunState
}
