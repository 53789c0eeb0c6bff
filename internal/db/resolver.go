package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/pgload/internal/config"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// ConnFlags holds destination flags the user explicitly set. Zero values
// mean "not given" so lower-precedence sources apply.
type ConnFlags struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
	SSLMode  string

	AuthMethod     string
	AWSRegion      string
	GoogleInstance string
	AzureTenantID  string
	AzureClientID  string
}

// EnvVars represents PostgreSQL standard environment variables plus the
// cloud SDK names used by the token-based auth methods.
// See: https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	PGHOST       string
	PGPORT       string
	PGUSER       string
	PGPASSWORD   string
	PGDATABASE   string
	PGSSLMODE    string
	DATABASE_URL string // Full connection string (Heroku/Rails convention)

	AWS_REGION          string
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string // only ever read from the environment
}

// LoadFromEnvironment reads EnvVars from the process environment.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:              os.Getenv("PGHOST"),
		PGPORT:              os.Getenv("PGPORT"),
		PGUSER:              os.Getenv("PGUSER"),
		PGPASSWORD:          os.Getenv("PGPASSWORD"),
		PGDATABASE:          os.Getenv("PGDATABASE"),
		PGSSLMODE:           os.Getenv("PGSSLMODE"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		AWS_REGION:          os.Getenv("AWS_REGION"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// ResolveConnectionParams resolves the destination with the precedence
//
//  1. Flags the user set explicitly
//  2. PG* environment variables
//  3. DATABASE_URL
//  4. pgload.yaml connection section (fileCfg, may be nil)
//  5. Defaults (root:root@localhost:5432/ny_taxi, sslmode=prefer)
//
// Each field is resolved independently.
func ResolveConnectionParams(flags *ConnFlags, env *EnvVars, fileCfg *config.ConnectionConfig) (*pgload.ConnectionConfig, error) {
	if flags == nil {
		flags = &ConnFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	var fc config.ConnectionConfig
	if fileCfg != nil {
		fc = *fileCfg
	}

	fromURL := &pgload.ConnectionConfig{}
	if env.DATABASE_URL != "" {
		parsed, err := ParseConnectionString(env.DATABASE_URL)
		if err != nil {
			return nil, fmt.Errorf("invalid $DATABASE_URL: %v: %w", err, pgload.ErrInvalidConfig)
		}
		fromURL = parsed
	}

	envPort := 0
	if env.PGPORT != "" {
		port, err := strconv.Atoi(env.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value '%s': must be an integer: %w", env.PGPORT, pgload.ErrInvalidConfig)
		}
		envPort = port
	}

	cfg := &pgload.ConnectionConfig{
		Host:             firstNonEmpty(flags.Host, env.PGHOST, fromURL.Host, fc.Host, pgload.DefaultHost),
		Port:             firstNonZero(flags.Port, envPort, fromURL.Port, fc.Port, pgload.DefaultPort),
		Username:         firstNonEmpty(flags.Username, env.PGUSER, fromURL.Username, fc.Username, pgload.DefaultUser),
		Password:         firstNonEmpty(flags.Password, env.PGPASSWORD, fromURL.Password, fc.Password, pgload.DefaultPassword),
		Database:         firstNonEmpty(flags.Database, env.PGDATABASE, fromURL.Database, fc.Database, pgload.DefaultDatabase),
		SSLMode:          firstNonEmpty(flags.SSLMode, env.PGSSLMODE, fromURL.SSLMode, fc.SSLMode, pgload.DefaultSSLMode),
		AppName:          firstNonEmpty(fromURL.AppName, pgload.AppName),
		ConnectTimeout:   fromURL.ConnectTimeout,
		AdditionalParams: fromURL.AdditionalParams,
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range: %w", cfg.Port, pgload.ErrInvalidConfig)
	}

	method, err := pgload.ParseAuthMethod(firstNonEmpty(flags.AuthMethod, fc.AuthMethod))
	if err != nil {
		return nil, err
	}
	cfg.AuthMethod = method

	switch method {
	case pgload.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(flags.AWSRegion, env.AWS_REGION, fc.AWSRegion)
		// The token replaces any configured password.
		cfg.Password = ""
	case pgload.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(flags.GoogleInstance, fc.GoogleInstance)
		cfg.Password = ""
	case pgload.AuthMethodAzureEntraID:
		cfg.AzureTenantID = firstNonEmpty(flags.AzureTenantID, env.AZURE_TENANT_ID, fc.AzureTenantID)
		cfg.AzureClientID = firstNonEmpty(flags.AzureClientID, env.AZURE_CLIENT_ID, fc.AzureClientID)
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
		cfg.Password = ""
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
