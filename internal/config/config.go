package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password,omitempty"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

type SourceConfig struct {
	Location    string `yaml:"location"`
	ChunkSize   int    `yaml:"chunk_size,omitempty"`
	Schema      string `yaml:"schema,omitempty"`
	SchemaFile  string `yaml:"schema_file,omitempty"`
	Delimiter   string `yaml:"delimiter,omitempty"`
	IndexColumn string `yaml:"index_column,omitempty"`
}

type ProjectConfig struct {
	Connection  ConnectionConfig `yaml:"connection"`
	Source      SourceConfig     `yaml:"source"`
	TargetTable string           `yaml:"target_table"`
	Timeout     string           `yaml:"timeout"`
}

const ConfigFileName = "pgload.yaml"

// Load reads the project config at path.
func Load(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParsedTimeout returns the timeout as a duration; zero when unset.
func (c *ProjectConfig) ParsedTimeout() (time.Duration, error) {
	if c == nil || c.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Timeout)
}
