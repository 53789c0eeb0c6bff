// Package schema provides Schema Descriptors: built-in presets and
// user-supplied YAML schema files.
package schema

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/vvka-141/pgload/pkg/pgload"
	"gopkg.in/yaml.v3"
)

// ErrUnknownPreset is returned by Preset for names not in the registry.
var ErrUnknownPreset = errors.New("unknown schema preset")

var presets = map[string]func() pgload.Schema{
	"yellow_taxi": YellowTaxi,
}

// YellowTaxi returns the descriptor for NYC TLC yellow taxi trip records.
func YellowTaxi() pgload.Schema {
	return pgload.Schema{
		Columns: []pgload.Column{
			{Name: "VendorID", Type: pgload.ColumnTypeInt64},
			{Name: "passenger_count", Type: pgload.ColumnTypeInt64},
			{Name: "trip_distance", Type: pgload.ColumnTypeFloat64},
			{Name: "RatecodeID", Type: pgload.ColumnTypeInt64},
			{Name: "store_and_fwd_flag", Type: pgload.ColumnTypeText},
			{Name: "PULocationID", Type: pgload.ColumnTypeInt64},
			{Name: "DOLocationID", Type: pgload.ColumnTypeInt64},
			{Name: "payment_type", Type: pgload.ColumnTypeInt64},
			{Name: "fare_amount", Type: pgload.ColumnTypeFloat64},
			{Name: "extra", Type: pgload.ColumnTypeFloat64},
			{Name: "mta_tax", Type: pgload.ColumnTypeFloat64},
			{Name: "tip_amount", Type: pgload.ColumnTypeFloat64},
			{Name: "tolls_amount", Type: pgload.ColumnTypeFloat64},
			{Name: "improvement_surcharge", Type: pgload.ColumnTypeFloat64},
			{Name: "total_amount", Type: pgload.ColumnTypeFloat64},
			{Name: "congestion_surcharge", Type: pgload.ColumnTypeFloat64},
		},
		ParseDates: []string{
			"tpep_pickup_datetime",
			"tpep_dropoff_datetime",
		},
	}
}

// Preset returns a copy of the named built-in schema.
func Preset(name string) (pgload.Schema, error) {
	build, ok := presets[name]
	if !ok {
		return pgload.Schema{}, fmt.Errorf("%w %q (available: %v): %w", ErrUnknownPreset, name, PresetNames(), pgload.ErrInvalidConfig)
	}
	return build(), nil
}

// PresetNames lists the built-in presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type fileColumn struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type fileSchema struct {
	Columns    []fileColumn `yaml:"columns"`
	ParseDates []string     `yaml:"parse_dates"`
}

// Parse decodes a YAML schema document:
//
//	columns:
//	  - {name: VendorID, type: Int64}
//	parse_dates: [tpep_pickup_datetime]
func Parse(data []byte) (pgload.Schema, error) {
	var fs fileSchema
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return pgload.Schema{}, fmt.Errorf("invalid schema document: %v: %w", err, pgload.ErrInvalidConfig)
	}

	s := pgload.Schema{
		Columns:    make([]pgload.Column, 0, len(fs.Columns)),
		ParseDates: fs.ParseDates,
	}
	for i, c := range fs.Columns {
		ct, err := pgload.ParseColumnType(c.Type)
		if err != nil {
			return pgload.Schema{}, fmt.Errorf("column %d (%s): %w", i+1, c.Name, err)
		}
		s.Columns = append(s.Columns, pgload.Column{Name: c.Name, Type: ct})
	}

	if len(s.Columns) == 0 && len(s.ParseDates) == 0 {
		return pgload.Schema{}, fmt.Errorf("schema declares no columns: %w", pgload.ErrInvalidConfig)
	}
	if err := s.Validate(); err != nil {
		return pgload.Schema{}, err
	}
	return s, nil
}

// LoadFile reads and parses a YAML schema file.
func LoadFile(path string) (pgload.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pgload.Schema{}, fmt.Errorf("failed to read schema file %q: %v: %w", path, err, pgload.ErrInvalidConfig)
	}
	s, err := Parse(data)
	if err != nil {
		return pgload.Schema{}, fmt.Errorf("schema file %q: %w", path, err)
	}
	return s, nil
}

// Resolve picks the schema for a run: a schema file wins over a preset name,
// and an empty preset name means the default preset.
func Resolve(presetName, schemaFile string) (pgload.Schema, error) {
	if schemaFile != "" {
		return LoadFile(schemaFile)
	}
	if presetName == "" {
		presetName = pgload.DefaultSchemaPreset
	}
	return Preset(presetName)
}
