package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgload/pkg/pgload"
)

func TestYellowTaxi(t *testing.T) {
	s := YellowTaxi()
	require.NoError(t, s.Validate())

	assert.Len(t, s.Columns, 16)
	assert.Equal(t, []string{"tpep_pickup_datetime", "tpep_dropoff_datetime"}, s.ParseDates)

	ct, ok := s.Lookup("VendorID")
	assert.True(t, ok)
	assert.Equal(t, pgload.ColumnTypeInt64, ct)

	ct, ok = s.Lookup("store_and_fwd_flag")
	assert.True(t, ok)
	assert.Equal(t, pgload.ColumnTypeText, ct)

	ct, ok = s.Lookup("tpep_dropoff_datetime")
	assert.True(t, ok)
	assert.Equal(t, pgload.ColumnTypeTimestamp, ct)
}

func TestPreset_ReturnsIndependentCopies(t *testing.T) {
	a, err := Preset("yellow_taxi")
	require.NoError(t, err)
	a.Columns[0].Name = "mutated"

	b, err := Preset("yellow_taxi")
	require.NoError(t, err)
	assert.Equal(t, "VendorID", b.Columns[0].Name)
}

func TestPreset_Unknown(t *testing.T) {
	_, err := Preset("green_taxi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPreset))
	assert.True(t, errors.Is(err, pgload.ErrInvalidConfig))
}

func TestParse_Valid(t *testing.T) {
	doc := `columns:
  - name: id
    type: Int64
  - name: amount
    type: float64
  - {name: note, type: string}
parse_dates:
  - created_at
`
	s, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []pgload.Column{
		{Name: "id", Type: pgload.ColumnTypeInt64},
		{Name: "amount", Type: pgload.ColumnTypeFloat64},
		{Name: "note", Type: pgload.ColumnTypeText},
	}, s.Columns)
	assert.Equal(t, []string{"created_at"}, s.ParseDates)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed yaml", "columns: [unterminated"},
		{"unknown type", "columns:\n  - {name: a, type: uuid}\n"},
		{"empty", "columns: []\n"},
		{"duplicate", "columns:\n  - {name: a, type: text}\n  - {name: a, type: int64}\n"},
		{"typed and parsed", "columns:\n  - {name: a, type: text}\nparse_dates: [a]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, pgload.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("default preset", func(t *testing.T) {
		s, err := Resolve("", "")
		require.NoError(t, err)
		assert.Len(t, s.Columns, 16)
	})

	t.Run("schema file wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schema.yaml")
		require.NoError(t, os.WriteFile(path, []byte("columns:\n  - {name: x, type: int64}\n"), 0644))

		s, err := Resolve("yellow_taxi", path)
		require.NoError(t, err)
		assert.Equal(t, []pgload.Column{{Name: "x", Type: pgload.ColumnTypeInt64}}, s.Columns)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Resolve("", filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, pgload.ErrInvalidConfig))
	})
}

func TestPresetNames(t *testing.T) {
	assert.Contains(t, PresetNames(), "yellow_taxi")
}
