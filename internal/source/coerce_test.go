package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgload/pkg/pgload"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		typ     pgload.ColumnType
		want    any
		wantErr bool
	}{
		{"int", "42", pgload.ColumnTypeInt64, int64(42), false},
		{"negative int", "-7", pgload.ColumnTypeInt64, int64(-7), false},
		{"integral decimal", "3.0", pgload.ColumnTypeInt64, int64(3), false},
		{"fractional int", "3.5", pgload.ColumnTypeInt64, nil, true},
		{"text in int", "abc", pgload.ColumnTypeInt64, nil, true},
		{"empty int", "", pgload.ColumnTypeInt64, nil, false},
		{"padded int", "  5 ", pgload.ColumnTypeInt64, int64(5), false},
		{"float", "12.75", pgload.ColumnTypeFloat64, 12.75, false},
		{"float exponent", "1e3", pgload.ColumnTypeFloat64, 1000.0, false},
		{"NaN float", "NaN", pgload.ColumnTypeFloat64, nil, false},
		{"text in float", "twelve", pgload.ColumnTypeFloat64, nil, true},
		{"underscore int", "1_000", pgload.ColumnTypeInt64, nil, true},
		{"hex int", "0x1F", pgload.ColumnTypeInt64, nil, true},
		{"hex float in int", "0x1p4", pgload.ColumnTypeInt64, nil, true},
		{"underscore float", "1_000.5", pgload.ColumnTypeFloat64, nil, true},
		{"hex float", "0x1p-2", pgload.ColumnTypeFloat64, nil, true},
		{"signed hex float", "-0X1P-2", pgload.ColumnTypeFloat64, nil, true},
		{"signed float", "+2.5", pgload.ColumnTypeFloat64, 2.5, false},
		{"text", "N", pgload.ColumnTypeText, "N", false},
		{"NA text", "NA", pgload.ColumnTypeText, nil, false},
		{"empty text", "", pgload.ColumnTypeText, nil, false},
		{"timestamp", "2021-01-01 00:30:10", pgload.ColumnTypeTimestamp,
			time.Date(2021, 1, 1, 0, 30, 10, 0, time.UTC), false},
		{"timestamp T", "2021-01-01T00:30:10", pgload.ColumnTypeTimestamp,
			time.Date(2021, 1, 1, 0, 30, 10, 0, time.UTC), false},
		{"timestamp fraction", "2021-01-01 00:30:10.250", pgload.ColumnTypeTimestamp,
			time.Date(2021, 1, 1, 0, 30, 10, 250000000, time.UTC), false},
		{"date only", "2021-02-03", pgload.ColumnTypeTimestamp,
			time.Date(2021, 2, 3, 0, 0, 0, 0, time.UTC), false},
		{"bad timestamp", "yesterday", pgload.ColumnTypeTimestamp, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, tt.typ)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
