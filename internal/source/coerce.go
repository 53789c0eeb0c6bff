package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// naValues are the field spellings read as NULL regardless of column type,
// the same set dataframe CSV readers treat as missing by default.
var naValues = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"-NaN": true,
	"-nan": true,
	"NULL": true,
	"null": true,
	"None": true,
	"<NA>": true,
	"#N/A": true,
	"#NA":  true,
}

// timestampLayouts are tried in order; the first that parses wins.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"01/02/2006",
}

// Coerce converts one raw field to the Go value written for its column type:
// int64, float64, string, time.Time, or nil for NULL.
func Coerce(raw string, t pgload.ColumnType) (any, error) {
	s := strings.TrimSpace(raw)
	if naValues[s] {
		return nil, nil
	}

	switch t {
	case pgload.ColumnTypeInt64:
		return parseInt64(s)
	case pgload.ColumnTypeFloat64:
		f, err := parseFloat(s)
		if err != nil {
			return nil, fmt.Errorf("not a number")
		}
		if math.IsNaN(f) {
			return nil, nil
		}
		return f, nil
	case pgload.ColumnTypeTimestamp:
		return parseTimestamp(s)
	default:
		return raw, nil
	}
}

// parseFloat is strconv.ParseFloat restricted to plain decimal text: Go
// literal forms such as "1_000" and "0x1p-2" are not numbers in a CSV file.
func parseFloat(s string) (float64, error) {
	if strings.ContainsRune(s, '_') {
		return 0, fmt.Errorf("digit separators are not allowed")
	}
	unsigned := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X") {
		return 0, fmt.Errorf("hexadecimal is not allowed")
	}
	return strconv.ParseFloat(s, 64)
}

// parseInt64 accepts integers and integral decimals ("3.0"), which is how
// integer columns with missing values are often serialized.
func parseInt64(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}

	f, err := parseFloat(s)
	if err != nil {
		return nil, fmt.Errorf("not an integer")
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not an integer")
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("integer out of range")
	}
	return int64(f), nil
}

func parseTimestamp(s string) (any, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("not a recognized timestamp")
}
