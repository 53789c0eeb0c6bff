package source

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/vvka-141/pgload/pkg/pgload"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func xzBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func TestDecompress_RoundTrip(t *testing.T) {
	payload := tripCSV(20)

	tests := []struct {
		name string
		data []byte
		want compression
	}{
		{"plain", []byte(payload), compressionNone},
		{"gzip", gzipBytes(t, payload), compressionGzip},
		{"zstd", zstdBytes(t, payload), compressionZstd},
		{"xz", xzBytes(t, payload), compressionXZ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain, closeFn, err := decompress(bytes.NewReader(tt.data))
			require.NoError(t, err)
			defer closeFn()

			got, err := io.ReadAll(plain)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}
}

func TestDetectCompression(t *testing.T) {
	assert.Equal(t, compressionBzip2, detectCompression(bufioOf("BZh91AY&SY")))
	assert.Equal(t, compressionNone, detectCompression(bufioOf("id,fare\n")))
	assert.Equal(t, compressionNone, detectCompression(bufioOf("")))
	assert.Equal(t, "gzip", compressionGzip.String())
}

func TestReader_GzipSourceBatches(t *testing.T) {
	r, err := NewReader(bytes.NewReader(gzipBytes(t, tripCSV(25))), tripOptions(10))
	require.NoError(t, err)
	defer r.Close()

	batches := drain(t, r)
	require.Len(t, batches, 3)
	assert.Equal(t, 5, batches[2].Len())
}

func TestReader_TruncatedGzipIsSourceUnavailable(t *testing.T) {
	data := gzipBytes(t, tripCSV(2000))
	truncated := data[:len(data)/2]

	r, err := NewReader(bytes.NewReader(truncated), tripOptions(5000))
	require.NoError(t, err)

	_, err = r.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pgload.ErrSourceUnavailable), "got %v", err)
}

func bufioOf(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}
