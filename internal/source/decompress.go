package source

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionBzip2
	compressionZstd
	compressionXZ
)

func (c compression) String() string {
	switch c {
	case compressionGzip:
		return "gzip"
	case compressionBzip2:
		return "bzip2"
	case compressionZstd:
		return "zstd"
	case compressionXZ:
		return "xz"
	default:
		return "none"
	}
}

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicXZ    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

	utf8BOM = []byte{0xef, 0xbb, 0xbf}
)

// detectCompression sniffs the stream's magic bytes without consuming them.
func detectCompression(br *bufio.Reader) compression {
	head, _ := br.Peek(len(magicXZ))
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return compressionGzip
	case bytes.HasPrefix(head, magicZstd):
		return compressionZstd
	case bytes.HasPrefix(head, magicXZ):
		return compressionXZ
	case bytes.HasPrefix(head, magicBzip2):
		return compressionBzip2
	default:
		return compressionNone
	}
}

// decompress wraps r in the decoder matching its magic bytes. The returned
// close function releases decoder resources and is never nil.
func decompress(r io.Reader) (io.Reader, func() error, error) {
	br := bufio.NewReader(r)
	noop := func() error { return nil }

	switch c := detectCompression(br); c {
	case compressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open %s stream: %w", c, err)
		}
		return zr, zr.Close, nil

	case compressionBzip2:
		return bzip2.NewReader(br), noop, nil

	case compressionZstd:
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open %s stream: %w", c, err)
		}
		return zr, func() error { zr.Close(); return nil }, nil

	case compressionXZ:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open %s stream: %w", c, err)
		}
		return xr, noop, nil

	default:
		return br, noop, nil
	}
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) *bufio.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM)) //nolint:errcheck
	}
	return br
}
