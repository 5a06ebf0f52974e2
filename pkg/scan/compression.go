package scan

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the encoding of an input stream
type Compression uint8

const (
	NoCompression Compression = iota
	GzipCompression
	ZstdCompression
	S2Compression
)

var (
	gzipMagic   = []byte{0x1f, 0x8b}
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
	s2Magic     = []byte("\xff\x06\x00\x00S2sTwO")
)

// maxMagicLen is the longest header DetectCompression looks at
const maxMagicLen = 10

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case GzipCompression:
		return "gzip"
	case ZstdCompression:
		return "zstd"
	case S2Compression:
		return "s2"
	default:
		return "unknown compression"
	}
}

// DetectCompression identifies a stream by its leading bytes. Snappy framed
// streams are reported as S2, which reads them too.
func DetectCompression(header []byte) Compression {
	switch {
	case bytes.HasPrefix(header, zstdMagic):
		return ZstdCompression
	case bytes.HasPrefix(header, s2Magic), bytes.HasPrefix(header, snappyMagic):
		return S2Compression
	case bytes.HasPrefix(header, gzipMagic):
		return GzipCompression
	default:
		return NoCompression
	}
}

// NewReader wraps r with the matching decoder
func (c Compression) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case NoCompression:
		return io.NopCloser(r), nil
	case GzipCompression:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("error opening gzip stream: %w", err)
		}
		return zr, nil
	case ZstdCompression:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("error opening zstd stream: %w", err)
		}
		return zr.IOReadCloser(), nil
	case S2Compression:
		return io.NopCloser(s2.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("compression algorithm not known")
	}
}

// decode returns a reader producing the decoded content of r, detecting
// the encoding from its first bytes.
func decode(r io.Reader) (io.ReadCloser, Compression, error) {
	br := bufio.NewReaderSize(r, 4096)
	header, err := br.Peek(maxMagicLen)
	if err != nil && err != io.EOF {
		return nil, NoCompression, err
	}

	alg := DetectCompression(header)
	rc, err := alg.NewReader(br)
	if err != nil {
		return nil, alg, err
	}
	return rc, alg, nil
}
