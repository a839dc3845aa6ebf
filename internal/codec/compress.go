package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compressor used by Compress.
type Compression int

const (
	NoCompression Compression = iota
	Snappy
	LZ4
)

func (c Compression) String() string {
	switch c {
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

// ParseCompression parses "none", "snappy" or "lz4".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return NoCompression, nil
	case "snappy":
		return Snappy, nil
	case "lz4":
		return LZ4, nil
	default:
		return NoCompression, fmt.Errorf("codec: unknown compression %q", s)
	}
}

// payload markers
const (
	markRaw    byte = 0
	markSnappy byte = 1
	markLZ4    byte = 2
)

var errBadFrame = errors.New("malformed compressed payload")

type compressed struct {
	inner     Codec
	algo      Compression
	threshold int
}

// Compress wraps inner so payloads of at least threshold bytes are
// compressed. Every payload gains a one byte marker; smaller payloads, and
// those whose compressed form would not be smaller, are stored raw. NoCompression returns inner unchanged.
func Compress(inner Codec, algo Compression, threshold int) Codec {
	if algo == NoCompression {
		return inner
	}
	if threshold < 0 {
		threshold = 0
	}
	return &compressed{inner: inner, algo: algo, threshold: threshold}
}

func (c *compressed) Name() string { return c.inner.Name() + "+" + c.algo.String() }

func (c *compressed) Marshal(v any) ([]byte, error) {
	raw, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(raw) >= c.threshold {
		if out, ok := c.encode(raw); ok && len(out) <= len(raw) {
			return out, nil
		}
	}
	return append([]byte{markRaw}, raw...), nil
}

// encode returns raw compressed behind its marker. Callers keep the result
// only when it is not larger than raw.
func (c *compressed) encode(raw []byte) ([]byte, bool) {
	switch c.algo {
	case Snappy:
		return append([]byte{markSnappy}, snappy.Encode(nil, raw)...), true
	case LZ4:
		var buf bytes.Buffer
		buf.WriteByte(markLZ4)
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, false
		}
		if err := w.Close(); err != nil {
			return nil, false
		}
		return buf.Bytes(), true
	}
	return nil, false
}

func (c *compressed) Unmarshal(b []byte, v any) error {
	if len(b) == 0 {
		return decodeErr(c.Name(), errBadFrame)
	}
	var raw []byte
	switch b[0] {
	case markRaw:
		raw = b[1:]
	case markSnappy:
		out, err := snappy.Decode(nil, b[1:])
		if err != nil {
			return decodeErr(c.Name(), err)
		}
		raw = out
	case markLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(b[1:])))
		if err != nil {
			return decodeErr(c.Name(), err)
		}
		raw = out
	default:
		return decodeErr(c.Name(), errBadFrame)
	}
	return c.inner.Unmarshal(raw, v)
}
