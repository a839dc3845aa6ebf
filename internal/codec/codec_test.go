package codec

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type order struct {
	ID    int               `json:"id" codec:"id"`
	Label string            `json:"label" codec:"label"`
	Tags  []string          `json:"tags" codec:"tags"`
	Attrs map[string]string `json:"attrs" codec:"attrs"`
}

func TestStructRoundTrip(t *testing.T) {
	in := order{ID: 7, Label: "seven", Tags: []string{"a", "b"}, Attrs: map[string]string{"k": "v"}}
	for _, c := range []Codec{Gob{}, JSON{}, NewMsgpack()} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Marshal(in)
			require.NoError(t, err)
			var out order
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestScalarRoundTrip(t *testing.T) {
	for _, c := range []Codec{Gob{}, JSON{}, NewMsgpack()} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Marshal("One")
			require.NoError(t, err)
			var s string
			require.NoError(t, c.Unmarshal(b, &s))
			assert.Equal(t, "One", s)
		})
	}
}

func TestProto(t *testing.T) {
	c := Proto{}
	b, err := c.Marshal(wrapperspb.String("hello"))
	require.NoError(t, err)
	out := &wrapperspb.StringValue{}
	require.NoError(t, c.Unmarshal(b, out))
	assert.True(t, proto.Equal(wrapperspb.String("hello"), out))

	_, err = c.Marshal("not a message")
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "encode", cerr.Op)
}

func TestEncodeFailureIsCodecError(t *testing.T) {
	_, err := JSON{}.Marshal(make(chan int))
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "json", cerr.Codec)

	_, err = Gob{}.Marshal(func() {})
	require.ErrorAs(t, err, &cerr)
}

func TestDecodeFailureIsCodecError(t *testing.T) {
	var n int
	err := JSON{}.Unmarshal([]byte("{broken"), &n)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "decode", cerr.Op)
}

func TestCompressRoundTrip(t *testing.T) {
	big := strings.Repeat("queue payload ", 200)
	for _, algo := range []Compression{Snappy, LZ4} {
		t.Run(algo.String(), func(t *testing.T) {
			c := Compress(JSON{}, algo, 64)
			assert.Equal(t, "json+"+algo.String(), c.Name())

			b, err := c.Marshal(big)
			require.NoError(t, err)
			plain, _ := JSON{}.Marshal(big)
			assert.Less(t, len(b), len(plain))
			assert.NotEqual(t, markRaw, b[0])

			var out string
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, big, out)

			small, err := c.Marshal("x")
			require.NoError(t, err)
			assert.Equal(t, markRaw, small[0])
			require.NoError(t, c.Unmarshal(small, &out))
			assert.Equal(t, "x", out)
		})
	}
}

func TestIncompressiblePayloadsStayRaw(t *testing.T) {
	noise := make([]byte, 4096)
	_, err := rand.Read(noise)
	require.NoError(t, err)

	for _, algo := range []Compression{Snappy, LZ4} {
		t.Run(algo.String(), func(t *testing.T) {
			c := Compress(Gob{}, algo, 0)
			b, err := c.Marshal(noise)
			require.NoError(t, err)
			assert.Equal(t, markRaw, b[0])

			var out []byte
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, noise, out)
		})
	}
}

func TestCompressRejectsUnknownMarker(t *testing.T) {
	c := Compress(Gob{}, Snappy, 0)
	var s string
	err := c.Unmarshal([]byte{9, 1, 2}, &s)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.True(t, errors.Is(err, errBadFrame))
	assert.Error(t, c.Unmarshal(nil, &s))
}

func TestNoCompressionReturnsInner(t *testing.T) {
	inner := JSON{}
	assert.Equal(t, Codec(inner), Compress(inner, NoCompression, 0))
}

func TestByName(t *testing.T) {
	for name, want := range map[string]string{"": "gob", "GOB": "gob", "json": "json", "msgpack": "msgpack", "protobuf": "proto"} {
		c, err := ByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, c.Name())
	}
	_, err := ByName("xml")
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("LZ4")
	require.NoError(t, err)
	assert.Equal(t, LZ4, c)
	c, err = ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, NoCompression, c)
	_, err = ParseCompression("zstd")
	assert.Error(t, err)
}

func TestGobPayloadsAreIndependent(t *testing.T) {
	a, err := Gob{}.Marshal(order{ID: 1})
	require.NoError(t, err)
	b, err := Gob{}.Marshal(order{ID: 2})
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a, b))

	var out order
	require.NoError(t, Gob{}.Unmarshal(b, &out))
	assert.Equal(t, 2, out.ID)
}
