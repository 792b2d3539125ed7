package compress

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodec(t *testing.T) {
	tests := []struct {
		in   string
		want Codec
	}{
		{"", None},
		{"none", None},
		{"GZIP", Gzip},
		{" zstd ", Zstd},
		{"lz4", LZ4},
		{"snappy", Snappy},
	}
	for _, tt := range tests {
		got, err := ParseCodec(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseCodec("brotli")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("2026-10-18T12:00:00Z level=info msg=\"append ok\"\n", 2000))

	for _, codec := range Codecs {
		t.Run(string(codec), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(codec, &buf)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if codec != None {
				assert.Less(t, buf.Len(), len(payload), "repetitive input should shrink")
			}

			r, err := NewReader(codec, &buf)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestExtensionAndEncoding(t *testing.T) {
	assert.Equal(t, "", None.Extension())
	assert.Equal(t, ".gz", Gzip.Extension())
	assert.Equal(t, ".zst", Zstd.Extension())
	assert.Equal(t, ".lz4", LZ4.Extension())
	assert.Equal(t, ".sz", Snappy.Extension())

	assert.Equal(t, "gzip", Gzip.ContentEncoding())
	assert.Equal(t, "zstd", Zstd.ContentEncoding())
	assert.Equal(t, "", LZ4.ContentEncoding())
}

func TestUnsupportedCodec(t *testing.T) {
	_, err := NewWriter(Codec("brotli"), io.Discard)
	assert.Error(t, err)
	_, err = NewReader(Codec("brotli"), strings.NewReader(""))
	assert.Error(t, err)
}
