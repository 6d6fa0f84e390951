package feed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	plain := []byte(`{"data":[]}`)

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity header", "identity", plain},
		{"no header", "", plain},
		{"gzip", "gzip", encode(t, "gzip", plain)},
		{"zlib deflate", "deflate", encode(t, "deflate", plain)},
		{"raw deflate", "deflate", encode(t, "raw-deflate", plain)},
		{"brotli", "br", encode(t, "br", plain)},
		{"zstd", "zstd", encode(t, "zstd", plain)},
		{"upper case", "GZIP", encode(t, "gzip", plain)},
		{"chained", "gzip, br", encode(t, "br", encode(t, "gzip", plain))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.encoding, tt.body)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

func TestDecodeFailsClosed(t *testing.T) {
	garbage := []byte("definitely not compressed")

	tests := []struct {
		name     string
		encoding string
	}{
		{"corrupt gzip", "gzip"},
		{"corrupt brotli", "br"},
		{"corrupt zstd", "zstd"},
		{"corrupt deflate", "deflate"},
		{"unsupported", "compress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.encoding, garbage)
			require.Error(t, err)
			assert.Nil(t, got, "raw bytes must never be passed through")

			var de *DecompressionError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.encoding, de.Encoding)
		})
	}
}
