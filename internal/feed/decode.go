package feed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding is advertised on feed requests.
const AcceptEncoding = "gzip, deflate, br, zstd"

// maxDecoded caps the decoded payload size.
const maxDecoded = 64 << 20

var errTooLarge = errors.New("decoded payload exceeds limit")

// Decode reverses the Content-Encoding chain applied to body.
// Unknown or broken encodings fail with *DecompressionError.
func Decode(contentEncoding string, body []byte) ([]byte, error) {
	codings := strings.Split(contentEncoding, ",")

	// codings are listed in the order they were applied
	for i := len(codings) - 1; i >= 0; i-- {
		enc := strings.ToLower(strings.TrimSpace(codings[i]))

		var err error
		body, err = decodeOne(enc, body)
		if err != nil {
			return nil, &DecompressionError{Encoding: enc, Err: err}
		}
	}
	return body, nil
}

func decodeOne(enc string, body []byte) ([]byte, error) {
	switch enc {
	case "", "identity":
		return body, nil

	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return readLimited(zr)

	case "deflate":
		// servers send either zlib-wrapped or raw deflate
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			return readLimited(zr)
		}
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		return readLimited(fr)

	case "br":
		return readLimited(brotli.NewReader(bytes.NewReader(body)))

	case "zstd":
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecoded))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(body, nil)

	default:
		return nil, fmt.Errorf("unsupported content encoding")
	}
}

func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, maxDecoded+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxDecoded {
		return nil, errTooLarge
	}
	return out, nil
}
