package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// entry builds one payload instrument with 5 distinct levels.
func entry(symbol, series string, base float64) map[string]interface{} {
	e := map[string]interface{}{
		"symbol":            symbol,
		"series":            series,
		"isinCode":          "IN00" + symbol,
		"totalTradedVolume": 125000,
		"averagePrice":      fmt.Sprintf("%.2f", base),
	}
	for i := 1; i <= Levels; i++ {
		e[fmt.Sprintf("buyPrice%d", i)] = base - float64(i)*0.05
		e[fmt.Sprintf("buyQuantity%d", i)] = 100 * i
		e[fmt.Sprintf("sellPrice%d", i)] = base + float64(i)*0.05
		e[fmt.Sprintf("sellQuantity%d", i)] = fmt.Sprintf("%d", 200*i)
	}
	return e
}

func payloadJSON(t *testing.T, entries ...map[string]interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"data": entries})
	require.NoError(t, err)
	return data
}

func encode(t *testing.T, enc string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer

	switch enc {
	case "", "identity":
		return data
	case "gzip":
		w := gzip.NewWriter(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "deflate":
		w := zlib.NewWriter(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "raw-deflate":
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "br":
		w := brotli.NewWriter(&buf)
		_, err := w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "zstd":
		w, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		defer w.Close()
		return w.EncodeAll(data, nil)
	default:
		t.Fatalf("unknown test encoding %q", enc)
	}
	return buf.Bytes()
}
